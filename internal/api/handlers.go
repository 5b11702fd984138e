package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/middleware"
	"github.com/diagnostic-test-advisor/internal/service"
	"github.com/diagnostic-test-advisor/internal/session"
)

const (
	sessionKey   = "session"
	defaultLimit = 20
	maxLimit     = 200
)

type recommendationsResponse struct {
	SessionID          string                      `json:"session_id"`
	Sequence           uint64                      `json:"sequence"`
	Urgency            domain.Urgency              `json:"urgency"`
	UrgencyDescription string                      `json:"urgency_description"`
	Recommendations    []domain.TestRecommendation `json:"recommendations"`
	CompletedAt        *time.Time                  `json:"completed_at,omitempty"`
}

type selectRequest struct {
	TestID string `json:"test_id" binding:"required"`
}

type orderRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"sessions":  s.sessions.Len(),
		"tests":     len(s.advisor.Catalog()),
	}
	if stats, ok := s.advisor.CacheStats(); ok {
		body["cache"] = stats
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleCatalog(c *gin.Context) {
	tests := s.advisor.Catalog()
	c.JSON(http.StatusOK, gin.H{"tests": tests, "count": len(tests)})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// loadSession resolves :id for every session-scoped route.
func (s *Server) loadSession(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		c.Abort()
		return
	}
	c.Set(sessionKey, sess)
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	s.sessions.Remove(currentSession(c).ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRecommend(c *gin.Context) {
	sess := currentSession(c)

	var req service.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	result, surfaced := s.advisor.RunPass(c.Request.Context(), sess.ID, sess.Tracker(), req)
	if !surfaced {
		c.JSON(http.StatusConflict, domain.NewAdvisorError(
			domain.ErrCodePassSuperseded,
			"a newer recommendation pass was requested",
			"sequence "+strconv.FormatUint(result.Sequence, 10)+" discarded",
			c.GetString(middleware.CorrelationIDKey),
		))
		return
	}
	sess.Publish(result)

	c.JSON(http.StatusOK, toResponse(sess.ID, result))
}

func (s *Server) handleLatestRecommendations(c *gin.Context) {
	sess := currentSession(c)
	latest, ok := sess.Latest()
	if !ok {
		c.JSON(http.StatusOK, recommendationsResponse{
			SessionID:          sess.ID,
			Urgency:            domain.UrgencyRoutine,
			UrgencyDescription: domain.UrgencyRoutine.Description(),
			Recommendations:    []domain.TestRecommendation{},
		})
		return
	}
	c.JSON(http.StatusOK, toResponse(sess.ID, latest))
}

func toResponse(sessionID string, r *service.PassResult) recommendationsResponse {
	completed := r.CompletedAt
	return recommendationsResponse{
		SessionID:          sessionID,
		Sequence:           r.Sequence,
		Urgency:            r.Urgency,
		UrgencyDescription: r.Urgency.Description(),
		Recommendations:    r.Recommendations,
		CompletedAt:        &completed,
	}
}

func (s *Server) handleViewTests(c *gin.Context) {
	params, err := filterParamsFromQuery(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var recs []domain.TestRecommendation
	if latest, ok := currentSession(c).Latest(); ok {
		recs = latest.Recommendations
	}

	tests := s.advisor.ViewTests(params, recs)
	c.JSON(http.StatusOK, gin.H{"tests": tests, "count": len(tests)})
}

// filterParamsFromQuery maps query parameters onto filter params. Absent
// parameters keep their defaults.
func filterParamsFromQuery(c *gin.Context) (domain.FilterParams, error) {
	params := domain.DefaultFilterParams()
	params.SearchText = c.Query("search")
	if v := c.Query("category"); v != "" {
		params.Category = v
	}
	if v := c.Query("type"); v != "" {
		params.Type = v
	}
	params.SortKey = domain.ParseSortKey(c.Query("sort"))

	if v := c.Query("cost_min"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, domain.NewValidationError("cost_min", "must be a number", v)
		}
		params.Cost.Min = f
	}
	if v := c.Query("cost_max"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return params, domain.NewValidationError("cost_max", "must be a number", v)
		}
		params.Cost.Max = f
	}
	if math.IsInf(params.Cost.Max, 1) {
		params.Cost.Max = math.MaxFloat64
	}

	if v := c.Query("only_recommended"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, domain.NewValidationError("only_recommended", "must be a boolean", v)
		}
		params.OnlyRecommended = b
	}
	return params, nil
}

func (s *Server) handleSelectTest(c *gin.Context) {
	sess := currentSession(c)

	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("test_id", "is required", nil))
		return
	}

	added, err := s.advisor.SelectTest(sess.Selection(), req.TestID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"test_id":        req.TestID,
		"selected":       true,
		"newly_selected": added,
		"selection":      sess.Selection().Selected(),
	})
}

func (s *Server) handleGetSelection(c *gin.Context) {
	sess := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"selected_ids": sess.Selection().Selected(),
		"summary":      s.advisor.Summarize(sess.Selection(), sess.Urgency()),
	})
}

func (s *Server) handleIsSelected(c *gin.Context) {
	sess := currentSession(c)
	testID := c.Param("testId")
	c.JSON(http.StatusOK, gin.H{
		"test_id":  testID,
		"selected": s.advisor.IsTestSelected(sess.Selection(), testID),
	})
}

func (s *Server) handleSubmitOrder(c *gin.Context) {
	sess := currentSession(c)

	var req orderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
			return
		}
	}

	order, err := s.advisor.SubmitOrder(c.Request.Context(), sess.ID, sess.Selection(), sess.Urgency(), req.Notes)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (s *Server) handleListOrders(c *gin.Context) {
	sess := currentSession(c)
	list, err := s.advisor.ListOrders(c.Request.Context(), sess.ID, limitFromQuery(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

func (s *Server) handleHistory(c *gin.Context) {
	sess := currentSession(c)
	records, err := s.advisor.History(c.Request.Context(), sess.ID, limitFromQuery(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"passes": records, "count": len(records)})
}

func limitFromQuery(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// respondError writes err as an AdvisorError body with a matching status.
func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.ErrCodeValidation:
		status = http.StatusBadRequest
	case domain.ErrCodeNotFound, domain.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case domain.ErrCodeEmptySelection:
		status = http.StatusUnprocessableEntity
	}

	message := err.Error()
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		message = verr.Message
	}
	if status == http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
			"error":          err,
		}).Error("Request failed")
		message = "internal error"
	}

	_ = c.Error(err)
	c.JSON(status, domain.NewAdvisorError(code, message, "", c.GetString(middleware.CorrelationIDKey)))
}
