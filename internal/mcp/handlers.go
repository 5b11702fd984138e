package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/orders"
	"github.com/diagnostic-test-advisor/internal/service"
	"github.com/diagnostic-test-advisor/internal/session"
)

// RecommendTestsParams defines parameters for recommend_tests tool
type RecommendTestsParams struct {
	SessionID          string   `json:"session_id,omitempty" jsonschema:"session to update; a new session is created when empty"`
	Age                int      `json:"age" jsonschema:"patient age in years"`
	Gender             string   `json:"gender,omitempty" jsonschema:"male, female or other"`
	Symptoms           []string `json:"symptoms,omitempty" jsonschema:"reported symptoms"`
	Diagnosis          string   `json:"diagnosis,omitempty" jsonschema:"free-text working diagnosis"`
	MedicalHistory     []string `json:"medical_history,omitempty"`
	CurrentMedications []string `json:"current_medications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
}

// RecommendTestsResult defines the result structure for recommend_tests tool
type RecommendTestsResult struct {
	SessionID          string                      `json:"session_id"`
	Sequence           uint64                      `json:"sequence"`
	Urgency            string                      `json:"urgency"`
	UrgencyDescription string                      `json:"urgency_description"`
	Recommendations    []domain.TestRecommendation `json:"recommendations"`
}

// ViewTestsParams defines parameters for view_tests tool
type ViewTestsParams struct {
	SessionID       string   `json:"session_id,omitempty" jsonschema:"session whose latest recommendations drive relevance"`
	SearchText      string   `json:"search_text,omitempty"`
	Category        string   `json:"category,omitempty" jsonschema:"test category or all"`
	Type            string   `json:"type,omitempty" jsonschema:"test type or all"`
	SortKey         string   `json:"sort_key,omitempty" jsonschema:"relevance, cost, priority or accuracy"`
	CostMin         *float64 `json:"cost_min,omitempty"`
	CostMax         *float64 `json:"cost_max,omitempty"`
	OnlyRecommended bool     `json:"only_recommended,omitempty"`
}

// ViewTestsResult defines the result structure for view_tests tool
type ViewTestsResult struct {
	Tests []domain.Test `json:"tests"`
	Count int           `json:"count"`
}

// SelectTestParams defines parameters for select_test tool
type SelectTestParams struct {
	SessionID string `json:"session_id"`
	TestID    string `json:"test_id"`
}

// SelectTestResult defines the result structure for select_test tool
type SelectTestResult struct {
	TestID        string   `json:"test_id"`
	NewlySelected bool     `json:"newly_selected"`
	Selection     []string `json:"selection"`
}

// SessionParams identifies a session.
type SessionParams struct {
	SessionID string `json:"session_id"`
}

// SelectionResult defines the result structure for get_selection tool
type SelectionResult struct {
	SelectedIDs []string            `json:"selected_ids"`
	Summary     domain.OrderSummary `json:"summary"`
}

// SubmitOrderParams defines parameters for submit_order tool
type SubmitOrderParams struct {
	SessionID string `json:"session_id"`
	Notes     string `json:"notes,omitempty"`
}

// OrderView is an order as returned by the tools.
type OrderView struct {
	ID              string   `json:"id"`
	SessionID       string   `json:"session_id"`
	TestIDs         []string `json:"test_ids"`
	TotalCost       float64  `json:"total_cost"`
	RequiresFasting bool     `json:"requires_fasting"`
	Urgency         string   `json:"urgency"`
	Notes           string   `json:"notes"`
	CreatedAt       string   `json:"created_at"`
}

// ListOrdersParams defines parameters for list_orders tool
type ListOrdersParams struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit,omitempty"`
}

// ListOrdersResult defines the result structure for list_orders tool
type ListOrdersResult struct {
	Orders []OrderView `json:"orders"`
	Count  int         `json:"count"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recommend_tests",
		Description: "Score the test catalog against a patient presentation and return up to eight ranked recommendations with the patient-level urgency.",
	}, s.handleRecommendTests)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "view_tests",
		Description: "Filter, search and sort the test catalog, optionally restricted to the session's recommended tests.",
	}, s.handleViewTests)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "select_test",
		Description: "Add a catalog test to the session's order selection.",
	}, s.handleSelectTest)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_selection",
		Description: "Return the session's selected tests with cost, fasting and preparation summary.",
	}, s.handleGetSelection)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_order",
		Description: "Persist the session's selection as a test order.",
	}, s.handleSubmitOrder)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_orders",
		Description: "List orders submitted from a session, newest first.",
	}, s.handleListOrders)

	s.logger.WithField("tool_count", 6).Info("Successfully registered all tools")
}

// handleRecommendTests handles the recommend_tests tool invocation
func (s *LiteServer) handleRecommendTests(ctx context.Context, req *mcp.CallToolRequest, params RecommendTestsParams) (*mcp.CallToolResult, RecommendTestsResult, error) {
	s.logger.WithField("tool", "recommend_tests").Info("Tool invoked")

	sess, err := s.sessionFor(params.SessionID, true)
	if err != nil {
		return nil, RecommendTestsResult{}, err
	}

	result, surfaced := s.advisor.RunPass(ctx, sess.ID, sess.Tracker(), service.RecommendRequest{
		Patient: domain.Patient{
			Age:                params.Age,
			Gender:             domain.Gender(params.Gender),
			MedicalHistory:     params.MedicalHistory,
			CurrentMedications: params.CurrentMedications,
			Allergies:          params.Allergies,
		},
		Symptoms:  params.Symptoms,
		Diagnosis: params.Diagnosis,
	})
	if !surfaced {
		return nil, RecommendTestsResult{}, fmt.Errorf("%s: pass %d superseded by a newer request", domain.ErrCodePassSuperseded, result.Sequence)
	}
	sess.Publish(result)

	recs := result.Recommendations
	if recs == nil {
		recs = []domain.TestRecommendation{}
	}
	out := RecommendTestsResult{
		SessionID:          sess.ID,
		Sequence:           result.Sequence,
		Urgency:            string(result.Urgency),
		UrgencyDescription: result.Urgency.Description(),
		Recommendations:    recs,
	}

	return textResult(fmt.Sprintf("%d tests recommended for session %s (urgency: %s)",
		len(recs), sess.ID, result.Urgency)), out, nil
}

// handleViewTests handles the view_tests tool invocation
func (s *LiteServer) handleViewTests(ctx context.Context, req *mcp.CallToolRequest, params ViewTestsParams) (*mcp.CallToolResult, ViewTestsResult, error) {
	s.logger.WithField("tool", "view_tests").Info("Tool invoked")

	fp := domain.DefaultFilterParams()
	fp.SearchText = params.SearchText
	if params.Category != "" {
		fp.Category = params.Category
	}
	if params.Type != "" {
		fp.Type = params.Type
	}
	fp.SortKey = domain.ParseSortKey(params.SortKey)
	if params.CostMin != nil {
		fp.Cost.Min = *params.CostMin
	}
	if params.CostMax != nil {
		fp.Cost.Max = *params.CostMax
	}
	fp.OnlyRecommended = params.OnlyRecommended

	var recs []domain.TestRecommendation
	if params.SessionID != "" {
		sess, err := s.sessionFor(params.SessionID, false)
		if err != nil {
			return nil, ViewTestsResult{}, err
		}
		if latest, ok := sess.Latest(); ok {
			recs = latest.Recommendations
		}
	}

	tests := s.advisor.ViewTests(fp, recs)
	return textResult(fmt.Sprintf("%d tests match", len(tests))), ViewTestsResult{Tests: tests, Count: len(tests)}, nil
}

// handleSelectTest handles the select_test tool invocation
func (s *LiteServer) handleSelectTest(ctx context.Context, req *mcp.CallToolRequest, params SelectTestParams) (*mcp.CallToolResult, SelectTestResult, error) {
	s.logger.WithFields(logrus.Fields{"tool": "select_test", "test_id": params.TestID}).Info("Tool invoked")

	sess, err := s.sessionFor(params.SessionID, false)
	if err != nil {
		return nil, SelectTestResult{}, err
	}
	added, err := s.advisor.SelectTest(sess.Selection(), params.TestID)
	if err != nil {
		return nil, SelectTestResult{}, err
	}

	out := SelectTestResult{TestID: params.TestID, NewlySelected: added, Selection: sess.Selection().Selected()}
	return textResult(fmt.Sprintf("%s selected (%d in selection)", params.TestID, len(out.Selection))), out, nil
}

// handleGetSelection handles the get_selection tool invocation
func (s *LiteServer) handleGetSelection(ctx context.Context, req *mcp.CallToolRequest, params SessionParams) (*mcp.CallToolResult, SelectionResult, error) {
	sess, err := s.sessionFor(params.SessionID, false)
	if err != nil {
		return nil, SelectionResult{}, err
	}
	summary := s.advisor.Summarize(sess.Selection(), sess.Urgency())
	out := SelectionResult{SelectedIDs: sess.Selection().Selected(), Summary: summary}
	return textResult(fmt.Sprintf("%d tests selected, total cost %.2f", len(summary.Tests), summary.TotalCost)), out, nil
}

// handleSubmitOrder handles the submit_order tool invocation
func (s *LiteServer) handleSubmitOrder(ctx context.Context, req *mcp.CallToolRequest, params SubmitOrderParams) (*mcp.CallToolResult, OrderView, error) {
	s.logger.WithField("tool", "submit_order").Info("Tool invoked")

	sess, err := s.sessionFor(params.SessionID, false)
	if err != nil {
		return nil, OrderView{}, err
	}
	order, err := s.advisor.SubmitOrder(ctx, sess.ID, sess.Selection(), sess.Urgency(), params.Notes)
	if err != nil {
		return nil, OrderView{}, err
	}
	return textResult(fmt.Sprintf("Order %s submitted", order.ID)), toOrderView(order), nil
}

// handleListOrders handles the list_orders tool invocation
func (s *LiteServer) handleListOrders(ctx context.Context, req *mcp.CallToolRequest, params ListOrdersParams) (*mcp.CallToolResult, ListOrdersResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	list, err := s.advisor.ListOrders(ctx, params.SessionID, limit)
	if err != nil {
		return nil, ListOrdersResult{}, err
	}

	out := ListOrdersResult{Orders: make([]OrderView, 0, len(list))}
	for _, o := range list {
		out.Orders = append(out.Orders, toOrderView(o))
	}
	out.Count = len(out.Orders)
	return textResult(fmt.Sprintf("%d orders", out.Count)), out, nil
}

// sessionFor resolves id, creating a session for an empty id when create is set.
func (s *LiteServer) sessionFor(id string, create bool) (*session.Session, error) {
	if id == "" {
		if create {
			return s.sessions.Create(), nil
		}
		return nil, domain.NewValidationError("session_id", "is required", id)
	}
	return s.sessions.Get(id)
}

func toOrderView(o *orders.Order) OrderView {
	ids := o.TestIDs
	if ids == nil {
		ids = []string{}
	}
	return OrderView{
		ID:              o.ID,
		SessionID:       o.SessionID,
		TestIDs:         ids,
		TotalCost:       o.TotalCost,
		RequiresFasting: o.RequiresFasting,
		Urgency:         string(o.Urgency),
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
