package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/cache"
	"github.com/diagnostic-test-advisor/internal/catalog"
	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/orders"
)

// RecommendRequest is the input of one recommendation pass. Symptoms are
// merged with Patient.Symptoms.
type RecommendRequest struct {
	Patient   domain.Patient `json:"patient"`
	Symptoms  []string       `json:"symptoms"`
	Diagnosis string         `json:"diagnosis"`
}

// Advisor is the entry point for recommendation, view, selection and order
// operations over one catalog.
type Advisor struct {
	logger   *logrus.Logger
	catalog  *catalog.Catalog
	scorer   *Scorer
	cache    domain.RecommendationCache
	recorder domain.PassRecorder
	orders   orders.Store

	// fingerprint scopes cache keys to this catalog and urgency configuration
	fingerprint string
}

// Option configures optional Advisor collaborators.
type Option func(*Advisor)

// WithCache enables recommendation caching.
func WithCache(c domain.RecommendationCache) Option {
	return func(a *Advisor) { a.cache = c }
}

// WithPassRecorder enables the audit trail of surfaced passes.
func WithPassRecorder(r domain.PassRecorder) Option {
	return func(a *Advisor) { a.recorder = r }
}

// WithOrderStore enables order submission.
func WithOrderStore(s orders.Store) Option {
	return func(a *Advisor) { a.orders = s }
}

// NewAdvisor creates a new advisor over cat.
func NewAdvisor(logger *logrus.Logger, cat *catalog.Catalog, urgency domain.UrgencyConfig, opts ...Option) *Advisor {
	a := &Advisor{
		logger:  logger,
		catalog: cat,
		scorer:  NewScorer(logger, urgency),

		fingerprint: configFingerprint(cat, urgency),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns every catalog test in catalog order.
func (a *Advisor) Catalog() []domain.Test {
	return a.catalog.All()
}

// CacheStats returns the recommendation cache counters. It reports false
// when no cache is configured or the cache keeps no counters.
func (a *Advisor) CacheStats() (cache.Stats, bool) {
	r, ok := a.cache.(interface{ Stats() cache.Stats })
	if !ok {
		return cache.Stats{}, false
	}
	return r.Stats(), true
}

// ComputeRecommendations scores every catalog test, drops excluded tests and
// returns at most MaxRecommendations ranked by relevance, together with the
// patient-level urgency. A negative age yields no recommendations.
func (a *Advisor) ComputeRecommendations(ctx context.Context, req RecommendRequest) ([]domain.TestRecommendation, domain.Urgency) {
	patient := req.Patient
	patient.Symptoms = mergeSymptoms(req.Patient.Symptoms, req.Symptoms)
	urgency := a.scorer.ClassifyUrgency(patient.Symptoms)

	if patient.Age < 0 {
		a.logger.WithField("age", patient.Age).Warn("Negative patient age, returning no recommendations")
		return []domain.TestRecommendation{}, urgency
	}

	key := cacheKey(a.fingerprint, &patient, req.Diagnosis)
	if a.cache != nil {
		if recs, ok := a.cache.Get(ctx, key); ok {
			a.logger.WithField("cache_key", key).Debug("Recommendation cache hit")
			return recs, urgency
		}
	}

	var scored []domain.TestRecommendation
	for _, test := range a.catalog.All() {
		s, ok := a.scorer.ScoreTest(test, &patient, req.Diagnosis)
		if !ok {
			continue
		}
		scored = append(scored, domain.TestRecommendation{
			Test:              test,
			RelevanceScore:    s.RelevanceScore,
			Reasoning:         s.Reasoning,
			Urgency:           urgency,
			CostEffectiveness: CostEffectiveness(test, s.RelevanceScore),
			Warnings:          Warnings(test, &patient),
		})
	}
	recs := Rank(scored)

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, recs); err != nil {
			a.logger.WithError(err).Warn("Failed to cache recommendations")
		}
	}

	a.logger.WithFields(logrus.Fields{
		"symptoms":        len(patient.Symptoms),
		"matched":         len(scored),
		"recommendations": len(recs),
		"urgency":         urgency,
	}).Info("Computed recommendations")

	return recs, urgency
}

// RunPass computes recommendations as one sequenced pass on tracker. The
// result is surfaced only if no newer pass was begun meanwhile; a discarded
// pass returns the result with surfaced=false.
func (a *Advisor) RunPass(ctx context.Context, sessionID string, tracker *PassTracker, req RecommendRequest) (*PassResult, bool) {
	seq := tracker.Begin()

	recs, urgency := a.ComputeRecommendations(ctx, req)
	result := &PassResult{
		Urgency:         urgency,
		Diagnosis:       req.Diagnosis,
		Symptoms:        mergeSymptoms(req.Patient.Symptoms, req.Symptoms),
		Recommendations: recs,
		CompletedAt:     time.Now().UTC(),
	}

	if !tracker.Complete(seq, result) {
		a.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"sequence":   seq,
			"current":    tracker.Current(),
		}).Warn("Discarding superseded recommendation pass")
		result.Sequence = seq
		return result, false
	}

	if a.recorder != nil {
		record := &domain.PassRecord{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			Sequence:        seq,
			Urgency:         urgency,
			Diagnosis:       req.Diagnosis,
			Symptoms:        result.Symptoms,
			Recommendations: recs,
			CreatedAt:       result.CompletedAt,
		}
		if err := a.recorder.RecordPass(ctx, record); err != nil {
			a.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to record recommendation pass")
		}
	}

	return result, true
}

// History returns the audited passes of a session, newest first.
func (a *Advisor) History(ctx context.Context, sessionID string, limit int) ([]*domain.PassRecord, error) {
	if a.recorder == nil {
		return []*domain.PassRecord{}, nil
	}
	records, err := a.recorder.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load pass history: %w", err)
	}
	return records, nil
}

// ViewTests runs the filter/sort pipeline over the catalog.
func (a *Advisor) ViewTests(params domain.FilterParams, recs []domain.TestRecommendation) []domain.Test {
	return FilterAndSort(a.catalog.All(), recs, params)
}

// SelectTest adds testID to sel. It reports whether the test was newly
// selected and fails with ErrTestNotFound for ids outside the catalog.
func (a *Advisor) SelectTest(sel *SelectionState, testID string) (bool, error) {
	if a.catalog.Position(testID) < 0 {
		return false, fmt.Errorf("select %q: %w", testID, domain.ErrTestNotFound)
	}
	return sel.Select(testID), nil
}

// IsTestSelected reports whether testID is in sel.
func (a *Advisor) IsTestSelected(sel *SelectionState, testID string) bool {
	return sel.IsSelected(testID)
}

// Summarize aggregates the selected tests in selection order.
func (a *Advisor) Summarize(sel *SelectionState, urgency domain.Urgency) domain.OrderSummary {
	if !urgency.IsValid() {
		urgency = domain.UrgencyRoutine
	}
	summary := domain.OrderSummary{
		Tests:       []domain.Test{},
		Preparation: []string{},
		Urgency:     urgency,
	}

	seen := make(map[string]struct{})
	for _, id := range sel.Selected() {
		test, ok := a.catalog.Get(id)
		if !ok {
			continue
		}
		summary.Tests = append(summary.Tests, test)
		summary.TotalCost += test.Cost
		summary.RequiresFasting = summary.RequiresFasting || test.Fasting
		for _, step := range test.PreparationSteps {
			k := normalize(step)
			if _, dup := seen[k]; dup || k == "" {
				continue
			}
			seen[k] = struct{}{}
			summary.Preparation = append(summary.Preparation, step)
		}
	}
	return summary
}

// SubmitOrder persists the current selection as an order.
func (a *Advisor) SubmitOrder(ctx context.Context, sessionID string, sel *SelectionState, urgency domain.Urgency, notes string) (*orders.Order, error) {
	if a.orders == nil {
		return nil, fmt.Errorf("order submission is not configured")
	}
	summary := a.Summarize(sel, urgency)
	if len(summary.Tests) == 0 {
		return nil, domain.ErrEmptySelection
	}

	ids := make([]string, len(summary.Tests))
	for i, t := range summary.Tests {
		ids[i] = t.ID
	}
	order := &orders.Order{
		SessionID:       sessionID,
		TestIDs:         ids,
		TotalCost:       summary.TotalCost,
		RequiresFasting: summary.RequiresFasting,
		Urgency:         summary.Urgency,
		Notes:           notes,
	}
	if err := a.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"session_id": sessionID,
		"tests":      len(ids),
		"total_cost": order.TotalCost,
	}).Info("Order submitted")

	return order, nil
}

// ListOrders returns the orders submitted from a session.
func (a *Advisor) ListOrders(ctx context.Context, sessionID string, limit int) ([]*orders.Order, error) {
	if a.orders == nil {
		return []*orders.Order{}, nil
	}
	return a.orders.ListBySession(ctx, sessionID, limit)
}

// configFingerprint digests the catalog contents and urgency symptom sets.
// Replicas sharing a Redis tier only share entries when both match.
func configFingerprint(cat *catalog.Catalog, urgency domain.UrgencyConfig) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(cat.All())
	for _, set := range [][]string{urgency.Immediate, urgency.Within24h, urgency.WithinWeek} {
		normalized := normalizeAll(set)
		sort.Strings(normalized)
		_ = enc.Encode(normalized)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// cacheKey digests the inputs that determine a recommendation pass under the
// given configuration fingerprint. Symptom order does not affect the key.
func cacheKey(fingerprint string, patient *domain.Patient, diagnosis string) string {
	symptoms := normalizeAll(patient.Symptoms)
	sort.Strings(symptoms)
	profile := append(append(append([]string{}, normalizeAll(patient.MedicalHistory)...),
		normalizeAll(patient.CurrentMedications)...), normalizeAll(patient.Allergies)...)
	sort.Strings(profile)

	h := sha256.New()
	for _, part := range []string{
		strconv.Itoa(patient.Age),
		normalize(string(patient.Gender)),
		strings.Join(symptoms, "\x1f"),
		normalize(diagnosis),
		strings.Join(profile, "\x1f"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "recs:" + fingerprint + ":" + hex.EncodeToString(h.Sum(nil))
}
