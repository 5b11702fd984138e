package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/diagnostic-test-advisor/internal/domain"
)

// PassResult is one completed recommendation pass.
type PassResult struct {
	Sequence        uint64                      `json:"sequence"`
	Urgency         domain.Urgency              `json:"urgency"`
	Diagnosis       string                      `json:"diagnosis"`
	Symptoms        []string                    `json:"symptoms"`
	Recommendations []domain.TestRecommendation `json:"recommendations"`
	CompletedAt     time.Time                   `json:"completed_at"`
}

// PassTracker guarantees that only the most recently requested pass is
// surfaced. Callers take a sequence number with Begin before computing and
// hand the result to Complete; a result whose sequence has been overtaken by
// a later Begin is discarded regardless of arrival order.
type PassTracker struct {
	requested atomic.Uint64

	mu       sync.RWMutex
	surfaced *PassResult
}

// NewPassTracker creates a tracker with no passes.
func NewPassTracker() *PassTracker {
	return &PassTracker{}
}

// Begin registers a new pass and returns its sequence number.
func (p *PassTracker) Begin() uint64 {
	return p.requested.Add(1)
}

// Current returns the sequence number of the newest requested pass.
func (p *PassTracker) Current() uint64 {
	return p.requested.Load()
}

// Complete offers a finished pass. It reports whether the result was
// surfaced; superseded results are dropped.
func (p *PassTracker) Complete(seq uint64, result *PassResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.requested.Load() {
		return false
	}
	if p.surfaced != nil && p.surfaced.Sequence >= seq {
		return false
	}
	result.Sequence = seq
	p.surfaced = result
	return true
}

// Latest returns the most recently surfaced pass.
func (p *PassTracker) Latest() (*PassResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.surfaced == nil {
		return nil, false
	}
	return p.surfaced, true
}
