// Package session keeps per-caller engine state: the selection, the
// sequenced recommendation passes and their subscribers.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/diagnostic-test-advisor/internal/domain"
	"github.com/diagnostic-test-advisor/internal/service"
)

// subscriberBuffer is the number of passes queued per subscriber before
// older ones are dropped.
const subscriberBuffer = 4

// Session is one caller's engine state.
type Session struct {
	ID        string
	CreatedAt time.Time

	selection *service.SelectionState
	tracker   *service.PassTracker

	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextSubID   int
	published   uint64
	closed      bool
}

// subscriber is one registered stream. last is the newest sequence queued
// on ch.
type subscriber struct {
	ch   chan *service.PassResult
	last uint64
}

func newSession() *Session {
	return &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		selection:   service.NewSelectionState(),
		tracker:     service.NewPassTracker(),
		subscribers: make(map[int]*subscriber),
	}
}

// Selection returns the session's selection state.
func (s *Session) Selection() *service.SelectionState {
	return s.selection
}

// Tracker returns the session's pass tracker.
func (s *Session) Tracker() *service.PassTracker {
	return s.tracker
}

// Latest returns the most recently surfaced pass.
func (s *Session) Latest() (*service.PassResult, bool) {
	return s.tracker.Latest()
}

// Urgency is the patient-level urgency of the latest surfaced pass, or
// routine when no pass has been surfaced.
func (s *Session) Urgency() domain.Urgency {
	if latest, ok := s.tracker.Latest(); ok {
		return latest.Urgency
	}
	return domain.UrgencyRoutine
}

// Subscribe registers for surfaced passes. The channel starts with the
// latest surfaced pass, if any, and then only receives passes with a higher
// sequence. The returned cancel function unregisters and closes the channel.
func (s *Session) Subscribe() (<-chan *service.PassResult, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *service.PassResult, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	sub := &subscriber{ch: ch}
	if latest, ok := s.tracker.Latest(); ok {
		ch <- latest
		sub.last = latest.Sequence
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = sub

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers a surfaced pass to every subscriber. Passes older than
// one already published or already queued for a subscriber are ignored. A
// subscriber whose buffer is full loses its oldest queued pass.
func (s *Session) Publish(result *service.PassResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.Sequence <= s.published {
		return
	}
	s.published = result.Sequence

	for _, sub := range s.subscribers {
		if result.Sequence <= sub.last {
			continue
		}
		sub.last = result.Sequence
		select {
		case sub.ch <- result:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- result:
			default:
			}
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		close(sub.ch)
	}
}

// Registry holds live sessions, evicting the least recently used one when
// full.
type Registry struct {
	logger   *logrus.Logger
	sessions *lru.Cache
}

// NewRegistry creates a registry holding at most maxSessions sessions.
func NewRegistry(logger *logrus.Logger, maxSessions int) (*Registry, error) {
	r := &Registry{logger: logger}
	cache, err := lru.NewWithEvict(maxSessions, func(key interface{}, value interface{}) {
		if s, ok := value.(*Session); ok {
			s.close()
			r.logger.WithField("session_id", key).Debug("Session evicted")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	r.sessions = cache
	return r, nil
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	s := newSession()
	r.sessions.Add(s.ID, s)
	r.logger.WithField("session_id", s.ID).Info("Session created")
	return s
}

// Get returns the session with the given ID or ErrSessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return v.(*Session), nil
}

// Remove ends a session and closes its subscribers.
func (r *Registry) Remove(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}
