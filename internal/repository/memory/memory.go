// Package memory provides a mutex-guarded in-memory session repository.
// It backs tests and single-process deployments that opt out of Redis
// or Postgres.
package memory

import (
	"context"
	"sync"

	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// SessionRepository implements repository.SessionRepository with a map.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.CheckoutSession
}

// NewSessionRepository creates an empty in-memory repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]domain.CheckoutSession),
	}
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("checkout_session", id)
	}
	out := clone(s)
	return &out, nil
}

// Put inserts or overwrites the session under its id.
func (r *SessionRepository) Put(ctx context.Context, session *domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = clone(*session)
	return nil
}

// Delete removes a session by id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// List returns all stored sessions.
func (r *SessionRepository) List(ctx context.Context) ([]domain.CheckoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CheckoutSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, clone(s))
	}
	return out, nil
}

// clone copies a session including its metadata map, so callers can never
// mutate stored state through a shared reference.
func clone(s domain.CheckoutSession) domain.CheckoutSession {
	if s.Metadata != nil {
		md := make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			md[k] = v
		}
		s.Metadata = md
	}
	return s
}
