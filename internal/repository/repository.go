package repository

import (
	"context"

	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// SessionRepository defines keyed persistence for checkout sessions. Every
// operation is atomic per key, so concurrent creates, status updates, and
// sweeps never clobber each other's writes.
type SessionRepository interface {
	// Get retrieves a session by its unique identifier. Returns an error
	// wrapping errors.ErrNotFound when the id is absent.
	Get(ctx context.Context, id string) (*domain.CheckoutSession, error)

	// Put inserts or overwrites the session stored under its id.
	Put(ctx context.Context, session *domain.CheckoutSession) error

	// Delete removes a session by id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all sessions currently in the store, in no particular
	// order. Used by the garbage sweep.
	List(ctx context.Context) ([]domain.CheckoutSession, error)
}
