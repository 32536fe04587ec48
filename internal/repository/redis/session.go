// Package redis provides the Redis-backed session repository. Each session
// is one key, so writes are atomic per session and concurrent callers cannot
// lose each other's updates.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

const keyPrefix = "checkout:session:"

// scanBatchSize is the COUNT hint for SCAN during List.
const scanBatchSize = 64

// SessionRepository implements repository.SessionRepository using Redis.
type SessionRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewSessionRepository creates a new Redis-backed session repository.
// retention is how long a record outlives its session expiry before Redis
// drops the key on its own; it gives the sweep and lazy validation a window
// to observe consumed or expired records.
func NewSessionRepository(client *redis.Client, retention time.Duration) *SessionRepository {
	return &SessionRepository{
		client:    client,
		retention: retention,
	}
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("checkout_session", id)
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &session, nil
}

// Put inserts or overwrites the session under its id. The key TTL is the
// remaining session lifetime plus the retention window.
func (r *SessionRepository) Put(ctx context.Context, session *domain.CheckoutSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + r.retention
	if ttl <= 0 {
		ttl = r.retention
	}

	if err := r.client.Set(ctx, keyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}

	return nil
}

// Delete removes a session by id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}

	return nil
}

// List returns all stored sessions via SCAN over the key prefix.
func (r *SessionRepository) List(ctx context.Context) ([]domain.CheckoutSession, error) {
	var out []domain.CheckoutSession

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				// Key expired between SCAN and GET.
				continue
			}
			return nil, fmt.Errorf("redis get session during scan: %w", err)
		}

		var session domain.CheckoutSession
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("unmarshal session during scan: %w", err)
		}
		out = append(out, session)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan sessions: %w", err)
	}

	return out, nil
}
