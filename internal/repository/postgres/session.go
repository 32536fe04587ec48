// Package postgres provides the PostgreSQL-backed session repository, used
// when checkout handles must survive process restarts.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recrutaedu/checkout-sessions/pkg/database"
	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool database.PgxPool
}

// NewSessionRepository creates a new PostgreSQL-backed session repository.
func NewSessionRepository(pool database.PgxPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `
	id, product_type, product_id, product_name, product_price,
	currency, user_id, status, user_agent, origin_url, metadata,
	created_at, expires_at`

// Get retrieves a session by its id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM checkout_sessions
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("checkout_session", id)
		}
		return nil, fmt.Errorf("select checkout session: %w", err)
	}

	return session, nil
}

// Put inserts or overwrites the session stored under its id.
func (r *SessionRepository) Put(ctx context.Context, session *domain.CheckoutSession) error {
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (
			id, product_type, product_id, product_name, product_price,
			currency, user_id, status, user_agent, origin_url, metadata,
			created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			expires_at = EXCLUDED.expires_at`

	_, err = r.pool.Exec(ctx, query,
		session.ID,
		session.ProductType,
		session.ProductID,
		session.ProductName,
		session.ProductPrice,
		session.Currency,
		session.UserID,
		session.Status,
		session.UserAgent,
		session.OriginURL,
		metadataJSON,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert checkout session: %w", err)
	}

	return nil
}

// Delete removes a session by id. Deleting an absent id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM checkout_sessions WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete checkout session: %w", err)
	}

	return nil
}

// List returns all stored sessions.
func (r *SessionRepository) List(ctx context.Context) ([]domain.CheckoutSession, error) {
	query := `SELECT` + sessionColumns + `
		FROM checkout_sessions`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select checkout sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckoutSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout session: %w", err)
		}
		out = append(out, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout sessions: %w", err)
	}

	return out, nil
}

// scanSession scans one row into a session, decoding the metadata JSONB.
func scanSession(row pgx.Row) (*domain.CheckoutSession, error) {
	var (
		session      domain.CheckoutSession
		metadataJSON []byte
	)

	err := row.Scan(
		&session.ID,
		&session.ProductType,
		&session.ProductID,
		&session.ProductName,
		&session.ProductPrice,
		&session.Currency,
		&session.UserID,
		&session.Status,
		&session.UserAgent,
		&session.OriginURL,
		&metadataJSON,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &session, nil
}
