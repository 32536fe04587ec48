package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recrutaedu/checkout-sessions/pkg/database"
	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestRepo(t *testing.T) (*SessionRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewSessionRepository(mock)
	return repo, mock
}

func sampleSession() *domain.CheckoutSession {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.CheckoutSession{
		ID:           "sess-001",
		ProductType:  domain.ProductTypeSubscription,
		ProductID:    "a7",
		ProductName:  "Assinatura Única",
		ProductPrice: 59.9,
		Currency:     "BRL",
		UserID:       "user-001",
		Status:       domain.StatusPending,
		UserAgent:    "Mozilla/5.0",
		OriginURL:    "https://example.com/planos",
		Metadata:     map[string]string{domain.MetadataSecurityToken: "tok-abc"},
		CreatedAt:    now,
		ExpiresAt:    now.Add(30 * time.Minute),
	}
}

func sessionColumnNames() []string {
	return []string{
		"id", "product_type", "product_id", "product_name", "product_price",
		"currency", "user_id", "status", "user_agent", "origin_url", "metadata",
		"created_at", "expires_at",
	}
}

func sessionRow(t *testing.T, s *domain.CheckoutSession) []any {
	t.Helper()

	metadataJSON, err := json.Marshal(s.Metadata)
	require.NoError(t, err)

	return []any{
		s.ID, s.ProductType, s.ProductID, s.ProductName, s.ProductPrice,
		s.Currency, s.UserID, s.Status, s.UserAgent, s.OriginURL, metadataJSON,
		s.CreatedAt, s.ExpiresAt,
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	s := sampleSession()

	mock.ExpectQuery("SELECT(.+)FROM checkout_sessions").
		WithArgs(s.ID).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()).AddRow(sessionRow(t, s)...))

	got, err := repo.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.ProductName, got.ProductName)
	assert.Equal(t, s.ProductPrice, got.ProductPrice)
	assert.Equal(t, "tok-abc", got.SecurityToken())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT(.+)FROM checkout_sessions").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()))

	got, err := repo.Get(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_QueryError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT(.+)FROM checkout_sessions").
		WithArgs("sess-001").
		WillReturnError(errors.New("connection refused"))

	got, err := repo.Get(context.Background(), "sess-001")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Put
// ---------------------------------------------------------------------------

func TestPut_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	s := sampleSession()

	metadataJSON, err := json.Marshal(s.Metadata)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO checkout_sessions").
		WithArgs(
			s.ID, s.ProductType, s.ProductID, s.ProductName, s.ProductPrice,
			s.Currency, s.UserID, s.Status, s.UserAgent, s.OriginURL, metadataJSON,
			s.CreatedAt, s.ExpiresAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Put(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_ExecError(t *testing.T) {
	repo, mock := newTestRepo(t)
	s := sampleSession()

	mock.ExpectExec("INSERT INTO checkout_sessions").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("disk full"))

	err := repo.Put(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert checkout session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Delete / List
// ---------------------------------------------------------------------------

func TestDelete_Success(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("DELETE FROM checkout_sessions").
		WithArgs("sess-001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "sess-001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_AbsentIDIsNoop(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("DELETE FROM checkout_sessions").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, repo.Delete(context.Background(), "missing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Success(t *testing.T) {
	repo, mock := newTestRepo(t)

	a := sampleSession()
	b := sampleSession()
	b.ID = "sess-002"
	b.Status = domain.StatusCompleted

	rows := pgxmock.NewRows(sessionColumnNames()).
		AddRow(sessionRow(t, a)...).
		AddRow(sessionRow(t, b)...)

	mock.ExpectQuery("SELECT(.+)FROM checkout_sessions").WillReturnRows(rows)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sess-001", all[0].ID)
	assert.Equal(t, domain.StatusCompleted, all[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT(.+)FROM checkout_sessions").
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()))

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}
