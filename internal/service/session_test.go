package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	pkgkafka "github.com/recrutaedu/checkout-sessions/pkg/kafka"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
	"github.com/recrutaedu/checkout-sessions/internal/event"
	"github.com/recrutaedu/checkout-sessions/internal/repository/memory"
)

// --- Test Helpers ---

var testStart = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEventProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// newTestService wires the service onto the in-memory repository with a
// controllable clock frozen at testStart.
func newTestService(t *testing.T) (*SessionService, *memory.SessionRepository) {
	t.Helper()
	repo := memory.NewSessionRepository()
	svc := NewSessionService(repo, newTestEventProducer(), newTestLogger(), DefaultSessionTTL, "", "/checkout")
	svc.now = func() time.Time { return testStart }
	return svc, repo
}

// advanceClock moves the service clock forward from testStart.
func advanceClock(svc *SessionService, d time.Duration) {
	svc.now = func() time.Time { return testStart.Add(d) }
}

func validInput() *CreateSessionInput {
	return &CreateSessionInput{
		ProductType:  domain.ProductTypePlan,
		ProductID:    "plan-pro",
		ProductName:  "Plano Profissional",
		ProductPrice: 99.9,
		UserID:       "user-456",
		UserAgent:    "Mozilla/5.0",
		OriginURL:    "https://recrutaedu.com.br/planos",
	}
}

// --- CreateSession ---

func TestCreateSession_Success(t *testing.T) {
	svc, repo := newTestService(t)

	session, err := svc.CreateSession(context.Background(), validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, domain.StatusPending, session.Status)
	assert.Equal(t, domain.ProductTypePlan, session.ProductType)
	assert.Equal(t, domain.DefaultCurrency, session.Currency)
	assert.Equal(t, testStart, session.CreatedAt)
	assert.Equal(t, testStart.Add(30*time.Minute), session.ExpiresAt)

	stored, err := repo.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, stored.ID)
}

func TestCreateSession_KeepsExplicitCurrency(t *testing.T) {
	svc, _ := newTestService(t)

	input := validInput()
	input.Currency = "USD"

	session, err := svc.CreateSession(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "USD", session.Currency)
}

func TestCreateSession_CopiesMetadata(t *testing.T) {
	svc, repo := newTestService(t)

	input := validInput()
	input.Metadata = map[string]string{"campaign": "black-friday"}

	session, err := svc.CreateSession(context.Background(), input)
	require.NoError(t, err)

	// Mutating the caller's map must not leak into the stored session.
	input.Metadata["campaign"] = "changed"

	stored, err := repo.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "black-friday", stored.Metadata["campaign"])
}

func TestCreateSession_ZeroPriceIsValid(t *testing.T) {
	svc, repo := newTestService(t)

	input := validInput()
	input.ProductID = "curso-intro"
	input.ProductName = "Curso Introdutório Gratuito"
	input.ProductType = domain.ProductTypeCourse
	input.ProductPrice = 0

	session, err := svc.CreateSession(context.Background(), input)

	require.NoError(t, err)
	assert.Zero(t, session.ProductPrice)
	assert.Equal(t, domain.StatusPending, session.Status)

	stored, err := repo.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.ProductPrice)
}

func TestCreateSession_ValidationFailures(t *testing.T) {
	svc, repo := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*CreateSessionInput)
	}{
		{"unknown product type", func(in *CreateSessionInput) { in.ProductType = "ebook" }},
		{"empty product type", func(in *CreateSessionInput) { in.ProductType = "" }},
		{"empty product id", func(in *CreateSessionInput) { in.ProductID = "" }},
		{"empty product name", func(in *CreateSessionInput) { in.ProductName = "" }},
		{"negative price", func(in *CreateSessionInput) { in.ProductPrice = -10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)

			session, err := svc.CreateSession(context.Background(), input)

			assert.Nil(t, session)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	session, err := svc.CreateSession(context.Background(), nil)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "failed creations must not store anything")
}

func TestCreateSession_DoesNotEvictPendingSessions(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	second, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// Both handles stay independently usable.
	assert.True(t, svc.ValidateSession(context.Background(), first.ID).Valid)
	assert.True(t, svc.ValidateSession(context.Background(), second.ID).Valid)
}

func TestCreateSession_SweepsDeadSessions(t *testing.T) {
	svc, repo := newTestService(t)

	expired, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	completed, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.MarkAsProcessing(context.Background(), completed.ID)
	require.NoError(t, err)
	_, err = svc.MarkAsCompleted(context.Background(), completed.ID)
	require.NoError(t, err)

	advanceClock(svc, 31*time.Minute)

	fresh, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, fresh.ID, all[0].ID)

	_, err = repo.Get(context.Background(), expired.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- GetSession ---

func TestGetSession_Success(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	got, err := svc.GetSession(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestGetSession_EmptyID(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.GetSession(context.Background(), "")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGetSession_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.GetSession(context.Background(), "no-such-session")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetSession_Expired(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	advanceClock(svc, 31*time.Minute)

	got, err := svc.GetSession(context.Background(), created.ID)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrGone)
}

func TestGetSession_AlreadyUsed(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.MarkAsProcessing(context.Background(), created.ID)
	require.NoError(t, err)

	got, err := svc.GetSession(context.Background(), created.ID)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrGone)
}

// --- ValidateSession ---

func TestValidateSession_Valid(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	result := svc.ValidateSession(context.Background(), created.ID)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Session)
	assert.Equal(t, created.ID, result.Session.ID)
}

func TestValidateSession_MissingID(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.ValidateSession(context.Background(), "")

	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão não informada", result.Error)
	assert.Nil(t, result.Session)
}

func TestValidateSession_UnknownID(t *testing.T) {
	svc, _ := newTestService(t)

	result := svc.ValidateSession(context.Background(), "no-such-session")

	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão não encontrada", result.Error)
}

func TestValidateSession_ExpiredByClock(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	advanceClock(svc, 31*time.Minute)

	result := svc.ValidateSession(context.Background(), created.ID)
	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão expirada", result.Error)

	// Expiry is idempotent: validating again yields the same answer.
	again := svc.ValidateSession(context.Background(), created.ID)
	assert.False(t, again.Valid)
	assert.Equal(t, "Sessão expirada", again.Error)
}

func TestValidateSession_UsableAtExactExpiry(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	advanceClock(svc, 30*time.Minute)

	result := svc.ValidateSession(context.Background(), created.ID)
	assert.True(t, result.Valid)
}

func TestValidateSession_CompletedIsAlreadyUsed(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.MarkAsProcessing(context.Background(), created.ID)
	require.NoError(t, err)
	_, err = svc.MarkAsCompleted(context.Background(), created.ID)
	require.NoError(t, err)

	result := svc.ValidateSession(context.Background(), created.ID)
	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão já utilizada", result.Error)
}

func TestValidateSession_ProcessingIsAlreadyUsed(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.MarkAsProcessing(context.Background(), created.ID)
	require.NoError(t, err)

	result := svc.ValidateSession(context.Background(), created.ID)
	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão já utilizada", result.Error)
}

func TestValidateSession_ExpiredStatusBeatsAlreadyUsed(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), created.ID, domain.StatusExpired)
	require.NoError(t, err)

	result := svc.ValidateSession(context.Background(), created.ID)
	assert.False(t, result.Valid)
	assert.Equal(t, "Sessão expirada", result.Error)
}

// --- UpdateStatus ---

func TestUpdateStatus_AllowedTransitions(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	session, err := svc.UpdateStatus(context.Background(), created.ID, domain.StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, session.Status)

	session, err = svc.UpdateStatus(context.Background(), created.ID, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, session.Status)
}

func TestUpdateStatus_IllegalTransitions(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		setup    []string
		toStatus string
	}{
		{"pending to completed skips processing", nil, domain.StatusCompleted},
		{"completed is terminal", []string{domain.StatusProcessing, domain.StatusCompleted}, domain.StatusProcessing},
		{"cancelled is terminal", []string{domain.StatusCancelled}, domain.StatusProcessing},
		{"processing cannot go back to pending", []string{domain.StatusProcessing}, domain.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created, err := svc.CreateSession(context.Background(), validInput())
			require.NoError(t, err)
			for _, status := range tt.setup {
				_, err = svc.UpdateStatus(context.Background(), created.ID, status)
				require.NoError(t, err)
			}

			session, err := svc.UpdateStatus(context.Background(), created.ID, tt.toStatus)

			assert.Nil(t, session)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
		})
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	session, err := svc.UpdateStatus(context.Background(), created.ID, "paid")
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	session, err := svc.UpdateStatus(context.Background(), "no-such-session", domain.StatusProcessing)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateStatus_ExpiredHandleCannotStartProcessing(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	advanceClock(svc, 31*time.Minute)

	session, err := svc.UpdateStatus(context.Background(), created.ID, domain.StatusProcessing)
	assert.Nil(t, session)
	assert.ErrorIs(t, err, apperrors.ErrGone)

	// Marking it expired or cancelling is still allowed.
	session, err = svc.UpdateStatus(context.Background(), created.ID, domain.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, session.Status)
}

func TestCancelSession(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	session, err := svc.CancelSession(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, session.Status)
}

// --- RemoveSession ---

func TestRemoveSession(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	require.NoError(t, svc.RemoveSession(context.Background(), created.ID))

	_, err = repo.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveSession_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.RemoveSession(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Sweep ---

func TestSweep_RemovesOnlyDeadSessions(t *testing.T) {
	svc, repo := newTestService(t)

	pending, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	processing, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.MarkAsProcessing(context.Background(), processing.ID)
	require.NoError(t, err)

	cancelled, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.CancelSession(context.Background(), cancelled.ID)
	require.NoError(t, err)

	removed := svc.Sweep(context.Background())
	assert.Equal(t, 1, removed)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.Get(context.Background(), pending.ID)
	assert.NoError(t, err)
	_, err = repo.Get(context.Background(), processing.ID)
	assert.NoError(t, err)
}

func TestSweep_RemovesTimeExpiredSessions(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)
	_, err = svc.CreateSession(context.Background(), validInput())
	require.NoError(t, err)

	advanceClock(svc, time.Hour)

	removed := svc.Sweep(context.Background())
	assert.Equal(t, 2, removed)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSweep_EmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, 0, svc.Sweep(context.Background()))
}
