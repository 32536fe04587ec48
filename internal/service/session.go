// Package service implements the business logic for checkout session
// handles: creation, validation, the status lifecycle and the opportunistic
// sweep of dead sessions.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/recrutaedu/checkout-sessions/pkg/errors"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
	"github.com/recrutaedu/checkout-sessions/internal/event"
	"github.com/recrutaedu/checkout-sessions/internal/repository"
)

const (
	// DefaultSessionTTL is how long a checkout session remains valid.
	DefaultSessionTTL = 30 * time.Minute
)

var (
	sessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Total number of checkout sessions created.",
	}, []string{"product_type"})

	sessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_swept_total",
		Help: "Total number of dead checkout sessions removed by the sweep.",
	})

	sessionValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_session_validations_total",
		Help: "Total number of session validations by outcome.",
	}, []string{"outcome"})

	storeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_session_store_failures_total",
		Help: "Total number of session store operations that failed.",
	}, []string{"operation"})
)

// SessionService implements the checkout session lifecycle.
type SessionService struct {
	repo     repository.SessionRepository
	producer *event.Producer
	logger   *slog.Logger
	ttl      time.Duration

	baseURL      string
	checkoutPath string

	// now is swappable so tests can advance the clock.
	now func() time.Time
}

// NewSessionService creates a new checkout session service.
func NewSessionService(
	repo repository.SessionRepository,
	producer *event.Producer,
	logger *slog.Logger,
	ttl time.Duration,
	baseURL, checkoutPath string,
) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if checkoutPath == "" {
		checkoutPath = "/checkout"
	}
	return &SessionService{
		repo:         repo,
		producer:     producer,
		logger:       logger,
		ttl:          ttl,
		baseURL:      baseURL,
		checkoutPath: checkoutPath,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateSessionInput holds the parameters for creating a checkout session.
type CreateSessionInput struct {
	ProductType  string            `json:"product_type" validate:"required,oneof=plano curso assinatura"`
	ProductID    string            `json:"product_id" validate:"required"`
	ProductName  string            `json:"product_name" validate:"required"`
	ProductPrice float64           `json:"product_price" validate:"gte=0"`
	Currency     string            `json:"currency" validate:"omitempty,len=3"`
	UserID       string            `json:"user_id" validate:"omitempty"`
	UserAgent    string            `json:"-"`
	OriginURL    string            `json:"origin_url" validate:"omitempty,url"`
	Metadata     map[string]string `json:"metadata" validate:"omitempty"`
}

// CreateSession creates a new pending checkout session with a fresh id and
// the configured expiry. Dead sessions are swept opportunistically before
// the new one is stored.
func (s *SessionService) CreateSession(ctx context.Context, input *CreateSessionInput) (*domain.CheckoutSession, error) {
	if input == nil {
		return nil, apperrors.InvalidInput("session input is required")
	}
	if !domain.IsValidProductType(input.ProductType) {
		return nil, apperrors.InvalidInput("product_type must be one of: plano, curso, assinatura")
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	if input.ProductName == "" {
		return nil, apperrors.InvalidInput("product_name is required")
	}
	if input.ProductPrice < 0 {
		return nil, apperrors.InvalidInput("product_price must not be negative")
	}

	// Creating a session is the natural moment to collect garbage left by
	// abandoned checkouts.
	s.sweep(ctx)

	now := s.now()
	currency := input.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	metadata := make(map[string]string, len(input.Metadata))
	for k, v := range input.Metadata {
		metadata[k] = v
	}

	session := &domain.CheckoutSession{
		ID:           uuid.New().String(),
		ProductType:  input.ProductType,
		ProductID:    input.ProductID,
		ProductName:  input.ProductName,
		ProductPrice: input.ProductPrice,
		Currency:     currency,
		UserID:       input.UserID,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
		UserAgent:    input.UserAgent,
		OriginURL:    input.OriginURL,
		Metadata:     metadata,
	}

	s.put(ctx, session)

	if err := s.producer.PublishSessionCreated(ctx, session); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session.created event",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	sessionsCreatedTotal.WithLabelValues(session.ProductType).Inc()

	s.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_id", session.ID),
		slog.String("product_type", session.ProductType),
		slog.String("product_id", session.ProductID),
		slog.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// GetSession returns a session that is still usable. A missing id yields
// not found, an expired handle yields gone and a consumed handle yields
// gone as well. Reads never mutate the store.
func (s *SessionService) GetSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	session, ok := s.get(ctx, id)
	if !ok {
		return nil, apperrors.NotFound("checkout_session", id)
	}

	now := s.now()
	if session.IsExpiredAt(now) {
		return nil, apperrors.Gone("checkout session has expired")
	}
	if session.Status != domain.StatusPending {
		return nil, apperrors.Gone("checkout session has already been used")
	}

	return session, nil
}

// ValidateSession checks whether a session id refers to a live, unused
// handle. It never returns an error: storage failures count as a miss and
// every outcome maps to a user-facing reason.
func (s *SessionService) ValidateSession(ctx context.Context, id string) domain.ValidationResult {
	if id == "" {
		sessionValidationsTotal.WithLabelValues("missing_id").Inc()
		return domain.Invalid(domain.ReasonMissingID)
	}

	session, ok := s.get(ctx, id)
	if !ok {
		sessionValidationsTotal.WithLabelValues("not_found").Inc()
		return domain.Invalid(domain.ReasonNotFound)
	}

	now := s.now()
	if session.Status == domain.StatusExpired || session.IsExpiredAt(now) {
		sessionValidationsTotal.WithLabelValues("expired").Inc()
		return domain.Invalid(domain.ReasonExpired)
	}
	if session.Status != domain.StatusPending {
		sessionValidationsTotal.WithLabelValues("already_used").Inc()
		return domain.Invalid(domain.ReasonAlreadyUsed)
	}

	sessionValidationsTotal.WithLabelValues("valid").Inc()
	return domain.ValidSession(session)
}

// UpdateStatus moves a session to a new status, enforcing the transition
// table. Updating an expired handle to anything but expired or cancelled
// fails with gone.
func (s *SessionService) UpdateStatus(ctx context.Context, id, newStatus string) (*domain.CheckoutSession, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}
	if !domain.IsValidStatus(newStatus) {
		return nil, apperrors.InvalidInput("invalid status: " + newStatus)
	}

	session, ok := s.get(ctx, id)
	if !ok {
		return nil, apperrors.NotFound("checkout_session", id)
	}

	now := s.now()
	if session.IsExpiredAt(now) && newStatus != domain.StatusExpired && newStatus != domain.StatusCancelled {
		return nil, apperrors.Gone("checkout session has expired")
	}

	if !domain.CanTransition(session.Status, newStatus) {
		return nil, apperrors.InvalidTransition(session.Status, newStatus)
	}

	fromStatus := session.Status
	session.Status = newStatus
	s.put(ctx, session)

	if err := s.producer.PublishSessionStatusChanged(ctx, session, fromStatus); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session.status_changed event",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout session status updated",
		slog.String("session_id", session.ID),
		slog.String("from_status", fromStatus),
		slog.String("to_status", newStatus),
	)

	return session, nil
}

// MarkAsProcessing moves a pending session to processing, consuming the
// single-use handle.
func (s *SessionService) MarkAsProcessing(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.UpdateStatus(ctx, id, domain.StatusProcessing)
}

// MarkAsCompleted moves a processing session to completed.
func (s *SessionService) MarkAsCompleted(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.UpdateStatus(ctx, id, domain.StatusCompleted)
}

// CancelSession cancels a pending or processing session.
func (s *SessionService) CancelSession(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return s.UpdateStatus(ctx, id, domain.StatusCancelled)
}

// RemoveSession deletes a session outright.
func (s *SessionService) RemoveSession(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("session id is required")
	}

	session, ok := s.get(ctx, id)
	if !ok {
		return apperrors.NotFound("checkout_session", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		storeFailuresTotal.WithLabelValues("delete").Inc()
		s.logger.ErrorContext(ctx, "failed to delete checkout session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		return apperrors.Internal(err)
	}

	if err := s.producer.PublishSessionRemoved(ctx, session, event.RemovalReasonExplicit); err != nil {
		s.logger.WarnContext(ctx, "failed to publish session.removed event",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout session removed",
		slog.String("session_id", id),
	)

	return nil
}

// Sweep removes sessions that can never be used again: time-expired handles
// and handles in a terminal status. Pending and processing sessions that are
// still within their lifetime are untouched. Returns the number removed.
func (s *SessionService) Sweep(ctx context.Context) int {
	return s.sweep(ctx)
}

func (s *SessionService) sweep(ctx context.Context) int {
	sessions, err := s.repo.List(ctx)
	if err != nil {
		storeFailuresTotal.WithLabelValues("list").Inc()
		s.logger.WarnContext(ctx, "sweep skipped: failed to list checkout sessions",
			slog.String("error", err.Error()),
		)
		return 0
	}

	now := s.now()
	removed := 0
	for i := range sessions {
		session := &sessions[i]

		expired := session.IsExpiredAt(now)
		if !expired && !session.IsTerminal() {
			continue
		}

		if err := s.repo.Delete(ctx, session.ID); err != nil {
			storeFailuresTotal.WithLabelValues("delete").Inc()
			s.logger.WarnContext(ctx, "sweep failed to delete checkout session",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		reason := event.RemovalReasonSwept
		if expired {
			reason = event.RemovalReasonExpired
		}
		if err := s.producer.PublishSessionRemoved(ctx, session, reason); err != nil {
			s.logger.WarnContext(ctx, "failed to publish session.removed event",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}

		removed++
		sessionsSweptTotal.Inc()
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "swept dead checkout sessions",
			slog.Int("removed", removed),
		)
	}

	return removed
}

// get loads a session, treating any storage failure as a miss.
func (s *SessionService) get(ctx context.Context, id string) (*domain.CheckoutSession, bool) {
	session, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			storeFailuresTotal.WithLabelValues("get").Inc()
			s.logger.ErrorContext(ctx, "failed to load checkout session, treating as miss",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return session, true
}

// put stores a session, logging storage failures without surfacing them.
func (s *SessionService) put(ctx context.Context, session *domain.CheckoutSession) {
	if err := s.repo.Put(ctx, session); err != nil {
		storeFailuresTotal.WithLabelValues("put").Inc()
		s.logger.ErrorContext(ctx, "failed to store checkout session",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
}
