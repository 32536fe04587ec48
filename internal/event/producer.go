package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/recrutaedu/checkout-sessions/pkg/kafka"
	"github.com/recrutaedu/checkout-sessions/internal/domain"
)

// Kafka topic constants for checkout session domain events.
const (
	TopicSessionCreated       = "recrutaedu.checkout.session.created"
	TopicSessionStatusChanged = "recrutaedu.checkout.session.status_changed"
	TopicSessionRemoved       = "recrutaedu.checkout.session.removed"
)

// Aggregate type constant.
const AggregateTypeSession = "checkout_session"

// Source identifier for events originating from this service.
const SourceSessionsService = "checkout-sessions"

// SessionCreatedData is the payload for a session.created event.
type SessionCreatedData struct {
	ID           string  `json:"id"`
	ProductType  string  `json:"product_type"`
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	Currency     string  `json:"currency"`
	UserID       string  `json:"user_id,omitempty"`
	ExpiresAt    string  `json:"expires_at"`
}

// SessionStatusChangedData is the payload for a session.status_changed event.
type SessionStatusChangedData struct {
	ID         string `json:"id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	UserID     string `json:"user_id,omitempty"`
}

// SessionRemovedData is the payload for a session.removed event.
type SessionRemovedData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Removal reason constants.
const (
	RemovalReasonExpired  = "expired"
	RemovalReasonSwept    = "swept"
	RemovalReasonExplicit = "explicit"
)

// Producer publishes checkout session domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the checkout sessions service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishSessionCreated publishes a session.created event.
func (p *Producer) PublishSessionCreated(ctx context.Context, session *domain.CheckoutSession) error {
	data := SessionCreatedData{
		ID:           session.ID,
		ProductType:  session.ProductType,
		ProductID:    session.ProductID,
		ProductName:  session.ProductName,
		ProductPrice: session.ProductPrice,
		Currency:     session.Currency,
		UserID:       session.UserID,
		ExpiresAt:    session.ExpiresAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}

	event, err := pkgkafka.NewEvent(TopicSessionCreated, session.ID, AggregateTypeSession, SourceSessionsService, data)
	if err != nil {
		return fmt.Errorf("create session.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionCreated, event); err != nil {
		return fmt.Errorf("publish session.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.created event",
		slog.String("session_id", session.ID),
		slog.String("product_type", session.ProductType),
	)

	return nil
}

// PublishSessionStatusChanged publishes a session.status_changed event.
func (p *Producer) PublishSessionStatusChanged(ctx context.Context, session *domain.CheckoutSession, fromStatus string) error {
	data := SessionStatusChangedData{
		ID:         session.ID,
		FromStatus: fromStatus,
		ToStatus:   session.Status,
		UserID:     session.UserID,
	}

	event, err := pkgkafka.NewEvent(TopicSessionStatusChanged, session.ID, AggregateTypeSession, SourceSessionsService, data)
	if err != nil {
		return fmt.Errorf("create session.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionStatusChanged, event); err != nil {
		return fmt.Errorf("publish session.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.status_changed event",
		slog.String("session_id", session.ID),
		slog.String("from_status", fromStatus),
		slog.String("to_status", session.Status),
	)

	return nil
}

// PublishSessionRemoved publishes a session.removed event.
func (p *Producer) PublishSessionRemoved(ctx context.Context, session *domain.CheckoutSession, reason string) error {
	data := SessionRemovedData{
		ID:     session.ID,
		Status: session.Status,
		Reason: reason,
	}

	event, err := pkgkafka.NewEvent(TopicSessionRemoved, session.ID, AggregateTypeSession, SourceSessionsService, data)
	if err != nil {
		return fmt.Errorf("create session.removed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionRemoved, event); err != nil {
		return fmt.Errorf("publish session.removed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.removed event",
		slog.String("session_id", session.ID),
		slog.String("reason", reason),
	)

	return nil
}
