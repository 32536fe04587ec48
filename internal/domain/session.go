package domain

import (
	"time"
)

// Product type constants. These mirror the catalog the platform sells:
// recurring plans, one-off courses, and subscriptions.
const (
	ProductTypePlan         = "plano"
	ProductTypeCourse       = "curso"
	ProductTypeSubscription = "assinatura"
)

// Checkout session status constants.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusExpired    = "expired"
	StatusCancelled  = "cancelled"
)

// DefaultCurrency is applied when a payload does not specify one.
const DefaultCurrency = "BRL"

// MetadataSecurityToken is the metadata key under which the anti-tampering
// token is stored once a checkout URL has been issued.
const MetadataSecurityToken = "securityToken"

// CheckoutSession is a short-lived, single-use handle binding a purchase
// intent to a time-bounded, token-protected checkout URL.
type CheckoutSession struct {
	ID           string            `json:"id"`
	ProductType  string            `json:"product_type"`
	ProductID    string            `json:"product_id"`
	ProductName  string            `json:"product_name"`
	ProductPrice float64           `json:"product_price"`
	Currency     string            `json:"currency"`
	UserID       string            `json:"user_id,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
	UserAgent    string            `json:"user_agent,omitempty"`
	OriginURL    string            `json:"origin_url,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SecurityToken returns the token issued with the checkout URL, or "" if no
// URL has been issued yet.
func (s *CheckoutSession) SecurityToken() string {
	return s.Metadata[MetadataSecurityToken]
}

// IsExpiredAt reports whether the session has passed its expiry at the given
// instant. The boundary is inclusive: a session is still usable at exactly
// ExpiresAt.
func (s *CheckoutSession) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsUsableAt reports whether the session can still resume a checkout:
// pending and not expired.
func (s *CheckoutSession) IsUsableAt(now time.Time) bool {
	return s.Status == StatusPending && !s.IsExpiredAt(now)
}

// IsTerminal returns true if the session is in a final state.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired || s.Status == StatusCancelled
}

// transitions is the allowed status transition table. Terminal states have
// no outgoing edges.
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusExpired},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusExpired:    {},
	StatusCancelled:  {},
}

// CanTransition reports whether moving a session from one status to another
// is allowed.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatuses returns the set of valid session statuses.
func ValidStatuses() []string {
	return []string{
		StatusPending,
		StatusProcessing,
		StatusCompleted,
		StatusExpired,
		StatusCancelled,
	}
}

// IsValidStatus checks whether the given status string is a valid session status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidProductTypes returns the set of valid product types.
func ValidProductTypes() []string {
	return []string{ProductTypePlan, ProductTypeCourse, ProductTypeSubscription}
}

// IsValidProductType checks whether the given product type is valid.
func IsValidProductType(productType string) bool {
	for _, t := range ValidProductTypes() {
		if t == productType {
			return true
		}
	}
	return false
}
