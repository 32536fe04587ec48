package domain

// User-facing validation messages. The checkout page renders these verbatim,
// so the vocabulary is fixed; internal diagnostics go to logs and metrics
// instead of new message strings.
const (
	ReasonMissingID   = "Sessão não informada"
	ReasonNotFound    = "Sessão não encontrada"
	ReasonExpired     = "Sessão expirada"
	ReasonAlreadyUsed = "Sessão já utilizada"
)

// ValidationResult is the discriminated outcome of validating a session
// handle when the checkout page loads.
type ValidationResult struct {
	Valid   bool             `json:"valid"`
	Session *CheckoutSession `json:"session,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Invalid builds a failed ValidationResult with the given reason.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Error: reason}
}

// ValidSession builds a successful ValidationResult carrying the session.
func ValidSession(s *CheckoutSession) ValidationResult {
	return ValidationResult{Valid: true, Session: s}
}
