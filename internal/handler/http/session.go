// Package http exposes the checkout session API over HTTP.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/recrutaedu/checkout-sessions/pkg/httputil"
	"github.com/recrutaedu/checkout-sessions/pkg/validator"
	"github.com/recrutaedu/checkout-sessions/internal/service"
)

// SessionHandler handles HTTP requests for checkout session endpoints.
type SessionHandler struct {
	service *service.SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(svc *service.SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateSessionRequest is the JSON request body for creating a session.
type CreateSessionRequest struct {
	ProductType  string            `json:"product_type" validate:"required,oneof=plano curso assinatura"`
	ProductID    string            `json:"product_id" validate:"required"`
	ProductName  string            `json:"product_name" validate:"required"`
	ProductPrice float64           `json:"product_price" validate:"gte=0"`
	Currency     string            `json:"currency" validate:"omitempty,len=3"`
	UserID       string            `json:"user_id"`
	OriginURL    string            `json:"origin_url" validate:"omitempty,url"`
	Metadata     map[string]string `json:"metadata"`
}

// UpdateStatusRequest is the JSON request body for a status update.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CheckoutURLResponse is the JSON payload carrying an issued checkout URL.
type CheckoutURLResponse struct {
	SessionID     string `json:"session_id"`
	URL           string `json:"url"`
	SecurityToken string `json:"security_token"`
	ExpiresAt     string `json:"expires_at"`
}

// TokenValidationResponse is the JSON payload for a token check.
type TokenValidationResponse struct {
	Valid bool `json:"valid"`
}

func (h *SessionHandler) decodeCreateRequest(w http.ResponseWriter, r *http.Request) (*service.CreateSessionInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return nil, false
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return nil, false
	}

	originURL := req.OriginURL
	if originURL == "" {
		originURL = r.Referer()
	}

	return &service.CreateSessionInput{
		ProductType:  req.ProductType,
		ProductID:    req.ProductID,
		ProductName:  req.ProductName,
		ProductPrice: req.ProductPrice,
		Currency:     req.Currency,
		UserID:       req.UserID,
		UserAgent:    r.UserAgent(),
		OriginURL:    originURL,
		Metadata:     req.Metadata,
	}, true
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeCreateRequest(w, r)
	if !ok {
		return
	}

	session, err := h.service.CreateSession(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: session})
}

// CreateCheckoutURL handles POST /api/v1/sessions/checkout-url, the one-step
// storefront path: create a session and issue its URL.
func (h *SessionHandler) CreateCheckoutURL(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeCreateRequest(w, r)
	if !ok {
		return
	}

	issued, err := h.service.CreateCheckoutURL(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: CheckoutURLResponse{
		SessionID:     issued.Session.ID,
		URL:           issued.URL,
		SecurityToken: issued.SecurityToken,
		ExpiresAt:     issued.Session.ExpiresAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}})
}

// GetSession handles GET /api/v1/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// ValidateSession handles GET /api/v1/sessions/{id}/validate. The outcome is
// always 200: the checkout page renders the result either way.
func (h *SessionHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result := h.service.ValidateSession(r.Context(), id)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// IssueCheckoutURL handles POST /api/v1/sessions/{id}/url
func (h *SessionHandler) IssueCheckoutURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	issued, err := h.service.IssueCheckoutURL(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CheckoutURLResponse{
		SessionID:     issued.Session.ID,
		URL:           issued.URL,
		SecurityToken: issued.SecurityToken,
		ExpiresAt:     issued.Session.ExpiresAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}})
}

// ValidateToken handles GET /api/v1/sessions/{id}/token/validate?token=...
func (h *SessionHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")

	valid := h.service.ValidateToken(r.Context(), id, token)

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: TokenValidationResponse{Valid: valid}})
}

// UpdateStatus handles PATCH /api/v1/sessions/{id}/status
func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	session, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// ProcessSession handles POST /api/v1/sessions/{id}/process
func (h *SessionHandler) ProcessSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.MarkAsProcessing(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// CompleteSession handles POST /api/v1/sessions/{id}/complete
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.MarkAsCompleted(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// CancelSession handles POST /api/v1/sessions/{id}/cancel
func (h *SessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.service.CancelSession(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// RemoveSession handles DELETE /api/v1/sessions/{id}
func (h *SessionHandler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.RemoveSession(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
