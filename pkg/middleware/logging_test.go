package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recrutaedu/checkout-sessions/pkg/logger"
)

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "info", &buf)

	var seen string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/x", nil)

	h.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Correlation-ID"))
	assert.Contains(t, buf.String(), "http request")
}

func TestRequestLogging_PropagatesHeader(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "info", &buf)

	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/x", nil)
	req.Header.Set("X-Correlation-ID", "req-abc")

	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc", rec.Header().Get("X-Correlation-ID"))
	assert.Contains(t, buf.String(), "req-abc")
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "error", &buf)

	h := Recovery(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}
