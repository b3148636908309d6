package handlers_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/kamino-gate/internal/handlers"
	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("healthy", func(t *testing.T) {
		h := handlers.NewHealthHandler(&handlers.MockHealthChecker{}, logger)
		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		h := handlers.NewHealthHandler(&handlers.MockHealthChecker{Err: errors.New("dial tcp: refused")}, logger)
		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest("GET", "/health", nil))

		handlers.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "service_unavailable")
		assert.NotContains(t, w.Body.String(), "refused")
	})
}
