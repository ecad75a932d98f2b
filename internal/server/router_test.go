package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/telhawk-systems/issuemirror/internal/handlers"
	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/service"
)

type stubService struct {
	calls int
}

func (s *stubService) HandlePayload(context.Context, []byte) (service.Outcome, error) {
	s.calls++
	return service.Outcome{Status: service.OutcomeIgnored}, nil
}

func newRouter(logger *logging.Logger) (http.Handler, *stubService) {
	svc := &stubService{}
	return NewRouter(handlers.NewWebhookHandler(svc, handlers.Options{}), "/webhook", logger), svc
}

func TestRouter_WebhookEndpoint(t *testing.T) {
	router, svc := newRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"object_kind":"push"}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.calls)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router, _ := newRouter(nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := newRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_RequestIDAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	router, _ := newRouter(logging.NewWithWriter(&buf, slog.LevelInfo, "json"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Request-ID", "req-77")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "req-77", rr.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"request_id":"req-77"`)
	assert.Contains(t, buf.String(), `"path":"/webhook"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
