package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telhawk-systems/issuemirror/internal/handlers"
	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/middleware"
)

// NewRouter registers the webhook, health and metrics routes.
func NewRouter(h *handlers.WebhookHandler, webhookPath string, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(webhookPath, h.HandleWebhook)

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	mux.Handle("/metrics", promhttp.Handler())

	if logger == nil {
		logger = logging.Discard()
	}
	return middleware.RequestID(accessLog(logger, mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			return
		}
		logger.InfoContext(r.Context(), "HTTP request",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(rec.status),
			logging.Duration(time.Since(start)),
			logging.IP(middleware.ClientIP(r)),
		)
	})
}
