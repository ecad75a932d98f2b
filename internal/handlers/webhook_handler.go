package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/middleware"
	"github.com/telhawk-systems/issuemirror/internal/ratelimit"
	"github.com/telhawk-systems/issuemirror/internal/service"
)

// TokenHeader carries the shared secret configured on the GitLab webhook.
const TokenHeader = "X-Gitlab-Token"

// PayloadHandler is satisfied by *service.MirrorService.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, body []byte) (service.Outcome, error)
}

type Options struct {
	// Secret, when set, must match the X-Gitlab-Token header.
	Secret       string
	MaxBodyBytes int64

	// TrustProxyHeaders keys rate limiting on X-Forwarded-For/X-Real-IP
	// instead of the socket peer. Only enable behind a proxy that sets them.
	TrustProxyHeaders bool

	RateLimiter ratelimit.RateLimiter
	Logger      *logging.Logger
}

type WebhookHandler struct {
	service PayloadHandler
	opts    Options
}

func NewWebhookHandler(svc PayloadHandler, opts Options) *WebhookHandler {
	if opts.RateLimiter == nil {
		opts.RateLimiter = ratelimit.NoOpRateLimiter{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{service: svc, opts: opts}
}

type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HandleWebhook receives one delivery. Every event that parses is answered
// with 200 once reconciliation has been attempted, whatever its outcome.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.opts.Secret != "" {
		token := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.Secret)) != 1 {
			h.opts.Logger.WarnContext(ctx, "Rejected webhook with invalid token", logging.IP(middleware.ClientIP(r)))
			h.sendError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
	}

	clientIP := middleware.PeerIP(r)
	if h.opts.TrustProxyHeaders {
		clientIP = middleware.ClientIP(r)
	}
	allowed, err := h.opts.RateLimiter.Allow(ctx, clientIP)
	if err != nil {
		h.opts.Logger.WarnContext(ctx, "Rate limiter unavailable, allowing request", logging.Error(err))
	} else if !allowed {
		h.sendError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.sendError(w, http.StatusBadRequest, "could not read body")
		return
	}

	if _, err := h.service.HandlePayload(ctx, body); err != nil {
		h.opts.Logger.WarnContext(ctx, "Rejected malformed webhook", logging.Error(err))
		h.sendError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	h.sendJSON(w, http.StatusOK, response{Status: "success"})
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, response{Status: "healthy"})
}

func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, response{Status: "ready"})
}

func (h *WebhookHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, response{Status: "error", Message: message})
}

func (h *WebhookHandler) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
