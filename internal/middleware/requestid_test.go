package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		existingID string
	}{
		{name: "generates new request ID when not present"},
		{name: "propagates existing request ID", existingID: "existing-req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
			if tt.existingID != "" {
				req.Header.Set(RequestIDHeader, tt.existingID)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			require.NotEmpty(t, captured)
			assert.Equal(t, captured, rr.Header().Get(RequestIDHeader))
			if tt.existingID == "" {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.existingID, captured)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "replay-1")
	assert.Equal(t, "replay-1", GetRequestID(ctx))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		id := rr.Header().Get(RequestIDHeader)
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for first hop", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:5000", want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.9"}, remote: "1.1.1.1:5000", want: "10.0.0.9"},
		{name: "remote addr strips port", remote: "192.168.1.4:4431", want: "192.168.1.4"},
		{name: "remote addr without port", remote: "192.168.1.4", want: "192.168.1.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestPeerIPIgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.Header.Set("X-Real-IP", "10.0.0.2")

	assert.Equal(t, "203.0.113.7", PeerIP(req))
	assert.Equal(t, "10.0.0.1", ClientIP(req))
}
