package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCORS(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		method     string
		wantStatus int
		wantNext   bool
	}{
		{"get", "*", http.MethodGet, http.StatusOK, true},
		{"put with fixed origin", "https://example.com", http.MethodPut, http.StatusOK, true},
		{"preflight", "*", http.MethodOptions, http.StatusNoContent, false},
		{"empty origin", "", http.MethodGet, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{corsOrigin: tt.origin}
			called := false
			h := s.withCORS(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(tt.method, "/corners", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantNext, called)
			assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestInstrumentKeepsStatus(t *testing.T) {
	h := instrument("/edit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/edit", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestLimitMutations(t *testing.T) {
	s := &Server{limiter: NewRateLimiter(2)}
	calls := 0
	h := s.limitMutations(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/corners", nil)
		req.RemoteAddr = "192.0.2.1:5000"
		w := httptest.NewRecorder()
		h(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPut).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodDelete).Code)

	w := do(http.MethodPut)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)

	// reads are never limited
	assert.Equal(t, http.StatusOK, do(http.MethodGet).Code)
	assert.Equal(t, 3, calls)
}

func TestLimitMutationsDisabled(t *testing.T) {
	s := &Server{}
	h := s.limitMutations(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	for range 10 {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/edit", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestWriteRateLimited(t *testing.T) {
	s := &Server{}

	w := httptest.NewRecorder()
	s.writeRateLimited(w, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal_error", resp.Error)

	w = httptest.NewRecorder()
	s.writeRateLimited(w, &RateLimitError{Limit: 5, RetryAfter: 41500 * time.Millisecond})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded single", map[string]string{"X-Forwarded-For": "203.0.113.9"}, "10.0.0.1:1", "203.0.113.9"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.7 "}, "10.0.0.1:1", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.4:8080", "192.0.2.4"},
		{"remote addr without port", nil, "192.0.2.4", "192.0.2.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}
