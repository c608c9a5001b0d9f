package server

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// handle registers h under route with CORS, metrics and, for routes that
// change state, the mutation limiter.
func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc, mutating bool) {
	if mutating {
		h = s.limitMutations(h)
	}
	mux.HandleFunc(route, s.withCORS(instrument(route, h)))
}

// withCORS stamps the CORS headers and answers preflight requests itself.
func (s *Server) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// instrument counts requests and observes their latency under route, so
// the label set stays bounded whatever paths clients send.
func instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(sr, r)
		requestSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sr.status)).Inc()
	}
}

// limitMutations applies the per-client limiter to everything but reads.
func (s *Server) limitMutations(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		if err := s.limiter.Allow(clientKey(r)); err != nil {
			rejectedMutations.Inc()
			s.writeRateLimited(w, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeRateLimited(w http.ResponseWriter, err error) {
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		s.writeErrorResponse(w, "internal_error", "Rate limiting check failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	s.writeErrorResponse(w, "rate_limit_exceeded", rl.Error(), http.StatusTooManyRequests)
}

// clientKey identifies the caller for rate limiting. A proxy-supplied
// address wins over the socket peer.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
