// internal/api/middleware.go
package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apperrors "change-order-generator/internal/common/errors"
	"change-order-generator/internal/common/metrics"
)

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(started).Milliseconds(),
			"requestId":  chimiddleware.GetReqID(r.Context()),
			"remoteAddr": r.RemoteAddr,
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request completed", fields)
			return
		}
		s.logger.Info("request completed", fields)
	})
}

// rateLimit applies a fixed-window budget per client address. Limiter
// failures let the request through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := "ratelimit:" + clientKey(r)
		result, err := s.limiter.Allow(r.Context(), key, s.opts.RateLimit.Requests, s.opts.RateLimit.Window)
		if err != nil {
			s.logger.Warn("rate limiter unavailable", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.opts.RateLimit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			metrics.RateLimited.Inc()
			retryAfter := int(result.ResetIn.Round(time.Second) / time.Second)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.errors.WriteError(w, r, apperrors.NewRateLimitedError(
				fmt.Sprintf("limit of %d requests per %s reached", s.opts.RateLimit.Requests, s.opts.RateLimit.Window)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
