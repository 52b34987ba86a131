package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"task-tracker/internal/metrics"
	"task-tracker/internal/ratelimit"
)

type contextKey string

const traceIDKey contextKey = "traceID"

// TraceIDHeader carries the per-request trace id back to the client.
const TraceIDHeader = "X-Trace-Id"

// TraceIDFromContext returns the trace id set by the trace middleware, or "".
func TraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// traceMiddleware stamps each request with a trace id, records its latency and logs completion.
func traceMiddleware(log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := uuid.NewString()
			ctx := context.WithValue(r.Context(), traceIDKey, traceID)
			w.Header().Set(TraceIDHeader, traceID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(route, strconv.Itoa(status), elapsed)

			log.Debug("request completed",
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("elapsed", elapsed))
		})
	}
}

// rateLimitMiddleware rejects clients that exceed their token bucket with 429.
func rateLimitMiddleware(limiter *ratelimit.MapLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				respondJSON(w, http.StatusTooManyRequests, envelope{
					Status:  statusFail,
					Kind:    kindRateLimited,
					Message: "Too many requests",
					TraceID: TraceIDFromContext(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
