// Package middleware provides HTTP middleware for the API layer.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/davidhaber/taskengine/internal/api/shared"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// TraceMiddleware attaches a trace ID to the request context and echoes
// it in the X-Trace-ID response header so clients can correlate task
// status queries with the invocation that created them. It also logs
// request completion with status and duration. Apply it early in the
// chain so all handlers see the trace ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)
		w.Header().Set("X-Trace-ID", traceID)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		slog.Debug("request completed",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}
