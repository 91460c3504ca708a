package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/psgc-api/pkg/tracing"
)

// Trace opens a root span per request, keyed by the request ID, and logs the
// finished span tree at debug level. Place it inside RequestID.
func Trace(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, logger.RequestID(r.Context()))
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))
			span.SetAttr("status", sw.status)
			span.End()
			span.Log(ctx, log)
		})
	}
}
