package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

const TraceIDHeader = "X-Trace-ID"

// RequestID tags the request context and its logger with a trace id, taken
// from the caller when supplied.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.WithTraceID(r.Context(), traceID)
		w.Header().Set(TraceIDHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
