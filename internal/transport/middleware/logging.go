package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

// maxLoggedBody caps how much of a response body is kept for the log line.
const maxLoggedBody = 2048

// sensitiveFields are substrings of names whose values never reach the logs.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"key",
	"credential",
	"email",
}

// LoggingMiddleware writes one line when a request arrives and one when it
// completes. It runs after RequestID so both lines carry the trace id.
func LoggingMiddleware(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With("trace_id", logger.TraceID(r.Context()))

			reqLog.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", filterSensitiveQuery(r.URL.Query()),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", filterSensitiveHeaders(r.Header),
			)

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			logResponse(reqLog, r, rw, time.Since(start))
		})
	}
}

// responseWriter records the status and the head of the body.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func logResponse(log *slog.Logger, r *http.Request, rw *responseWriter, duration time.Duration) {
	status := rw.statusCode
	if status == 0 {
		status = http.StatusOK
	}

	level := slog.LevelInfo
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status >= http.StatusBadRequest:
		level = slog.LevelWarn
	}

	attrs := []any{
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
		"response_size", rw.size,
	}
	if status >= 300 && status < 400 {
		attrs = append(attrs, "location", filterSensitiveLocation(rw.Header().Get("Location")))
	} else if status >= http.StatusBadRequest {
		attrs = append(attrs, "body", filterSensitiveBody(rw.body.Bytes()))
	}

	log.Log(r.Context(), level, "response", attrs...)
}

// filterSensitiveLocation masks sensitive query parameters of a redirect target.
func filterSensitiveLocation(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.RawQuery == "" {
		return location
	}
	u.RawQuery = filterSensitiveQuery(u.Query())
	return u.String()
}

func filterSensitiveQuery(values url.Values) string {
	filtered := url.Values{}
	for name, vals := range values {
		if isSensitiveName(name) {
			filtered.Set(name, "[FILTERED]")
			continue
		}
		filtered[name] = vals
	}
	return filtered.Encode()
}

func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitiveField := range sensitiveFields {
		if strings.Contains(lower, sensitiveField) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitiveName(name) {
			filtered[name] = "[FILTERED]"
			continue
		}
		filtered[name] = strings.Join(values, ", ")
	}
	return filtered
}

// filterSensitiveBody masks sensitive fields of a JSON body. Anything that
// is not JSON is dropped if it mentions a sensitive name.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		lower := strings.ToLower(string(body))
		for _, sensitiveField := range sensitiveFields {
			if strings.Contains(lower, sensitiveField) {
				return "[FILTERED]"
			}
		}
		return string(body)
	}

	out, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[FILTERED]"
	}
	return string(out)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveName(key) {
				filtered[key] = "[FILTERED]"
				continue
			}
			filtered[key] = filterSensitiveJSON(value)
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = filterSensitiveJSON(item)
		}
		return filtered
	default:
		return v
	}
}
