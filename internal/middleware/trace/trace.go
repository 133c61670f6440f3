package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"multitool/internal/log"
)

type contextKey struct{}

// HeaderRequestID is echoed on every response so users can quote it.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns request IDs and logs request start and completion.
type Middleware struct {
	extractIP func(*http.Request) string
	requests  int64
	totalMs   int64
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime time.Duration
}

// NewMiddleware creates a new trace middleware. extractIP may be nil.
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Middleware returns HTTP middleware for request tracing. It must run inside
// log.Middleware so the request logger carries the request ID.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		logger := log.FromContext(ctx).With(log.FieldRequestID, requestID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		sl := log.NewStructuredLogger(logger)
		sl.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.AddInt64(&m.requests, 1)
		atomic.AddInt64(&m.totalMs, duration.Milliseconds())

		sl.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	n := atomic.LoadInt64(&m.requests)
	metrics := Metrics{TotalRequests: n}
	if n > 0 {
		metrics.AverageResponseTime = time.Duration(atomic.LoadInt64(&m.totalMs)/n) * time.Millisecond
	}
	return metrics
}
