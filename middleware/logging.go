package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDKey contextKey = "requestID"

const requestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id (the caller's X-Request-ID
// when present) and logs one line when it completes.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			ww := newStatusRecorder(w)
			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			next.ServeHTTP(ww, r.WithContext(ctx))

			entry := logger.WithFields(logrus.Fields{
				"request_id":  id,
				"method":      r.Method,
				"path":        routeTemplate(r),
				"status":      ww.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})
			if ww.statusCode >= http.StatusInternalServerError {
				entry.Warn("request completed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
