package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"drinkMenuAPI/internal/response"
)

// Recoverer turns a handler panic into a 500 with the standard error body.
func Recoverer(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.WithFields(logrus.Fields{
						"panic":      rec,
						"request_id": RequestIDFromContext(r.Context()),
						"stack":      string(debug.Stack()),
					}).Error("handler panicked")
					response.Error(w, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
