package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/storefront/pkg/logger"
)

// Recovery turns handler panics into 500 responses.
func Recovery(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(map[string]interface{}{
					"trace_id": GetTraceID(r.Context()),
					"path":     r.URL.Path,
					"panic":    fmt.Sprint(rec),
					"stack":    string(debug.Stack()),
				}).Error("handler panic")
				if !wrapped.written {
					http.Error(wrapped, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}
