package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"seller-portal/internal/logger"
)

// RequestLogger logs one line per request and echoes the request id.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := RequestID(r)
			w.Header().Set(RequestIDHeader, reqID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, fmt.Sprintf("%s [%s]", r.URL.Path, reqID), strconv.Itoa(status), time.Since(start).String())
		})
	}
}

// MethodNotAllowed and NotFound keep chi's fallbacks in the JSON envelope.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	ErrorMessage(w, http.StatusNotFound, "not found")
}
