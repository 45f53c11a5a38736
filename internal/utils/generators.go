package utils

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID returns the caller's request id if it looks sane, otherwise a
// fresh UUID.
func RequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" && len(id) <= 64 {
		return id
	}
	return uuid.NewString()
}
