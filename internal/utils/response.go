package utils

import (
	"encoding/json"
	"net/http"

	"seller-portal/internal/models"
)

// WriteJSON sends data with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError sends the flat failure envelope.
func WriteError(w http.ResponseWriter, status int, resp models.ErrorResponse) error {
	resp.OK = false
	return WriteJSON(w, status, resp)
}

// ErrorMessage is the common case of WriteError with only a message.
func ErrorMessage(w http.ResponseWriter, status int, message string) error {
	return WriteError(w, status, models.ErrorResponse{Error: message})
}
