package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type RecordAccessRequest struct {
	Token string `json:"token"`
	OTP   string `json:"otp"`
}

type RecordResponse struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Type    string    `json:"record_type"`
	FileURL *string   `json:"file_url,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
