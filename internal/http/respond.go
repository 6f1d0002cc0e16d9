package httpapi

import (
	"encoding/json"
	"net/http"
)

// apiError is the JSON error payload. Code is a stable machine-readable
// value so programmatic clients never have to parse Message.
type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Entity    string `json:"entity,omitempty"`
	ID        string `json:"id,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Code: code, Message: message})
}
