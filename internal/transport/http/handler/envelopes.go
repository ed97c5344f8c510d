package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the single response shape of the API: a message, plus the
// email on successful token lookups.
type MessageEnvelope struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeInternal reports an infrastructure failure. Business-rule failures are
// never reported this way — they travel as 200s with a message.
func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "internal error"})
}

// WriteUnsupported is the shared fallback for unmatched method/path
// combinations. A 500 with a generic body, not a 404/405 — inherited contract.
func WriteUnsupported(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Message: "unsupported request"})
}
