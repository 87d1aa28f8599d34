package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/R3E-Network/action_layer/pkg/result"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteResult writes the transport form of res.
func WriteResult(w http.ResponseWriter, res result.Result) {
	body, status := res.ToResponse()
	WriteJSON(w, status, body)
}

// WriteError writes an error Result built from message and status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteResult(w, result.Error(message, result.WithStatus(status)))
}
