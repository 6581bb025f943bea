package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON encodes v as the response body with the given status code. Every
// JSON response from this service is marked non-cacheable; token and error
// bodies must never be stored by intermediaries.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets Cache-Control: no-store and Pragma: no-cache, the headers
// RFC 6749 requires on token responses.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits a space-delimited value such as an OAuth2
// scope list. Empty or all-whitespace input yields nil.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
