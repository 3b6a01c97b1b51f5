package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondNegotiated writes body as YAML when the request's Accept header
// asks for it, and JSON otherwise. Used only by GET /graph, whose YAML
// mirror is named in the domain-stack wiring.
func respondNegotiated(w http.ResponseWriter, r *http.Request, status int, body any) {
	if strings.Contains(r.Header.Get("Accept"), "application/x-yaml") {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.WriteHeader(status)
		_ = yaml.NewEncoder(w).Encode(body)
		return
	}
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, errorResponse{Detail: detail})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
