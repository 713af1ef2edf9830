// Package httpx carries the JSON request/response conventions shared by
// every handler: RFC 7807 problem bodies for errors and a single decode
// path for request payloads.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// Request bodies on this API are carts, customers and trigger payloads.
// Anything past this size is not a legitimate request.
const maxBodyBytes = 1 << 20

// ProblemDetail is the RFC 7807 error body returned by every failing route.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with the given status. Encoding errors are dropped, the
// status line is already on the wire by then.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes an RFC 7807 problem body with the given status.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON reads the request body into target, capped at maxBodyBytes.
// Oversized bodies surface as a decode error and the caller maps that to
// a 400 like any other malformed payload.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(target)
}
