// Package httpx holds the JSON response helpers shared by the HTTP adapters.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// Error kinds reported in the "error" field of an error body.
const (
	KindNotFound          = "not_found"
	KindForbidden         = "forbidden"
	KindUnauthenticated   = "unauthenticated"
	KindInsufficientStock = "insufficient_stock"
	KindRemoteUnavailable = "remote_unavailable"
	KindValidation        = "validation_error"
	KindConflict          = "conflict"
	KindInternal          = "internal"
)

var ErrMalformedBody = errors.New("malformed request body")

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, kind, msg string) {
	WriteJSON(w, status, ErrorBody{Error: kind, Message: msg})
}

// DecodeJSON reads a single JSON document from the request body. Any decode
// problem is reported as ErrMalformedBody.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}
