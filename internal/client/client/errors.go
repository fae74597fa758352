package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable       = errors.New("server unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrServer            = errors.New("server error")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for every response with a status code >= 400.
// It matches the sentinels above with errors.Is:
//
//	401 -> ErrUnauthorized, 403 -> ErrForbidden, 5xx -> ErrServer
//
// Other codes (400, 404, 422, ...) only match themselves; use errors.As to
// inspect StatusCode and Detail.
type StatusError struct {
	StatusCode int
	// Detail is the "detail" field of the error body, or the raw body.
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Detail)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// parseDetail extracts {"detail": ...} from an error body. Validation errors
// carry a structured detail, which is returned as compact JSON.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return string(body)
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	return string(envelope.Detail)
}
