package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is wrapped by APIError for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is wrapped by APIError for 400 responses.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is wrapped by APIError for 404 responses.
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired means a 401 arrived with no way to refresh. The local
	// session has been cleared and the operator must log in again.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// APIError is a non-2xx response from the CRM service.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Details    json.RawMessage
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap maps well-known status codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// errorBody accepts both the service's {"message", "details"} shape and the
// platform's [{"message", "errorCode"}] list.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

type platformError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

func newAPIError(req *http.Request, status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Method: req.Method, Path: req.URL.Path}

	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
	case strings.HasPrefix(trimmed, "{"):
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			e.Message = eb.Message
			if e.Message == "" {
				e.Message = eb.Error
			}
			e.Details = eb.Details
		}
	case strings.HasPrefix(trimmed, "["):
		var list []platformError
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			msgs := make([]string, 0, len(list))
			for _, p := range list {
				if p.ErrorCode != "" {
					msgs = append(msgs, p.ErrorCode+": "+p.Message)
				} else {
					msgs = append(msgs, p.Message)
				}
			}
			e.Message = strings.Join(msgs, "; ")
			e.Details = json.RawMessage(body)
		}
	default:
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		e.Message = trimmed
	}
	return e
}
