package farmos

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Authentication and lookup error kinds. Callers branch on them with errors.Is.
var (
	ErrNotAuthenticated = errors.New("session not authenticated before the request was made, call Authenticate first")
	ErrInvalidGrant     = errors.New("invalid grant")
	ErrInvalidClient    = errors.New("invalid client")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrNotFound         = errors.New("record not found")
)

// Common static errors that can be wrapped with context.
var (
	ErrConfigRequired         = errors.New("config is required")
	ErrHostnameRequired       = errors.New("hostname is required")
	ErrNoAuthMethod           = errors.New("no authentication method provided")
	ErrUnsupportedGrantType   = errors.New("unsupported OAuth grant type")
	ErrUnsupportedAPIStyle    = errors.New("unsupported API style")
	ErrStateMismatch          = errors.New("authorization state mismatch")
	ErrMissingAuthCode        = errors.New("authorization response carries no code")
	ErrNoPrompt               = errors.New("authorization code grant requires a prompt")
	ErrURIOrEndpointRequired  = errors.New("either uri or endpoint is required")
	ErrBodyNotSerializable    = errors.New("subrequest body is not JSON serializable")
	ErrUnsupportedFormat      = errors.New("unsupported subrequests format")
	ErrUnexpectedContentType  = errors.New("unexpected response content type")
	ErrMissingStatus          = errors.New("subresponse carries no status header")
	ErrIDRequired             = errors.New("record id is required")
	ErrUnsupportedOperation   = errors.New("operation not supported by this API style")
	ErrTokenUpdaterNotDefined = errors.New("no token updater configured")
	ErrIteratorDone           = errors.New("no more records")
)

// APIError is a single JSONAPI error object.
type APIError struct {
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
	Code   string `json:"code,omitempty"   yaml:"code,omitempty"`
	Title  string `json:"title,omitempty"  yaml:"title,omitempty"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Title != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	case e.Detail != "":
		return e.Detail
	default:
		return e.Title
	}
}

// ResponseError is returned for every non-2xx response of a resource call.
type ResponseError struct {
	StatusCode int        `json:"-"`
	Errors     []APIError `json:"errors"`
	// Message holds a plain error string when the server did not send a JSONAPI document.
	Message string `json:"message,omitempty"`
}

// Error implements the error interface for ResponseError.
func (e *ResponseError) Error() string {
	prefix := fmt.Sprintf("HTTP %d", e.StatusCode)

	switch {
	case len(e.Errors) == 1:
		return prefix + ": " + e.Errors[0].Error()
	case len(e.Errors) > 1:
		parts := make([]string, 0, len(e.Errors))
		for i := range e.Errors {
			parts = append(parts, e.Errors[i].Error())
		}

		return prefix + ": multiple errors: " + strings.Join(parts, "; ")
	case e.Message != "":
		return prefix + ": " + e.Message
	default:
		return prefix + ": " + http.StatusText(e.StatusCode)
	}
}

// FirstError returns the first error or nil.
func (e *ResponseError) FirstError() *APIError {
	if len(e.Errors) > 0 {
		return &e.Errors[0]
	}

	return nil
}

// ParseResponseError builds a ResponseError from a response body. Bodies that
// are not JSONAPI error documents are kept as the message.
func ParseResponseError(statusCode int, data []byte) *ResponseError {
	errResp := &ResponseError{StatusCode: statusCode}

	err := json.Unmarshal(data, errResp)
	if err != nil || (len(errResp.Errors) == 0 && errResp.Message == "") {
		errResp.Errors = nil
		errResp.Message = strings.TrimSpace(string(data))
	}

	return errResp
}

// AuthError carries the OAuth2 error code and description returned by the
// token endpoint. It unwraps to one of the error kinds above.
type AuthError struct {
	Kind        error
	Code        string
	Description string
	Err         error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	msg := e.Kind.Error()
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}

	if e.Description != "" {
		msg += ": " + e.Description
	}

	return msg
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}

	return hasStatus(err, http.StatusNotFound)
}

// IsUnauthorized checks if the error is an unauthorized error.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}

	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if the error is a forbidden error.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	errResp := &ResponseError{}
	if errors.As(err, &errResp) {
		return errResp.StatusCode == status
	}

	return false
}
