package summarizer

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a summarization failure.
type Kind string

const (
	KindMissingCredential    Kind = "MISSING_CREDENTIAL"
	KindAuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	KindRemoteRejected       Kind = "REMOTE_REJECTED"
	KindUnparsableResponse   Kind = "UNPARSABLE_RESPONSE"
)

// Error is a terminal failure of one summarize cycle.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewMissingCredential is the error for a call made without an API key.
func NewMissingCredential() *Error {
	return &Error{
		Kind:    KindMissingCredential,
		Message: "API key not found, set it in the options",
	}
}

func newRemoteError(status int, message string) *Error {
	if status == http.StatusUnauthorized {
		if message == "" {
			message = "authentication failed, check your API key"
		}
		return &Error{
			Kind:    KindAuthenticationFailed,
			Status:  status,
			Message: message,
		}
	}

	if message == "" {
		message = "request failed"
	}
	return &Error{
		Kind:    KindRemoteRejected,
		Status:  status,
		Message: message,
	}
}

func newUnparsableResponse(err error) *Error {
	return &Error{
		Kind:    KindUnparsableResponse,
		Message: "could not parse summary from API response",
		Err:     err,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Kind == kind
	}
	return false
}

// IsCredentialProblem reports failures the user fixes by changing the API
// key. Gemini answers an invalid key with 400 rather than 401.
func IsCredentialProblem(err error) bool {
	var sErr *Error
	if !errors.As(err, &sErr) {
		return false
	}

	switch sErr.Kind {
	case KindMissingCredential, KindAuthenticationFailed:
		return true
	case KindRemoteRejected:
		return sErr.Status == http.StatusBadRequest
	default:
		return false
	}
}
