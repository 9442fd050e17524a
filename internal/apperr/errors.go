// Package apperr defines the error kinds surfaced by the account and session
// services and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrTokenReuse         = errors.New("refresh token reuse")
	ErrInternal           = errors.New("internal error")
)

// Error attaches a client-safe message to one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind carrying msg as its public message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Status maps an error to the HTTP status the handlers respond with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken),
		errors.Is(err, ErrTokenReuse):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns the sentinel kind found in err's chain, or ErrInternal.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

var kinds = []error{
	ErrValidation, ErrConflict, ErrNotFound, ErrInvalidCredentials,
	ErrInvalidToken, ErrExpiredToken, ErrTokenReuse,
}

// Message returns the text safe to show a client. Unknown errors never leak
// their detail.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Msg != "" {
		return ae.Msg
	}
	kind := Kind(err)
	if kind == ErrInternal {
		return "something went wrong"
	}
	return kind.Error()
}
