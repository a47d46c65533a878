package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"unicode"
	"unicode/utf8"
)

// Rejection kinds. Every error surfaced by a service operation unwraps to one of them.
var (
	ErrBadRequest      = fmt.Errorf("bad request")
	ErrUnauthenticated = fmt.Errorf("user not authenticated")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrNotFound        = fmt.Errorf("not found")
	ErrInternal        = fmt.Errorf("internal server error")
)

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrNoCensoredFiles   = fmt.Errorf("no censored files found")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
	ErrSlowConsumer      = fmt.Errorf("client send buffer is full")
	ErrClientClosed      = fmt.Errorf("client connection closed")
	ErrRelayUnavailable  = fmt.Errorf("relay unavailable")
	ErrInvalidHash       = fmt.Errorf("invalid hash format")

	ErrMissingFields       = kind(ErrBadRequest, "interestId and message are required")
	ErrMissingShareFields  = kind(ErrBadRequest, "interestId, message, mainCategoryId, subCategoryId, topicId, and entryId are required")
	ErrInvalidInterestID   = kind(ErrBadRequest, "invalid interest ID")
	ErrInvalidPagination   = kind(ErrBadRequest, "page and limit must be positive integers")
	ErrInvalidRegistration = kind(ErrBadRequest, "invalid registration request")
	ErrInvalidPassword     = kind(ErrBadRequest, "password must mix upper and lower case letters, digits and symbols")
	ErrInvalidBody         = kind(ErrBadRequest, "invalid request body")
	ErrMissingQuery        = kind(ErrBadRequest, "search query is required")
	ErrMissingName         = kind(ErrBadRequest, "name is required")
	ErrMissingInterests    = kind(ErrBadRequest, "interests must be a non-empty list of interest IDs")
	ErrInterestExists      = kind(ErrBadRequest, "interest already exists")
	ErrUserAlreadyExists   = kind(ErrBadRequest, "user already exists")
	ErrInvalidCredentials  = kind(ErrUnauthenticated, "invalid credentials")
	ErrInvalidToken        = kind(ErrUnauthenticated, "invalid or expired token")
	ErrNotMember           = kind(ErrForbidden, "user is not a member of this interest")
	ErrInterestNotFound    = kind(ErrNotFound, "interest not found")
	ErrUserNotFound        = kind(ErrNotFound, "user not found")
	ErrCategoryNotFound    = kind(ErrNotFound, "main category not found")
	ErrSubCategoryNotFound = kind(ErrNotFound, "sub category not found")
	ErrTopicNotFound       = kind(ErrNotFound, "topic not found")
	ErrEntryNotFound       = kind(ErrNotFound, "entry not found")
	ErrMessageNotFound     = kind(ErrNotFound, "message not found")
	ErrTokenGeneration     = kind(ErrInternal, "token generation failed")
)

type kindError struct {
	kind error
	msg  string
}

func kind(k error, msg string) error {
	return &kindError{kind: k, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// HTTPStatus maps an error to the status code of its rejection kind.
// Anything that is not a known kind is an internal failure.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrInternal):
		return http.StatusInternalServerError
	case Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case Is(err, ErrForbidden):
		return http.StatusForbidden
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text a client is allowed to see for err.
// Internal failures never leak their detail.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	var k *kindError
	if As(err, &k) {
		return capitalize(k.msg)
	}
	for _, sentinel := range []error{ErrBadRequest, ErrUnauthenticated, ErrForbidden, ErrNotFound} {
		if Is(err, sentinel) {
			return capitalize(sentinel.Error())
		}
	}
	return capitalize(err.Error())
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
