package oidcerrors

import (
	"errors"
	"net/http"
)

// Kind enumerates the OAuth2/OIDC error codes this provider emits. The value
// is what clients see in the "error" field of an error response.
type Kind string

const (
	KindUnauthorizedClient      Kind = "unauthorized_client"
	KindInvalidRequest          Kind = "invalid_request"
	KindUnsupportedResponseType Kind = "unsupported_response_type"
	KindInvalidGrant            Kind = "invalid_grant"
	KindInvalidClient           Kind = "invalid_client"
	KindInvalidToken            Kind = "invalid_token"
	KindServerError             Kind = "server_error"
)

// Error is the protocol-level error carried from services to the transport
// layer. Description is client-visible; the wrapped cause is for operational
// logging only and must never be serialized into a response.
type Error struct {
	Kind        Kind
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.Description + ": " + e.cause.Error()
	}
	return string(e.Kind) + ": " + e.Description
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a protocol error with a client-visible description.
func New(kind Kind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// Wrap attaches an internal cause to a protocol error. The cause stays out of
// the client-visible fields.
func Wrap(err error, kind Kind, description string) *Error {
	return &Error{Kind: kind, Description: description, cause: err}
}

// KindOf extracts the protocol kind from an error chain. Anything that is not
// an *Error collapses to server_error, the catch-all for unexpected failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}

// DescriptionOf returns the client-visible description for an error chain.
func DescriptionOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Description
	}
	return "internal server error"
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ToHTTPStatus maps a protocol kind to the HTTP status the provider
// endpoints respond with.
func ToHTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthorizedClient, KindInvalidRequest, KindUnsupportedResponseType, KindInvalidGrant:
		return http.StatusBadRequest
	case KindInvalidClient, KindInvalidToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
