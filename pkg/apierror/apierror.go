package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies a client-side failure.
type Kind string

const (
	// KindCredential covers login/refresh rejections by the backend: bad
	// credentials, forbidden, missing endpoint. Never retried automatically.
	KindCredential Kind = "CREDENTIAL"
	// KindProtocol covers responses missing required fields, e.g. a refresh
	// reply without a rotated refresh token. Fatal for the attempt.
	KindProtocol Kind = "PROTOCOL"
	// KindTransientNetwork covers no-response and timeout failures.
	KindTransientNetwork Kind = "TRANSIENT_NETWORK"
	// KindAuthorizationExpired is a 401 on a non-refresh request; it drives
	// the refresh-and-replay flow.
	KindAuthorizationExpired Kind = "AUTHORIZATION_EXPIRED"
	// KindChannel covers push transport failures and abnormal closures.
	KindChannel Kind = "CHANNEL"
	// KindRequest is any other request-level failure surfaced to the caller.
	KindRequest Kind = "REQUEST"
)

type APIError struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func New(kind Kind, message string, details string, status int) *APIError {
	return &APIError{Kind: kind, Message: message, Details: details, HTTPStatus: status}
}

func Wrap(kind Kind, message string, err error) *APIError {
	details := ""
	if err != nil {
		details = err.Error()
	}

	return &APIError{Kind: kind, Message: message, Details: details, Err: err}
}

// KindOf returns the kind of err if it is (or wraps) an APIError.
func KindOf(err error) (Kind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}

	return "", false
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsTransient reports whether err is a network-level failure that should not
// tear down the session.
func IsTransient(err error) bool {
	return IsKind(err, KindTransientNetwork)
}
