package call

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshuarp/controller-sdk/schema"
)

// Stable failure codes. Hosts match on these with errors.Is; the codes are
// part of the public surface and never change between releases.
var (
	// ErrFailedValidation reports that attribute validation rejected the
	// call before any network activity.
	ErrFailedValidation = errors.New("failed-validation")

	// ErrConstraintFailure reports that a queued call's constraint could
	// not be satisfied.
	ErrConstraintFailure = errors.New("constraint-failure")

	// ErrSessionExpired reports a 401 or 403 from the server.
	ErrSessionExpired = errors.New("session-expired")

	// ErrOAuthFlow reports that the interactive authorization flow failed
	// or was abandoned.
	ErrOAuthFlow = errors.New("oauth-flow-error")

	// ErrInvalidCallState reports an operation applied in a state that does
	// not permit it, such as disposing a call that is still executing.
	ErrInvalidCallState = errors.New("invalid-call-state")

	// ErrRequestTimeout reports that the transport deadline elapsed.
	ErrRequestTimeout = errors.New("request-timeout")

	// ErrNoConnectivity reports that a non-reliable call was attempted with
	// no network available.
	ErrNoConnectivity = errors.New("no-network-connectivity")
)

// ValidationError carries the per-attribute findings behind a
// failed-validation outcome. errors.Is(err, ErrFailedValidation) holds.
type ValidationError struct {
	Invalid []schema.Invalid
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Invalid))
	for _, inv := range e.Invalid {
		parts = append(parts, inv.Attribute+": "+inv.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrFailedValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrFailedValidation }

// HTTPError carries the transport outcome of a failed exchange. A 401 or
// 403 unwraps to ErrSessionExpired so hosts can trigger re-authentication.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("call: server returned %s", e.Status)
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrSessionExpired
	}
	return nil
}

// NewHTTPError wraps a non-success response.
func NewHTTPError(statusCode int, status string, body []byte) error {
	return &HTTPError{StatusCode: statusCode, Status: status, Body: append([]byte(nil), body...)}
}
