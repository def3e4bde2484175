package mfasdk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUserLimit reports that the provider refused to create another user
// because the customer's licensed user cap is exhausted. Callers surface
// this distinctly from generic failures.
var ErrUserLimit = errors.New("mfasdk: provider user limit exceeded")

// TransportError means the provider was unreachable or answered with
// something that could not be parsed. It is never an authentication
// outcome and must not be presented as one.
type TransportError struct {
	Op  string // e.g. "challenge", "validate"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mfasdk: %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a well-formed failure response from the provider. The
// message is safe to log but must not be shown verbatim to end users.
type ProviderError struct {
	Op         string
	Status     Status
	Message    string
	HTTPStatus int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mfasdk: %s: provider returned %s: %s", e.Op, e.Status, e.Message)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// isUserLimitMessage sniffs the provider's user-cap refusal, which is
// reported as an ERROR with a message rather than a dedicated status.
func isUserLimitMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "user limit") ||
		strings.Contains(m, "user creation limit") ||
		strings.Contains(m, "upgrade your license")
}
