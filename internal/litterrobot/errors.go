package litterrobot

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for vendor API calls. Match with errors.Is.
var (
	// ErrTransport is a network or connection failure.
	ErrTransport = errors.New("litterrobot: transport error")

	// ErrProtocol is a non-2xx response.
	ErrProtocol = errors.New("litterrobot: unexpected response status")

	// ErrUnauthorized is a 401/403 on an authenticated call. It also matches ErrProtocol.
	ErrUnauthorized = errors.New("litterrobot: session rejected")

	// ErrDecode is a malformed JSON body or response shape.
	ErrDecode = errors.New("litterrobot: malformed response")

	// ErrNotFound means the device list did not contain the requested robot.
	ErrNotFound = errors.New("litterrobot: device not found")

	// ErrAuth means login failed. The cause is wrapped alongside it.
	ErrAuth = errors.New("litterrobot: login failed")

	// ErrInvalidDevice is returned for a bad slug/ID mapping.
	ErrInvalidDevice = errors.New("litterrobot: invalid device mapping")
)

// ProtocolError carries the status of a non-2xx response.
type ProtocolError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is makes a ProtocolError match ErrProtocol, and ErrUnauthorized for 401/403.
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrProtocol:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Classify names the taxonomy bucket of err for logs and the journal.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
