package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable wraps transport failures talking to the modem.
	ErrUnreachable = errors.New("modem unreachable")

	// ErrAuthFailed means the token handshake could not produce a session.
	ErrAuthFailed = errors.New("modem authentication failed")

	// ErrSessionExpired means a renewed session was rejected again; the
	// failed operation is not replayed a second time.
	ErrSessionExpired = errors.New("modem session expired")
)

// APIError is an error response from the modem's API. The device's numeric
// code is preserved for callers.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("modem error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("modem error %d", e.Code)
}

// Error codes the device is known to return.
const (
	CodeNotAuthorized     = 100003
	CodeSystemBusy        = 100004
	CodeFormatError       = 100005
	CodeSmsSystemBusy     = 113004
	CodeSmsStorageFull    = 113053
	CodeWrongToken        = 125001
	CodeWrongSession      = 125002
	CodeWrongSessionToken = 125003
)

// isSessionError reports whether code means the current session is no longer
// valid and a fresh handshake may succeed.
func isSessionError(code int) bool {
	switch code {
	case CodeNotAuthorized, CodeWrongToken, CodeWrongSession, CodeWrongSessionToken:
		return true
	}
	return false
}
