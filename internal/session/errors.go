package session

import (
	"errors"
	"fmt"
)

// ErrorKind tags the failure class surfaced to the host framework.
type ErrorKind int

const (
	// KindNoSuiteActive: a test-level operation ran with no active suite.
	KindNoSuiteActive ErrorKind = iota + 1
	// KindConfigParse: a malformed extra-timeline-attribute string.
	KindConfigParse
	// KindClientInit: backend connection or handshake failure.
	KindClientInit
	// KindIngest: any request failure against the backend after connect.
	KindIngest
	// KindAuthLoad: the auth token could not be loaded.
	KindAuthLoad
	// KindAuthParse: the auth token could not be decoded.
	KindAuthParse
	// KindIO: a local I/O failure outside the backend connection.
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoSuiteActive:
		return "no_suite_active"
	case KindConfigParse:
		return "config_parse"
	case KindClientInit:
		return "client_init"
	case KindIngest:
		return "ingest"
	case KindAuthLoad:
		return "auth_load"
	case KindAuthParse:
		return "auth_parse"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all fallible session
// operations.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNoSuiteActive:
		return "session: no test suite is active, check the call to 'On Suite Setup'"
	case KindIngest:
		return fmt.Sprintf("session: ingest request failed: %v", e.Err)
	case KindClientInit:
		return fmt.Sprintf("session: ingest client initialization failed: %v", e.Err)
	default:
		return fmt.Sprintf("session: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind tag.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind tag from err, or 0 if err is not a session
// error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
