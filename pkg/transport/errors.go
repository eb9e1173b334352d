package transport

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the non-overlapping error families the core can
// report through Handler.OnError.
type ErrorKind int

const (
	// KindTransport covers socket-level failures: refused, reset, timeout.
	KindTransport ErrorKind = iota
	// KindProtocol covers codec violations layered on top of a session
	// (HTTP parse errors, WebSocket frame errors).
	KindProtocol
	// KindTLS covers handshake/decrypt failures in the TLS overlay.
	KindTLS
	// KindLifecycle covers invalid calls for the session/server's current
	// state. Lifecycle errors never propagate as exceptions; the offending
	// call simply returns false/0/an error value.
	KindLifecycle
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindTLS:
		return "tls"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its Kind so Handler.OnError
// implementations can branch on failure family without string matching.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a Error of the given kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Sentinel errors returned directly (not wrapped) by lifecycle-invalid
// calls: these never panic, they are plain return values.
var (
	ErrNotConnected     = errors.New("transport: session not connected")
	ErrAlreadyConnected = errors.New("transport: session already connected")
	ErrClosed           = errors.New("transport: session closed")
	ErrServerNotStarted = errors.New("transport: server not started")
	ErrServerStarted    = errors.New("transport: server already started")
	ErrSessionNotFound  = errors.New("transport: session not found")
	ErrSessionLimit     = errors.New("transport: session limit reached")
)

// errFromRecover normalizes a recover() value of unknown type into an error.
func errFromRecover(r interface{}) error {
	return fmt.Errorf("%v", r)
}
