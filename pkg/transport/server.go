package transport

import "github.com/google/uuid"

// Server is the lifecycle and multicast contract shared by the TCP, TLS,
// and UDP server types.
type Server interface {
	State() ServerState
	// ListenerAddr returns the bound listener's address, or "" before
	// Start/StartAsync has completed.
	ListenerAddr() string

	// Start listens and blocks (the accept loop runs on the calling
	// goroutine) until Stop is called or the listener fails.
	Start() error
	// StartAsync listens in the background and returns once the listener
	// is bound, or with an error if binding failed.
	StartAsync() error
	// Stop closes the listener and every session, and blocks for cleanup.
	Stop() error
	// StopAsync requests shutdown without waiting for it to complete.
	StopAsync()
	// Restart stops the server and starts it again against the same
	// endpoint and options, without blocking on the new accept loop
	// (equivalent to Stop followed by StartAsync).
	Restart() error

	// SetHandlerFactory installs the per-session Handler constructor. It
	// must be called before Start/StartAsync.
	SetHandlerFactory(f func(Session) Handler)

	// Sessions returns a point-in-time snapshot of connected sessions.
	Sessions() []Session
	// Session looks up a single connected session by ID.
	Session(id uuid.UUID) (Session, bool)
	// Broadcast enqueues b on every currently connected session and
	// returns how many accepted it.
	Broadcast(b []byte) int
	// DisconnectAll closes every currently connected session without
	// stopping the listener, so new connections keep being accepted.
	DisconnectAll()
	// Stats reports cumulative accept/close/reject counters for sessions
	// this server has accepted.
	Stats() Stats
}
