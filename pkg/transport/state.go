package transport

import (
	"sync"

	"github.com/singchia/yafsm"
)

// SessionState is the transport-level state machine:
// Created -> Connecting -> Connected -> Disconnecting -> Disconnected.
// Disconnected is terminal; only Connected permits user I/O.
type SessionState string

const (
	SessionCreated       SessionState = "created"
	SessionConnecting    SessionState = "connecting"
	SessionConnected     SessionState = "connected"
	SessionDisconnecting SessionState = "disconnecting"
	SessionDisconnected  SessionState = "disconnected"
)

const (
	evConnect      = "connect"
	evConnected    = "connected"
	evDisconnect   = "disconnect"
	evDisconnected = "disconnected"
)

// sessionFSM wraps a yafsm.FSM with the fixed session state graph. It is
// safe for concurrent use: every transition is serialized by mu, so
// repeated calls to Connect/Disconnect from multiple goroutines are
// idempotent with respect to the resulting state.
type sessionFSM struct {
	mu  sync.Mutex
	fsm *yafsm.FSM
}

func newSessionFSM() *sessionFSM {
	f := yafsm.NewFSM()

	created := f.AddState(string(SessionCreated))
	connecting := f.AddState(string(SessionConnecting))
	connected := f.AddState(string(SessionConnected))
	disconnecting := f.AddState(string(SessionDisconnecting))
	disconnected := f.AddState(string(SessionDisconnected))

	f.SetState(string(SessionCreated))

	f.AddEvent(evConnect, created, connecting)
	f.AddEvent(evConnected, connecting, connected)
	// a session can also be born already connected (server-accepted peer)
	f.AddEvent(evConnected, created, connected)
	f.AddEvent(evDisconnect, connected, disconnecting)
	f.AddEvent(evDisconnect, connecting, disconnecting)
	f.AddEvent(evDisconnected, disconnecting, disconnected)
	// abrupt peer-closed / error paths skip the Disconnecting step
	f.AddEvent(evDisconnected, connected, disconnected)
	f.AddEvent(evDisconnected, connecting, disconnected)
	f.AddEvent(evDisconnected, created, disconnected)

	return &sessionFSM{fsm: f}
}

func (s *sessionFSM) current() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState(s.fsm.State())
}

// transition emits ev and reports whether the FSM actually changed state.
// yafsm.EmitEvent is a no-op (returns an error) when the event isn't valid
// from the current state; we treat that as "already there" so repeated user
// calls (e.g. two Disconnect calls racing) are idempotent rather than
// erroring.
func (s *sessionFSM) transition(ev string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.fsm.State()
	s.fsm.EmitEvent(ev)
	return s.fsm.State() != before
}

func (s *sessionFSM) is(state SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.InStates(string(state))
}

// ServerState is the server lifecycle:
// Created -> Starting -> Started -> Stopping -> Stopped, restartable.
type ServerState string

const (
	ServerCreated  ServerState = "created"
	ServerStarting ServerState = "starting"
	ServerStarted  ServerState = "started"
	ServerStopping ServerState = "stopping"
	ServerStopped  ServerState = "stopped"
)

const (
	evStart   = "start"
	evStarted = "started"
	evStop    = "stop"
	evStopped = "stopped"
)

type serverFSM struct {
	mu  sync.Mutex
	fsm *yafsm.FSM
}

func newServerFSM() *serverFSM {
	f := yafsm.NewFSM()

	created := f.AddState(string(ServerCreated))
	starting := f.AddState(string(ServerStarting))
	started := f.AddState(string(ServerStarted))
	stopping := f.AddState(string(ServerStopping))
	stopped := f.AddState(string(ServerStopped))

	f.SetState(string(ServerCreated))

	f.AddEvent(evStart, created, starting)
	f.AddEvent(evStart, stopped, starting)
	f.AddEvent(evStarted, starting, started)
	f.AddEvent(evStop, started, stopping)
	f.AddEvent(evStopped, stopping, stopped)
	// restart is stop-then-start; modeled as the same two events fired
	// back to back by Server.Restart, no separate edge needed.

	return &serverFSM{fsm: f}
}

func (s *serverFSM) current() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ServerState(s.fsm.State())
}

func (s *serverFSM) transition(ev string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.fsm.State()
	s.fsm.EmitEvent(ev)
	return s.fsm.State() != before
}
