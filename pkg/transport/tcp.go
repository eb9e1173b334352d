package transport

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// NewTCPSession creates a client-side TCP session for the given remote
// endpoint. Nothing is dialed until Connect/ConnectAsync is called.
func NewTCPSession(remote Endpoint, opts ...Option) *streamSession {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if o.Session.KeepAlive != nil && *o.Session.KeepAlive {
		dialer.KeepAlive = o.Session.KeepAliveTime
	} else if o.Session.KeepAlive != nil {
		dialer.KeepAlive = -1 // disabled
	}
	dial := func() (net.Conn, error) {
		return dialer.Dial(remote.Network, remote.String())
	}
	return newStreamSession(nil, dial, o.Session, nil)
}

// TCPServer accepts TCP connections and hands each one off as a Session.
type TCPServer struct {
	endpoint Endpoint
	opts     ServerOptions
	state    *serverFSM
	table    *sessionTable
	metrics  *metricsSink

	listener net.Listener
	factory  func(Session) Handler

	stopCh chan struct{}
}

// NewTCPServer builds a TCP server bound to endpoint once Start is called.
func NewTCPServer(endpoint Endpoint, opts ...Option) *TCPServer {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &TCPServer{
		endpoint: endpoint,
		opts:     o,
		state:    newServerFSM(),
		table:    newSessionTable(o.MaxSessions, o.MaxSessionsPerAddress),
		metrics:  nopMetrics,
		stopCh:   make(chan struct{}),
	}
}

func (srv *TCPServer) State() ServerState { return srv.state.current() }

// ListenerAddr returns the bound listener's address, or "" before Start.
func (srv *TCPServer) ListenerAddr() string {
	if srv.listener == nil {
		return ""
	}
	return srv.listener.Addr().String()
}

func (srv *TCPServer) SetHandlerFactory(f func(Session) Handler) { srv.factory = f }

// SetMetrics attaches a metricsSink built via NewMetrics to this server and
// every session it subsequently accepts.
func (srv *TCPServer) SetMetrics(m *metricsSink) { srv.metrics = m }

func (srv *TCPServer) Start() error {
	if err := srv.listen(); err != nil {
		return err
	}
	srv.acceptLoop()
	return nil
}

func (srv *TCPServer) StartAsync() error {
	if err := srv.listen(); err != nil {
		return err
	}
	go srv.acceptLoop()
	return nil
}

func (srv *TCPServer) listen() error {
	if !srv.state.transition(evStart) {
		return ErrServerStarted
	}
	ln, err := srv.opts.listen(srv.endpoint.Network, srv.endpoint.String())
	if err != nil {
		srv.state.transition(evStopped)
		return err
	}
	srv.listener = ln
	srv.stopCh = make(chan struct{})
	srv.state.transition(evStarted)
	return nil
}

func (srv *TCPServer) acceptLoop() {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			select {
			case <-srv.stopCh:
				return
			default:
			}
			time.Sleep(srv.opts.AcceptErrorBackoff)
			continue
		}
		srv.adopt(conn)
	}
}

func (srv *TCPServer) adopt(conn net.Conn) {
	if srv.opts.MaxSessions > 0 && srv.table.len() >= srv.opts.MaxSessions {
		srv.table.mu.Lock()
		srv.table.rejected++
		srv.table.mu.Unlock()
		conn.Close()
		return
	}
	sess := newStreamSession(conn, nil, srv.opts.Session, nil)
	sess.metrics = srv.metrics
	sess.onRemoved = func(s Session) { srv.table.remove(s) }
	if srv.factory != nil {
		sess.SetHandler(srv.factory(sess))
	}
	if !srv.table.add(sess) {
		conn.Close()
		return
	}
	sess.onAccepted()
}

func (srv *TCPServer) Stop() error {
	if !srv.state.transition(evStop) {
		return ErrServerNotStarted
	}
	close(srv.stopCh)
	if srv.listener != nil {
		srv.listener.Close()
	}
	srv.table.closeAll()
	srv.state.transition(evStopped)
	return nil
}

func (srv *TCPServer) StopAsync() { go srv.Stop() }

// Restart stops the server and starts it again against the same endpoint
// and options, without blocking on the new accept loop.
func (srv *TCPServer) Restart() error {
	if err := srv.Stop(); err != nil {
		return err
	}
	return srv.StartAsync()
}

// DisconnectAll closes every currently connected session without
// stopping the listener; new connections keep being accepted.
func (srv *TCPServer) DisconnectAll() { srv.table.closeAll() }

func (srv *TCPServer) Sessions() []Session { return srv.table.snapshot() }

func (srv *TCPServer) Session(id uuid.UUID) (Session, bool) { return srv.table.get(id) }

func (srv *TCPServer) Broadcast(b []byte) int { return srv.table.broadcast(b) }

func (srv *TCPServer) Stats() Stats { return srv.table.stats() }
