package transport

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"netcore/pkg/buffer"
)

// Session is the contract both TCP and TLS stream sessions satisfy. A
// UDP endpoint implements the same contract minus the notion of a
// persistent connection (see PacketSession).
type Session interface {
	ID() uuid.UUID
	State() SessionState
	RemoteEndpoint() Endpoint
	LocalEndpoint() Endpoint

	// Connect dials synchronously and blocks until Connected or failed.
	Connect() error
	// ConnectAsync dials in the background; completion (or failure) is
	// reported to the Handler via OnConnected/OnError.
	ConnectAsync()

	// Disconnect closes the session and blocks until fully torn down.
	Disconnect() error
	// DisconnectAsync requests a close without blocking for completion.
	DisconnectAsync()

	// Send queues b and blocks until it has been handed to the OS, or
	// fails fast with ErrNotConnected. It returns the number of bytes
	// written (never partial on success: either all of b or an error).
	Send(b []byte) (int, error)
	// SendAsync queues b for the single in-flight sender goroutine and
	// returns immediately. It reports false (no queuing performed) if the
	// session is not Connected or the send queue limit is exceeded.
	SendAsync(b []byte) bool

	// SetHandler replaces the session's Handler. Safe to call before
	// Connect/Accept; racy (last write wins, no synchronization with
	// in-flight callbacks) if called afterward.
	SetHandler(h Handler)
}

// streamSession is the shared core behind TCP and TLS sessions: both are
// built by handing this the same net.Conn contract (*net.TCPConn and
// *tls.Conn both satisfy net.Conn), so the read loop, send queue, state
// machine, and callback plumbing are written exactly once and both
// transports inherit identical behavior.
type streamSession struct {
	id uuid.UUID

	mu      sync.Mutex
	conn    net.Conn
	dial    func() (net.Conn, error)
	state   *sessionFSM
	handler Handler
	opts    SessionOptions

	recvBuf *buffer.Buffer

	sendMu    sync.Mutex
	sendQueue [][]byte
	sending   bool

	closeOnce sync.Once
	closed    chan struct{}

	onRemoved func(Session) // detach from owning server's table

	metrics *metricsSink
}

func newStreamSession(conn net.Conn, dial func() (net.Conn, error), opts SessionOptions, h Handler) *streamSession {
	s := &streamSession{
		id:      uuid.New(),
		conn:    conn,
		dial:    dial,
		state:   newSessionFSM(),
		handler: h,
		opts:    opts,
		recvBuf: buffer.New(opts.ReadBufferHint),
		closed:  make(chan struct{}),
		metrics: nopMetrics,
	}
	if conn != nil {
		applySessionOptions(conn, opts)
		s.state.transition(evConnected) // server-accepted: created -> connected directly
	}
	return s
}

func (s *streamSession) ID() uuid.UUID      { return s.id }
func (s *streamSession) State() SessionState { return s.state.current() }

func (s *streamSession) RemoteEndpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return Endpoint{}
	}
	return EndpointFromAddr(s.conn.RemoteAddr())
}

func (s *streamSession) LocalEndpoint() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return Endpoint{}
	}
	return EndpointFromAddr(s.conn.LocalAddr())
}

func (s *streamSession) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *streamSession) handlerOrNoop() Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return &HandlerFuncs{}
	}
	return s.handler
}

func (s *streamSession) Connect() error {
	if s.dial == nil {
		return ErrAlreadyConnected
	}
	if !s.state.transition(evConnect) {
		return ErrAlreadyConnected
	}
	h := s.handlerOrNoop()
	callSafely(func(err error) { h.OnError(s, err) }, func() { h.OnConnecting(s) })

	conn, err := s.dial()
	if err != nil {
		s.state.transition(evDisconnected)
		callSafely(nil, func() { h.OnError(s, NewError(KindTransport, err)) })
		return err
	}

	applySessionOptions(conn, s.opts)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.state.transition(evConnected)
	s.metrics.connected()
	callSafely(func(err error) { h.OnError(s, err) }, func() { h.OnConnected(s) })
	go s.readLoop()
	return nil
}

func (s *streamSession) ConnectAsync() {
	go func() {
		if err := s.Connect(); err != nil {
			return
		}
	}()
}

// onAccepted is invoked by a Server right after accept, once the session
// already holds a live conn and is already in SessionConnected.
func (s *streamSession) onAccepted() {
	h := s.handlerOrNoop()
	s.metrics.connected()
	callSafely(func(err error) { h.OnError(s, err) }, func() { h.OnConnecting(s) })
	callSafely(func(err error) { h.OnError(s, err) }, func() { h.OnConnected(s) })
	go s.readLoop()
}

func (s *streamSession) readLoop() {
	buf := make([]byte, 32*1024)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		if s.opts.ReadTimeout > 0 {
			conn.SetReadDeadline(deadline(s.opts.ReadTimeout))
		}
		n, err := conn.Read(buf)
		if n > 0 {
			// Re-fetched every iteration (not hoisted above the loop) so a
			// Handler that calls SetHandler mid-stream — a protocol upgrade
			// such as WebSocket's HTTP handshake handing off to frame
			// decoding — takes effect starting with the very next read.
			h := s.handlerOrNoop()
			s.metrics.received(n)
			s.recvBuf.Clear()
			s.recvBuf.Append(buf[:n])
			view := s.recvBuf.AsReadOnlySpan()
			callSafely(func(cerr error) { h.OnError(s, cerr) }, func() {
				h.OnReceived(s, view)
			})
		}
		if err != nil {
			s.teardown(err)
			return
		}
	}
}

// Send synchronously writes b to the underlying conn. It serializes with
// SendAsync's sender goroutine via sendMu so only one write is ever
// in-flight on the socket at a time.
func (s *streamSession) Send(b []byte) (int, error) {
	if !s.state.is(SessionConnected) {
		return 0, ErrNotConnected
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	if s.opts.WriteTimeout > 0 {
		conn.SetWriteDeadline(deadline(s.opts.WriteTimeout))
	}
	n, err := conn.Write(b)
	h := s.handlerOrNoop()
	if err != nil {
		s.metrics.sendError(KindTransport)
		callSafely(nil, func() { h.OnError(s, NewError(KindTransport, err)) })
		s.teardown(err)
		return n, err
	}
	s.metrics.sent(n)
	// sendMu is already held here, so read the queue length directly
	// rather than through pendingLen, which would lock it again.
	pending := len(s.sendQueue)
	callSafely(nil, func() { h.OnSent(s, n, pending) })
	if pending == 0 {
		callSafely(nil, func() { h.OnEmpty(s) })
	}
	return n, nil
}

// SendAsync enqueues b and ensures exactly one sender goroutine is
// draining the queue, preserving FIFO order across concurrent callers.
func (s *streamSession) SendAsync(b []byte) bool {
	if !s.state.is(SessionConnected) {
		return false
	}
	s.sendMu.Lock()
	if s.opts.SendQueueLimit > 0 && len(s.sendQueue) >= s.opts.SendQueueLimit {
		s.sendMu.Unlock()
		h := s.handlerOrNoop()
		callSafely(nil, func() { h.OnError(s, NewError(KindTransport, ErrSessionLimit)) })
		return false
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s.sendQueue = append(s.sendQueue, cp)
	alreadySending := s.sending
	s.sending = true
	s.sendMu.Unlock()

	if !alreadySending {
		go s.drainSendQueue()
	}
	return true
}

func (s *streamSession) pendingLen() int {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return len(s.sendQueue)
}

func (s *streamSession) drainSendQueue() {
	h := s.handlerOrNoop()
	for {
		s.sendMu.Lock()
		if len(s.sendQueue) == 0 {
			s.sending = false
			s.sendMu.Unlock()
			callSafely(nil, func() { h.OnEmpty(s) })
			return
		}
		next := s.sendQueue[0]
		s.sendQueue = s.sendQueue[1:]
		s.sendMu.Unlock()

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		if s.opts.WriteTimeout > 0 {
			conn.SetWriteDeadline(deadline(s.opts.WriteTimeout))
		}
		n, err := conn.Write(next)
		if err != nil {
			s.metrics.sendError(KindTransport)
			callSafely(nil, func() { h.OnError(s, NewError(KindTransport, err)) })
			s.teardown(err)
			return
		}
		s.metrics.sent(n)
		callSafely(nil, func() { h.OnSent(s, n, s.pendingLen()) })
	}
}

func (s *streamSession) Disconnect() error {
	if !s.state.transition(evDisconnect) {
		// already disconnecting/disconnected: still make sure the conn
		// gets closed so Connect's readLoop unblocks.
		s.closeConn()
		<-s.closed
		return nil
	}
	h := s.handlerOrNoop()
	callSafely(nil, func() { h.OnDisconnecting(s) })
	s.closeConn()
	s.state.transition(evDisconnected)
	s.finish()
	return nil
}

func (s *streamSession) DisconnectAsync() {
	go s.Disconnect()
}

// teardown is invoked from the read/write goroutines when the socket fails
// or the peer closes; it is the "abrupt" path that skips Disconnecting.
func (s *streamSession) teardown(_ error) {
	wasConnected := s.state.is(SessionConnected) || s.state.is(SessionConnecting)
	s.closeConn()
	s.state.transition(evDisconnected)
	if wasConnected {
		s.finish()
	}
}

func (s *streamSession) finish() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.metrics.disconnected()
		h := s.handlerOrNoop()
		callSafely(nil, func() { h.OnDisconnected(s) })
		if s.onRemoved != nil {
			s.onRemoved(s)
		}
	})
}

func (s *streamSession) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
