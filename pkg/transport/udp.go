package transport

import (
	"context"
	"net"
	"sync"

	"github.com/google/uuid"

	"netcore/pkg/buffer"
)

// PacketSession is the UDP counterpart to Session: there is no persistent
// connection, so every receive reports the datagram together with the
// peer endpoint it arrived from, and every send names a destination.
type PacketSession interface {
	ID() uuid.UUID
	LocalEndpoint() Endpoint

	// SendTo writes a single datagram to dst.
	SendTo(dst Endpoint, b []byte) (int, error)
	// SendToAsync queues a single datagram to dst without blocking.
	SendToAsync(dst Endpoint, b []byte) bool

	Close() error
}

// PacketHandler receives datagrams for a UDP socket.
type PacketHandler interface {
	OnPacket(s PacketSession, from Endpoint, data []byte)
	OnError(s PacketSession, err error)
}

// PacketHandlerFuncs implements PacketHandler from plain functions.
type PacketHandlerFuncs struct {
	OnPacketFunc func(s PacketSession, from Endpoint, data []byte)
	OnErrorFunc  func(s PacketSession, err error)
}

func (h *PacketHandlerFuncs) OnPacket(s PacketSession, from Endpoint, data []byte) {
	if h.OnPacketFunc != nil {
		h.OnPacketFunc(s, from, data)
	}
}

func (h *PacketHandlerFuncs) OnError(s PacketSession, err error) {
	if h.OnErrorFunc != nil {
		h.OnErrorFunc(s, err)
	}
}

// udpSession wraps a bound *net.UDPConn. A server-side socket and a
// client-side "connected" socket both use it; the only difference is
// whether remote is fixed.
type udpSession struct {
	id uuid.UUID

	mu     sync.Mutex
	conn   *net.UDPConn
	remote *net.UDPAddr // non-nil for client sessions bound to one peer

	handler PacketHandler
	metrics *metricsSink

	closeOnce sync.Once
	closed    chan struct{}
}

func newUDPSession(conn *net.UDPConn, remote *net.UDPAddr, h PacketHandler) *udpSession {
	return &udpSession{
		id:      uuid.New(),
		conn:    conn,
		remote:  remote,
		handler: h,
		metrics: nopMetrics,
		closed:  make(chan struct{}),
	}
}

func (s *udpSession) ID() uuid.UUID { return s.id }

func (s *udpSession) LocalEndpoint() Endpoint {
	return EndpointFromAddr(s.conn.LocalAddr())
}

func (s *udpSession) SendTo(dst Endpoint, b []byte) (int, error) {
	addr, err := dst.ResolveUDP()
	if err != nil {
		return 0, err
	}
	n, err := s.conn.WriteToUDP(b, addr)
	if err != nil {
		s.metrics.sendError(KindTransport)
		return n, err
	}
	s.metrics.sent(n)
	return n, nil
}

func (s *udpSession) SendToAsync(dst Endpoint, b []byte) bool {
	cp := make([]byte, len(b))
	copy(cp, b)
	go func() {
		if _, err := s.SendTo(dst, cp); err != nil && s.handler != nil {
			callSafely(nil, func() { s.handler.OnError(s, NewError(KindTransport, err)) })
		}
	}()
	return true
}

func (s *udpSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.conn.Close()
	})
	return err
}

func (s *udpSession) readLoop() {
	buf := make([]byte, 64*1024)
	recv := buffer.New(len(buf))
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if n > 0 {
			s.metrics.received(n)
			recv.Clear()
			recv.Append(buf[:n])
			from := EndpointFromAddr(addr)
			view := recv.AsReadOnlySpan()
			if s.handler != nil {
				callSafely(func(cerr error) { s.handler.OnError(s, cerr) }, func() {
					s.handler.OnPacket(s, from, view)
				})
			}
		}
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if s.handler != nil {
				callSafely(nil, func() { s.handler.OnError(s, NewError(KindTransport, err)) })
			}
			return
		}
	}
}

// UDPServer binds a UDP socket and dispatches every datagram it receives
// to a single shared PacketHandler (there is no per-peer session table
// since UDP is connectionless by nature).
type UDPServer struct {
	endpoint Endpoint
	opts     ServerOptions
	session  *udpSession
}

// NewUDPServer binds endpoint and installs handler once Start is called.
func NewUDPServer(endpoint Endpoint, handler PacketHandler, opts ...Option) *UDPServer {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &UDPServer{endpoint: endpoint, opts: o, session: &udpSession{handler: handler, metrics: nopMetrics}}
}

func (srv *UDPServer) bind() (*net.UDPConn, error) {
	lc := srv.opts.listenConfig()
	pc, err := lc.ListenPacket(context.Background(), "udp", srv.endpoint.String())
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)
	if srv.opts.Session.ReceiveBufferSize > 0 {
		conn.SetReadBuffer(srv.opts.Session.ReceiveBufferSize)
	}
	if srv.opts.Session.SendBufferSize > 0 {
		conn.SetWriteBuffer(srv.opts.Session.SendBufferSize)
	}
	return conn, nil
}

func (srv *UDPServer) Start() error {
	conn, err := srv.bind()
	if err != nil {
		return err
	}
	srv.session.conn = conn
	srv.session.id = uuid.New()
	srv.session.closed = make(chan struct{})
	srv.session.closeOnce = sync.Once{}
	srv.session.readLoop()
	return nil
}

func (srv *UDPServer) StartAsync() error {
	conn, err := srv.bind()
	if err != nil {
		return err
	}
	srv.session.conn = conn
	srv.session.id = uuid.New()
	srv.session.closed = make(chan struct{})
	srv.session.closeOnce = sync.Once{}
	go srv.session.readLoop()
	return nil
}

func (srv *UDPServer) Stop() error { return srv.session.Close() }

// Restart stops and rebinds the server's socket, preserving its endpoint,
// handler, and options.
func (srv *UDPServer) Restart() error {
	srv.session.Close()
	return srv.StartAsync()
}

// DisconnectAll closes the server's single shared socket. UDP being
// connectionless, there is no per-peer session to close individually, so
// this is equivalent to Stop — kept as a separate name to match the
// Restart/DisconnectAll contract TCPServer and TLSServer expose.
func (srv *UDPServer) DisconnectAll() error { return srv.session.Close() }

func (srv *UDPServer) Session() PacketSession { return srv.session }

// NewUDPClient "connects" a UDP socket to remote: the kernel filters
// incoming datagrams to that peer, giving a Session-shaped API even
// though no handshake occurs on the wire.
func NewUDPClient(remote Endpoint, handler PacketHandler, opts ...Option) (*udpSession, error) {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	addr, err := remote.ResolveUDP()
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	if o.Session.ReceiveBufferSize > 0 {
		conn.SetReadBuffer(o.Session.ReceiveBufferSize)
	}
	if o.Session.SendBufferSize > 0 {
		conn.SetWriteBuffer(o.Session.SendBufferSize)
	}
	s := newUDPSession(conn, addr, handler)
	go s.readLoop()
	return s, nil
}
