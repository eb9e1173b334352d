package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// NewTLSSession creates a client-side TLS session. Because *tls.Conn
// satisfies net.Conn, it is handed to the exact same streamSession core
// that backs TCP sessions: the read loop, send queue, and state machine
// are bit-for-bit identical between the two transports, only the dial
// step differs.
func NewTLSSession(remote Endpoint, cfg *tls.Config, opts ...Option) *streamSession {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &net.Dialer{Timeout: 10 * time.Second}
	if o.Session.KeepAlive != nil && *o.Session.KeepAlive {
		d.KeepAlive = o.Session.KeepAliveTime
	} else if o.Session.KeepAlive != nil {
		d.KeepAlive = -1
	}
	dial := func() (net.Conn, error) {
		return tls.DialWithDialer(d, remote.Network, remote.String(), cfg)
	}
	return newStreamSession(nil, dial, o.Session, nil)
}

// TLSServer is a TCPServer whose listener is wrapped with tls.NewListener,
// so accepted conns are *tls.Conn and flow through the same streamSession
// and sessionTable machinery as TCPServer.adopt.
type TLSServer struct {
	*TCPServer
	cfg *tls.Config
}

// NewTLSServer builds a TLS server bound to endpoint once Start is called.
func NewTLSServer(endpoint Endpoint, cfg *tls.Config, opts ...Option) *TLSServer {
	return &TLSServer{TCPServer: NewTCPServer(endpoint, opts...), cfg: cfg}
}

func (srv *TLSServer) Start() error {
	if err := srv.listenTLS(); err != nil {
		return err
	}
	srv.acceptLoop()
	return nil
}

func (srv *TLSServer) StartAsync() error {
	if err := srv.listenTLS(); err != nil {
		return err
	}
	go srv.acceptLoop()
	return nil
}

// Restart stops the server and starts it again against the same endpoint,
// TLS config, and options, without blocking on the new accept loop.
// Overrides TCPServer.Restart: that version's StartAsync call would bind
// a plain, unwrapped listener, losing TLS.
func (srv *TLSServer) Restart() error {
	if err := srv.Stop(); err != nil {
		return err
	}
	return srv.StartAsync()
}

func (srv *TLSServer) listenTLS() error {
	if !srv.state.transition(evStart) {
		return ErrServerStarted
	}
	ln, err := srv.opts.listen(srv.endpoint.Network, srv.endpoint.String())
	if err != nil {
		srv.state.transition(evStopped)
		return err
	}
	srv.listener = tls.NewListener(ln, srv.cfg)
	srv.stopCh = make(chan struct{})
	srv.state.transition(evStarted)
	return nil
}
