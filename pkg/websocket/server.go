package websocket

import (
	"crypto/tls"

	nethttp "netcore/pkg/http"
	"netcore/pkg/transport"
)

// Upgrade validates r as a WebSocket handshake and, on success, writes the
// 101 response on w's underlying session and hands that session off to a
// new WsSession wired to handler. Any bytes the server had already
// buffered past the handshake request (a peer pipelining its first frame)
// are returned as leftover so the caller can feed them in once its real
// MessageHandler (often only known after Upgrade returns) is attached.
func Upgrade(w nethttp.ResponseWriter, r *nethttp.Request, u *Upgrader, handler MessageHandler) (ws *WsSession, leftover []byte, err error) {
	if u == nil {
		u = NewUpgrader()
	}
	resp, err := u.Accept(r)
	if err != nil {
		return nil, nil, err
	}
	hijacker, ok := w.(nethttp.Hijacker)
	if !ok {
		return nil, nil, ErrNotWebSocketRequest
	}
	sess, leftover, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, err
	}
	if _, err := sess.Send(resp); err != nil {
		sess.Disconnect()
		return nil, nil, err
	}
	ws = newWsSession(sess, false, handler)
	return ws, leftover, nil
}

// Server pairs an http.Server with an Upgrader: every request is treated
// as a WebSocket handshake attempt (as opposed to a general HTTP server
// that occasionally upgrades a route, which NewUpgradeHandler below
// supports instead).
type Server struct {
	Upgrader *Upgrader
	Factory  func(*WsSession) MessageHandler

	http *nethttp.Server
}

// NewServer builds a plain-TCP WebSocket server bound to endpoint: every
// accepted connection's first HTTP request is treated as the handshake.
func NewServer(endpoint transport.Endpoint, factory func(*WsSession) MessageHandler, opts ...transport.Option) *Server {
	s := &Server{Upgrader: NewUpgrader(), Factory: factory}
	s.http = nethttp.NewServer(endpoint, nethttp.HandlerFunc(s.serveHTTP), opts...)
	return s
}

// NewTLSServer builds a WSS server bound to endpoint using cfg.
func NewTLSServer(endpoint transport.Endpoint, cfg *tls.Config, factory func(*WsSession) MessageHandler, opts ...transport.Option) *Server {
	s := &Server{Upgrader: NewUpgrader(), Factory: factory}
	s.http = nethttp.NewTLSServer(endpoint, cfg, nethttp.HandlerFunc(s.serveHTTP), opts...)
	return s
}

func (s *Server) serveHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	ws, leftover, err := Upgrade(w, r, s.Upgrader, nil)
	if err != nil {
		writeHandshakeError(w, err)
		return
	}
	if s.Factory != nil {
		ws.SetHandler(s.Factory(ws))
	}
	if len(leftover) > 0 {
		ws.feed(leftover)
	}
}

func writeHandshakeError(w nethttp.ResponseWriter, err error) {
	status := nethttp.StatusBadRequest
	if he, ok := err.(*HandshakeError); ok {
		status = he.Status
	}
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func (s *Server) Start() error      { return s.http.Start() }
func (s *Server) StartAsync() error { return s.http.StartAsync() }
func (s *Server) Stop() error       { return s.http.Stop() }
func (s *Server) StopAsync()        { s.http.StopAsync() }
func (s *Server) Restart() error    { return s.http.Restart() }
func (s *Server) DisconnectAll()    { s.http.DisconnectAll() }

// Addr returns the bound listener's address, or "" before Start/StartAsync
// has completed.
func (s *Server) Addr() string { return s.http.Addr() }

// NewUpgradeHandler adapts Upgrade into an nethttp.Handler for mounting a
// WebSocket endpoint on one route of a general-purpose http.ServeMux,
// leaving the rest of the mux serving ordinary HTTP.
func NewUpgradeHandler(u *Upgrader, factory func(*WsSession) MessageHandler) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ws, leftover, err := Upgrade(w, r, u, nil)
		if err != nil {
			writeHandshakeError(w, err)
			return
		}
		if factory != nil {
			ws.SetHandler(factory(ws))
		}
		if len(leftover) > 0 {
			ws.feed(leftover)
		}
	}
}
