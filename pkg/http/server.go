package http

import (
	"crypto/tls"
	"strconv"
	"strings"
	"sync"

	"netcore/pkg/transport"
)

// Handler serves a single parsed Request by writing to ResponseWriter.
type Handler interface {
	ServeHTTP(ResponseWriter, *Request)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ResponseWriter, *Request)

func (f HandlerFunc) ServeHTTP(w ResponseWriter, r *Request) { f(w, r) }

// ResponseWriter accumulates a response; the server sends it on the
// underlying session once the Handler returns. The status is whatever the
// first WriteHeader call set, or 200 if the Handler never called it.
type ResponseWriter interface {
	Header() *Header
	Write([]byte) (int, error)
	WriteHeader(int)
}

// discardResponseWriter satisfies ResponseWriter for a request whose body
// only finished assembling after its session had already disconnected
// (the close-delimited body case): there is no longer anywhere to send a
// response, so writes to it are simply dropped.
type discardResponseWriter struct{}

func (discardResponseWriter) Header() *Header           { h := Header{}; return &h }
func (discardResponseWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardResponseWriter) WriteHeader(int)           {}

// Hijacker lets a Handler take over the underlying transport.Session after
// writing a response (or without writing one at all) — the WebSocket
// upgrade path's gateway into the session's raw byte stream. The returned
// slice is whatever bytes the Cache had already buffered past the request
// that triggered this call (a peer that pipelines its first WebSocket
// frame back-to-back with the upgrade request), so the new owner doesn't
// lose them.
type Hijacker interface {
	Hijack() (transport.Session, []byte, error)
}

type responseWriter struct {
	header      Header
	body        []byte
	statusCode  int
	wroteHeader bool
	sess        transport.Session
	cache       *Cache
	hijacked    bool
}

func newResponseWriter(sess transport.Session, cache *Cache) *responseWriter {
	return &responseWriter{header: Header{}, sess: sess, cache: cache}
}

func (rw *responseWriter) Header() *Header { return &rw.header }

func (rw *responseWriter) Write(p []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(StatusOK)
	}
	rw.body = append(rw.body, p...)
	return len(p), nil
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = statusCode
	rw.wroteHeader = true
}

// Hijack detaches sess from the server's request/response cycle: the
// caller becomes solely responsible for further reads and writes (no
// flush, no keep-alive handling, no further Cache-driven parsing).
func (rw *responseWriter) Hijack() (transport.Session, []byte, error) {
	rw.hijacked = true
	rw.wroteHeader = true
	return rw.sess, rw.cache.Remainder(), nil
}

// flush encodes the accumulated status/headers/body and sends it on sess.
func (rw *responseWriter) flush() {
	if !rw.wroteHeader {
		rw.WriteHeader(StatusOK)
	}
	resp := &Response{
		StatusCode: rw.statusCode,
		Reason:     StatusText(rw.statusCode),
		Proto:      ProtocolHTTP11,
		Header:     rw.header,
		Body:       rw.body,
	}
	if resp.Header.Get(HeaderContentLength) == "" {
		resp.Header.Set(HeaderContentLength, strconv.Itoa(len(rw.body)))
	}
	rw.sess.Send(resp.Encode())
}

// Server is an HTTP/1.1 server built on a transport.Server (TCP or TLS):
// each accepted session gets its own Cache and is fed to Handler.ServeHTTP
// once a full request has been parsed, with keep-alive pipelining handled
// by re-arming the Cache rather than closing the session between requests.
type Server struct {
	Handler Handler

	mu   sync.Mutex
	base transport.Server
}

// NewServer builds a plain-TCP HTTP server bound to endpoint.
func NewServer(endpoint transport.Endpoint, handler Handler, opts ...transport.Option) *Server {
	s := &Server{Handler: handler}
	srv := transport.NewTCPServer(endpoint, opts...)
	srv.SetHandlerFactory(s.sessionHandlerFactory)
	s.base = srv
	return s
}

// NewTLSServer builds an HTTPS server bound to endpoint using cfg.
func NewTLSServer(endpoint transport.Endpoint, cfg *tls.Config, handler Handler, opts ...transport.Option) *Server {
	s := &Server{Handler: handler}
	srv := transport.NewTLSServer(endpoint, cfg, opts...)
	srv.SetHandlerFactory(s.sessionHandlerFactory)
	s.base = srv
	return s
}

func (s *Server) sessionHandlerFactory(sess transport.Session) transport.Handler {
	cache := NewCache(4096)
	return &transport.HandlerFuncs{
		OnReceivedFunc: func(sess transport.Session, data []byte) {
			s.handleBytes(sess, cache, data)
		},
		OnDisconnectedFunc: func(sess transport.Session) {
			// A request with no Content-Length whose body runs until close
			// (see bodyLength) only completes here: the peer hung up
			// instead of sending a terminating "\r\n\r\n".
			if msg, ok := cache.FinishOnClose(); ok {
				if req, err := RequestFromMessage(msg); err == nil {
					s.Handler.ServeHTTP(discardResponseWriter{}, req)
				}
			}
		},
	}
}

func (s *Server) handleBytes(sess transport.Session, cache *Cache, data []byte) {
	msg, complete, err := cache.Feed(data)
	if err != nil {
		sess.Send(MakeErrorResponse(StatusBadRequest, err.Error()).Encode())
		sess.Disconnect()
		return
	}
	if !complete {
		return
	}
	req, err := RequestFromMessage(msg)
	if err != nil {
		sess.Send(MakeErrorResponse(StatusBadRequest, err.Error()).Encode())
		sess.Disconnect()
		cache.Advance()
		return
	}
	w := newResponseWriter(sess, cache)
	s.Handler.ServeHTTP(w, req)
	if w.hijacked {
		// The handler took ownership of sess (e.g. a WebSocket upgrade):
		// it installed its own transport.Handler, so this Cache and its
		// keep-alive bookkeeping no longer apply.
		return
	}
	w.flush()
	cache.Advance()

	if req.Header.Get(HeaderConnection) == ConnectionClose || req.Proto == ProtocolHTTP10 {
		sess.Disconnect()
		return
	}
	// A pipelined request that arrived in the same read is already
	// buffered past the one just served; parse and serve it now.
	s.handleBytes(sess, cache, nil)
}

func (s *Server) Start() error      { return s.base.Start() }
func (s *Server) StartAsync() error { return s.base.StartAsync() }
func (s *Server) Stop() error       { return s.base.Stop() }
func (s *Server) StopAsync()        { s.base.StopAsync() }
func (s *Server) Restart() error    { return s.base.Restart() }
func (s *Server) DisconnectAll()    { s.base.DisconnectAll() }

// Addr returns the bound listener's address, or "" before Start/StartAsync
// has completed.
func (s *Server) Addr() string { return s.base.ListenerAddr() }

// ServeMux is a minimal HTTP request multiplexer: exact match first, then
// the longest registered prefix ending in "/".
type ServeMux struct {
	mu sync.RWMutex
	m  map[string]muxEntry
}

type muxEntry struct {
	h       Handler
	pattern string
}

func NewServeMux() *ServeMux {
	return &ServeMux{m: make(map[string]muxEntry)}
}

func (mux *ServeMux) Handle(pattern string, handler Handler) {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	if pattern == "" || handler == nil {
		panic("http: invalid Handle call")
	}
	mux.m[pattern] = muxEntry{h: handler, pattern: pattern}
}

func (mux *ServeMux) HandleFunc(pattern string, fn func(ResponseWriter, *Request)) {
	mux.Handle(pattern, HandlerFunc(fn))
}

func (mux *ServeMux) ServeHTTP(w ResponseWriter, r *Request) {
	mux.mu.RLock()
	defer mux.mu.RUnlock()
	if e, ok := mux.m[r.URL.Path]; ok {
		e.h.ServeHTTP(w, r)
		return
	}
	var best muxEntry
	for pattern, e := range mux.m {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(r.URL.Path, pattern) {
			if len(pattern) > len(best.pattern) {
				best = e
			}
		}
	}
	if best.h != nil {
		best.h.ServeHTTP(w, r)
		return
	}
	NotFound(w, r)
}

func NotFound(w ResponseWriter, r *Request) {
	resp := MakeErrorResponse(StatusNotFound, "404 page not found")
	w.Header().Set(HeaderContentType, resp.Header.Get(HeaderContentType))
	w.WriteHeader(StatusNotFound)
	w.Write(resp.Body)
}

func MethodNotAllowed(w ResponseWriter, r *Request) {
	w.Header().Set(HeaderAllow, "GET, POST, PUT, DELETE, OPTIONS")
	resp := MakeErrorResponse(StatusMethodNotAllowed, "method not allowed")
	w.WriteHeader(StatusMethodNotAllowed)
	w.Write(resp.Body)
}
