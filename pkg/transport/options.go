package transport

import (
	"net"
	"time"
)

// SessionOptions tunes a single session's buffers, timeouts, and the
// underlying socket's tuning knobs.
type SessionOptions struct {
	// ReadBufferHint sizes the initial receive Buffer capacity. Zero uses
	// a small library default and lets the buffer grow by doubling.
	ReadBufferHint int
	// SendQueueLimit bounds how many queued SendAsync calls may be
	// in-flight before it reports backpressure via OnError(KindTransport).
	// Zero means unbounded.
	SendQueueLimit int
	// ReadTimeout/WriteTimeout are applied per-syscall via
	// SetReadDeadline/SetWriteDeadline. Zero disables the deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// NoDelay disables Nagle's algorithm on a TCP/TLS session's socket
	// (TCP_NODELAY). Defaults to true: small, latency-sensitive frames
	// (HTTP headers, WebSocket frames) are this library's common case.
	NoDelay *bool
	// KeepAlive enables the kernel's TCP keepalive probing. Defaults to
	// true.
	KeepAlive *bool
	// KeepAliveTime is how long a connection sits idle before the first
	// keepalive probe. Zero uses the OS default.
	KeepAliveTime time.Duration
	// KeepAliveInterval is the spacing between subsequent probes once
	// the first has gone unanswered. Zero uses the OS default.
	KeepAliveInterval time.Duration
	// KeepAliveRetry caps how many unanswered probes the kernel sends
	// before giving up on the connection. Zero uses the OS default.
	KeepAliveRetry int
	// ReceiveBufferSize/SendBufferSize set the socket's SO_RCVBUF/
	// SO_SNDBUF. Zero leaves the OS default in place.
	ReceiveBufferSize int
	SendBufferSize    int
}

func defaultSessionOptions() SessionOptions {
	noDelay, keepAlive := true, true
	return SessionOptions{
		ReadBufferHint: 4096,
		NoDelay:        &noDelay,
		KeepAlive:      &keepAlive,
	}
}

// applyToConn wires the socket-level fields onto conn when it is a
// *net.TCPConn (a *tls.Conn's underlying connection is unwrapped by the
// caller first). Any field left at its zero value is left to the OS
// default.
func (o SessionOptions) applyToConn(conn *net.TCPConn) error {
	if o.NoDelay != nil {
		if err := conn.SetNoDelay(*o.NoDelay); err != nil {
			return err
		}
	}
	if o.KeepAliveTime > 0 || o.KeepAliveInterval > 0 || o.KeepAliveRetry > 0 {
		cfg := net.KeepAliveConfig{Enable: true, Idle: o.KeepAliveTime, Interval: o.KeepAliveInterval, Count: o.KeepAliveRetry}
		if o.KeepAlive != nil {
			cfg.Enable = *o.KeepAlive
		}
		if err := conn.SetKeepAliveConfig(cfg); err != nil {
			return err
		}
	} else if o.KeepAlive != nil {
		if err := conn.SetKeepAlive(*o.KeepAlive); err != nil {
			return err
		}
	}
	if o.ReceiveBufferSize > 0 {
		if err := conn.SetReadBuffer(o.ReceiveBufferSize); err != nil {
			return err
		}
	}
	if o.SendBufferSize > 0 {
		if err := conn.SetWriteBuffer(o.SendBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// ServerOptions configures a Server's listener and session limits.
type ServerOptions struct {
	Session SessionOptions
	// MaxSessions bounds concurrently Connected sessions. Zero means
	// unbounded. Exceeding it causes new accepts to be closed immediately
	// and counted in Stats().Rejected.
	MaxSessions int
	// MaxSessionsPerAddress bounds concurrently Connected sessions sharing
	// the same remote host. Zero means unbounded.
	MaxSessionsPerAddress int
	// AcceptErrorBackoff is how long Accept's loop sleeps after a
	// temporary accept error before retrying.
	AcceptErrorBackoff time.Duration

	// ReuseAddress sets SO_REUSEADDR on the listening socket, letting a
	// restarted server rebind a port still in TIME_WAIT.
	ReuseAddress bool
	// ExclusiveAddressUse takes precedence over ReuseAddress: when both are
	// set, SO_REUSEADDR is not applied. It sets no socket option of its own
	// (no SO_EXCLUSIVEADDRUSE, no SO_REUSEPORT handling).
	ExclusiveAddressUse bool
	// DualMode accepts both IPv4 and IPv6 on a single listener bound to
	// "::" (disables IPV6_V6ONLY). Only meaningful for tcp6/udp6 listens.
	DualMode bool
	// AcceptorBacklog hints the pending-connection backlog passed to the
	// OS listen(2) call. Zero uses the OS default.
	AcceptorBacklog int
}

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Session:            defaultSessionOptions(),
		AcceptErrorBackoff: 50 * time.Millisecond,
	}
}

// Option mutates a ServerOptions or SessionOptions at construction time.
type Option func(*ServerOptions)

func WithMaxSessions(n int) Option {
	return func(o *ServerOptions) { o.MaxSessions = n }
}

func WithMaxSessionsPerAddress(n int) Option {
	return func(o *ServerOptions) { o.MaxSessionsPerAddress = n }
}

func WithReadBufferHint(n int) Option {
	return func(o *ServerOptions) { o.Session.ReadBufferHint = n }
}

func WithSendQueueLimit(n int) Option {
	return func(o *ServerOptions) { o.Session.SendQueueLimit = n }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *ServerOptions) { o.Session.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *ServerOptions) { o.Session.WriteTimeout = d }
}

func WithNoDelay(v bool) Option {
	return func(o *ServerOptions) { o.Session.NoDelay = &v }
}

func WithKeepAlive(v bool) Option {
	return func(o *ServerOptions) { o.Session.KeepAlive = &v }
}

func WithKeepAliveTime(d time.Duration) Option {
	return func(o *ServerOptions) { o.Session.KeepAliveTime = d }
}

func WithKeepAliveInterval(d time.Duration) Option {
	return func(o *ServerOptions) { o.Session.KeepAliveInterval = d }
}

func WithKeepAliveRetry(n int) Option {
	return func(o *ServerOptions) { o.Session.KeepAliveRetry = n }
}

func WithReceiveBufferSize(n int) Option {
	return func(o *ServerOptions) { o.Session.ReceiveBufferSize = n }
}

func WithSendBufferSize(n int) Option {
	return func(o *ServerOptions) { o.Session.SendBufferSize = n }
}

func WithReuseAddress(v bool) Option {
	return func(o *ServerOptions) { o.ReuseAddress = v }
}

func WithExclusiveAddressUse(v bool) Option {
	return func(o *ServerOptions) { o.ExclusiveAddressUse = v }
}

func WithDualMode(v bool) Option {
	return func(o *ServerOptions) { o.DualMode = v }
}

func WithAcceptorBacklog(n int) Option {
	return func(o *ServerOptions) { o.AcceptorBacklog = n }
}
