package transport

import (
	"context"
	"crypto/tls"
	"net"
	"os"
	"syscall"
)

// applySessionOptions wires opts' socket-level tuning onto conn. conn may
// be a *net.TCPConn directly (a plain TCP session) or a *tls.Conn wrapping
// one (a TLS session or an accepted TLSServer connection), in which case
// NetConn unwraps to the real socket underneath. Any other net.Conn
// implementation (used in tests) is left untouched.
func applySessionOptions(conn net.Conn, opts SessionOptions) error {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return opts.applyToConn(tcpConn)
}

// setReuseAddr sets SO_REUSEADDR on fd, letting a restarted server rebind
// a port that still has connections sitting in TIME_WAIT.
func setReuseAddr(fd uintptr) error {
	return syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}

// setV6Only toggles IPV6_V6ONLY, used to implement ServerOptions.DualMode:
// a "::"-bound socket with it cleared also accepts IPv4 connections
// mapped onto ::ffff:0:0/96.
func setV6Only(fd uintptr, only bool) error {
	v := 0
	if only {
		v = 1
	}
	return syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, v)
}

// listenConfig builds a net.ListenConfig that applies o's socket-reuse and
// dual-stack options via Control, the hook net.ListenConfig exposes for
// SO_*-style options the standard library has no dedicated field for.
func (o ServerOptions) listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				if o.ReuseAddress && !o.ExclusiveAddressUse {
					if err := setReuseAddr(fd); err != nil {
						ctrlErr = err
						return
					}
				}
				if o.DualMode {
					if err := setV6Only(fd, false); err != nil {
						ctrlErr = err
					}
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
}

// listen binds network/address per o: AcceptorBacklog > 0 takes the
// lower-level path below since net.ListenConfig has no way to influence
// the listen(2) backlog (Go calls listen with its own OS-derived backlog
// immediately after Control returns, overriding anything set inside it);
// everything else goes through net.ListenConfig so ReuseAddress/DualMode
// still apply without duplicating that logic.
func (o ServerOptions) listen(network, address string) (net.Listener, error) {
	if o.AcceptorBacklog > 0 {
		return listenWithBacklog(network, address, o)
	}
	lc := o.listenConfig()
	return lc.Listen(context.Background(), network, address)
}

// listenWithBacklog performs the socket/bind/listen syscalls directly so
// AcceptorBacklog reaches the listen(2) call, then hands the fd to
// net.FileListener so the resulting net.Listener behaves like any other.
func listenWithBacklog(network, address string, o ServerOptions) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, err
	}
	domain := syscall.AF_INET
	if ip4 := addr.IP.To4(); addr.IP != nil && ip4 == nil {
		domain = syscall.AF_INET6
	}

	fd, err := syscall.Socket(domain, syscall.SOCK_STREAM, syscall.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	if o.ReuseAddress && !o.ExclusiveAddressUse {
		if err := setReuseAddr(uintptr(fd)); err != nil {
			syscall.Close(fd)
			return nil, os.NewSyscallError("setsockopt", err)
		}
	}
	if domain == syscall.AF_INET6 && o.DualMode {
		if err := setV6Only(uintptr(fd), false); err != nil {
			syscall.Close(fd)
			return nil, os.NewSyscallError("setsockopt", err)
		}
	}

	var sa syscall.Sockaddr
	if domain == syscall.AF_INET {
		var a4 [4]byte
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(a4[:], ip4)
		}
		sa = &syscall.SockaddrInet4{Port: addr.Port, Addr: a4}
	} else {
		var a16 [16]byte
		if addr.IP != nil {
			copy(a16[:], addr.IP.To16())
		}
		sa = &syscall.SockaddrInet6{Port: addr.Port, Addr: a16}
	}
	if err := syscall.Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := syscall.Listen(fd, o.AcceptorBacklog); err != nil {
		syscall.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	file := os.NewFile(uintptr(fd), address)
	defer file.Close()
	return net.FileListener(file)
}
