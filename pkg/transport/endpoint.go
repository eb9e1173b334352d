package transport

import (
	"fmt"
	"net"
)

// Endpoint is an abstract resolution/binding record: a network family, host,
// and port, independent of whether it has been resolved or bound yet.
type Endpoint struct {
	// Network is "tcp", "tcp4", "tcp6", "udp", "udp4", or "udp6".
	Network string
	Host    string
	Port    int
}

// NewTCPEndpoint builds a TCP endpoint for host:port.
func NewTCPEndpoint(host string, port int) Endpoint {
	return Endpoint{Network: "tcp", Host: host, Port: port}
}

// NewUDPEndpoint builds a UDP endpoint for host:port.
func NewUDPEndpoint(host string, port int) Endpoint {
	return Endpoint{Network: "udp", Host: host, Port: port}
}

// String renders the endpoint in host:port form suitable for net.Dial/Listen.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port))
}

// IsUDP reports whether the endpoint names a UDP network.
func (e Endpoint) IsUDP() bool {
	switch e.Network {
	case "udp", "udp4", "udp6":
		return true
	default:
		return false
	}
}

// ResolveTCP resolves the endpoint to a *net.TCPAddr.
func (e Endpoint) ResolveTCP() (*net.TCPAddr, error) {
	return net.ResolveTCPAddr(e.Network, e.String())
}

// ResolveUDP resolves the endpoint to a *net.UDPAddr.
func (e Endpoint) ResolveUDP() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr(e.Network, e.String())
}

// EndpointFromAddr converts a net.Addr (as returned by Conn.RemoteAddr, etc.)
// back into an Endpoint.
func EndpointFromAddr(addr net.Addr) Endpoint {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return Endpoint{Network: "tcp", Host: a.IP.String(), Port: a.Port}
	case *net.UDPAddr:
		return Endpoint{Network: "udp", Host: a.IP.String(), Port: a.Port}
	default:
		host, port, err := net.SplitHostPort(addr.String())
		if err != nil {
			return Endpoint{Network: addr.Network(), Host: addr.String()}
		}
		var p int
		fmt.Sscanf(port, "%d", &p)
		return Endpoint{Network: addr.Network(), Host: host, Port: p}
	}
}
