package transport

import (
	"net"
	"sync"
	"testing"
	"time"
)

// TestTCPEchoRoundTrip dials a local TCPServer that echoes every receive
// back to the sender and asserts the client sees exactly what it sent.
func TestTCPEchoRoundTrip(t *testing.T) {
	srv := NewTCPServer(NewTCPEndpoint("127.0.0.1", 0))
	srv.SetHandlerFactory(func(s Session) Handler {
		return &HandlerFuncs{
			OnReceivedFunc: func(s Session, data []byte) {
				s.SendAsync(data)
			},
		}
	})
	if err := srv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	// port 0 picks an ephemeral port; recover it from the bound listener.
	addr := srv.listener.Addr().String()

	var (
		mu   sync.Mutex
		got  []byte
		done = make(chan struct{})
	)
	client := NewTCPSession(EndpointFromAddr(mustResolveTCP(t, addr)))
	client.SetHandler(&HandlerFuncs{
		OnReceivedFunc: func(s Session, data []byte) {
			mu.Lock()
			got = append(got, data...)
			mu.Unlock()
			close(done)
		},
	})
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	want := []byte("hello transport")
	if ok := client.SendAsync(want); !ok {
		t.Fatalf("SendAsync returned false")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSessionTableInvariant(t *testing.T) {
	srv := NewTCPServer(NewTCPEndpoint("127.0.0.1", 0))
	connected := make(chan Session, 1)
	srv.SetHandlerFactory(func(s Session) Handler {
		return &HandlerFuncs{
			OnConnectedFunc: func(s Session) { connected <- s },
		}
	})
	if err := srv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	addr := srv.listener.Addr().String()
	client := NewTCPSession(EndpointFromAddr(mustResolveTCP(t, addr)))
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Disconnect()

	var accepted Session
	select {
	case accepted = <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("server never reported OnConnected")
	}

	if accepted.State() != SessionConnected {
		t.Fatalf("accepted session state = %v, want Connected", accepted.State())
	}
	if _, ok := srv.Session(accepted.ID()); !ok {
		t.Fatal("connected session missing from server's table")
	}

	accepted.Disconnect()
	time.Sleep(50 * time.Millisecond)
	if _, ok := srv.Session(accepted.ID()); ok {
		t.Fatal("disconnected session still present in server's table")
	}
}

func mustResolveTCP(t *testing.T, addr string) *net.TCPAddr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		t.Fatalf("resolve %s: %v", addr, err)
	}
	return a
}
