package http

import (
	"testing"
	"time"

	"netcore/pkg/transport"
)

func TestServerRoundTrip(t *testing.T) {
	mux := NewServeMux()
	mux.HandleFunc("/hello", func(w ResponseWriter, r *Request) {
		w.Header().Set(HeaderContentType, "text/plain; charset=utf-8")
		w.Write([]byte("hi " + r.URL.Query().Get("name")))
	})

	endpoint := transport.NewTCPEndpoint("127.0.0.1", 0)
	srv := NewServer(endpoint, mux)
	if err := srv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	resp, err := DefaultClient.Get("http://" + serverAddr(t, srv) + "/hello?name=world")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != "hi world" {
		t.Fatalf("body = %q", resp.Body)
	}
}

func serverAddr(t *testing.T, srv *Server) string {
	t.Helper()
	tcp, ok := srv.base.(*transport.TCPServer)
	if !ok {
		t.Fatal("server is not TCP-backed")
	}
	return waitListening(t, tcp)
}

func waitListening(t *testing.T, tcp *transport.TCPServer) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := tcp.ListenerAddr(); addr != "" {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never bound a listener")
	return ""
}
