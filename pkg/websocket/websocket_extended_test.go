package websocket

import (
	"net"
	"testing"
	"time"

	nethttp "netcore/pkg/http"
	"netcore/pkg/transport"
)

// newConnectedPair binds an ephemeral TCP server, connects a client
// session to it, and returns both raw transport.Sessions once the server
// has observed the accept. Frames are then exchanged directly at the
// transport layer so tests can drive WsSession without a full handshake.
func newConnectedPair(t *testing.T) (server, client transport.Session, cleanup func()) {
	t.Helper()
	srv := transport.NewTCPServer(transport.NewTCPEndpoint("127.0.0.1", 0))
	accepted := make(chan transport.Session, 1)
	srv.SetHandlerFactory(func(s transport.Session) transport.Handler {
		accepted <- s
		return &transport.HandlerFuncs{}
	})
	if err := srv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", srv.ListenerAddr())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cli := transport.NewTCPSession(transport.EndpointFromAddr(addr))
	if err := cli.Connect(); err != nil {
		srv.Stop()
		t.Fatalf("connect: %v", err)
	}

	var sv transport.Session
	select {
	case sv = <-accepted:
	case <-time.After(2 * time.Second):
		srv.Stop()
		cli.Disconnect()
		t.Fatal("server never accepted the client session")
	}

	return sv, cli, func() {
		cli.Disconnect()
		srv.Stop()
	}
}

// TestFragmentedMessageAssembly drives a server-side WsSession directly
// with a raw 3-frame fragmented TEXT message sent over the underlying
// transport.Session and checks it is delivered to OnWsReceived exactly
// once, fully reassembled.
func TestFragmentedMessageAssembly(t *testing.T) {
	serverSess, clientSess, cleanup := newConnectedPair(t)
	defer cleanup()

	received := make(chan string, 1)
	_ = newWsSession(serverSess, false, &MessageHandlerFuncs{
		OnWsReceivedFunc: func(ws *WsSession, opcode Opcode, payload []byte) {
			if opcode == OpcodeText {
				received <- string(payload)
			}
		},
	})

	frames := [][]byte{
		mustEncode(t, &Frame{Fin: false, Opcode: OpcodeText, Payload: []byte("Hello, ")}),
		mustEncode(t, &Frame{Fin: false, Opcode: OpcodeContinuation, Payload: []byte("frag")}),
		mustEncode(t, &Frame{Fin: true, Opcode: OpcodeContinuation, Payload: []byte("mented!")}),
	}
	for _, f := range frames {
		if _, err := clientSess.Send(f); err != nil {
			t.Fatalf("send fragment: %v", err)
		}
	}

	select {
	case got := <-received:
		if got != "Hello, fragmented!" {
			t.Fatalf("got %q, want %q", got, "Hello, fragmented!")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fragmented message never assembled")
	}
}

// TestControlFrameInterleavedDuringFragmentation checks that a PING
// arriving between two fragments of a message doesn't disturb assembly.
func TestControlFrameInterleavedDuringFragmentation(t *testing.T) {
	serverSess, clientSess, cleanup := newConnectedPair(t)
	defer cleanup()

	received := make(chan string, 1)
	pinged := make(chan []byte, 1)
	_ = newWsSession(serverSess, false, &MessageHandlerFuncs{
		OnWsReceivedFunc: func(ws *WsSession, opcode Opcode, payload []byte) {
			if opcode == OpcodeText {
				received <- string(payload)
			}
		},
		OnWsPingFunc: func(ws *WsSession, payload []byte) {
			pinged <- payload
		},
	})

	send := func(f *Frame) {
		if _, err := clientSess.Send(mustEncode(t, f)); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	send(&Frame{Fin: false, Opcode: OpcodeText, Payload: []byte("part1-")})
	send(&Frame{Fin: true, Opcode: OpcodePing, Payload: []byte("are-you-there")})
	send(&Frame{Fin: true, Opcode: OpcodeContinuation, Payload: []byte("part2")})

	select {
	case got := <-pinged:
		if string(got) != "are-you-there" {
			t.Fatalf("ping payload = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interleaved ping never delivered")
	}
	select {
	case got := <-received:
		if got != "part1-part2" {
			t.Fatalf("got %q, want %q", got, "part1-part2")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message assembly never completed after the interleaved ping")
	}
}

// TestContinuationWithoutStartIsProtocolError checks that a lone
// continuation frame (no prior non-FIN data frame) is rejected.
func TestContinuationWithoutStartIsProtocolError(t *testing.T) {
	serverSess, clientSess, cleanup := newConnectedPair(t)
	defer cleanup()

	errs := make(chan error, 1)
	_ = newWsSession(serverSess, false, &MessageHandlerFuncs{
		OnWsErrorFunc: func(ws *WsSession, err error) { errs <- err },
	})

	if _, err := clientSess.Send(mustEncode(t, &Frame{Fin: true, Opcode: OpcodeContinuation, Payload: []byte("orphan")})); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case err := <-errs:
		if err != ErrInvalidFrame {
			t.Fatalf("got error %v, want ErrInvalidFrame", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orphan continuation frame never reported as an error")
	}
}

// TestPingAutoReplyAndPongUpdatesLiveness checks that the session
// auto-answers a PING with a PONG, and that an incoming PONG is both
// delivered to the handler and recorded for heartbeat liveness tracking.
func TestPingAutoReplyAndPongUpdatesLiveness(t *testing.T) {
	serverSess, clientSess, cleanup := newConnectedPair(t)
	defer cleanup()

	ws := newWsSession(serverSess, false, &MessageHandlerFuncs{})

	pongReceived := make(chan []byte, 1)
	clientSess.SetHandler(&transport.HandlerFuncs{
		OnReceivedFunc: func(_ transport.Session, data []byte) {
			dec := NewDecoder()
			dec.Feed(data)
			if frame, ok, _ := dec.TryDecode(); ok && frame.Opcode == OpcodePong {
				pongReceived <- frame.Payload
			}
		},
	})

	if _, err := clientSess.Send(mustEncode(t, &Frame{Fin: true, Opcode: OpcodePing, Payload: []byte("ping-me")})); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	select {
	case payload := <-pongReceived:
		if string(payload) != "ping-me" {
			t.Fatalf("pong payload = %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never auto-replied with PONG")
	}

	ws.heartbeatMu.Lock()
	before := ws.lastPong
	ws.heartbeatMu.Unlock()

	if _, err := clientSess.Send(mustEncode(t, &Frame{Fin: true, Opcode: OpcodePong, Payload: nil})); err != nil {
		t.Fatalf("send pong: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		ws.heartbeatMu.Lock()
		after := ws.lastPong
		ws.heartbeatMu.Unlock()
		if after.After(before) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lastPong was never updated after receiving a PONG")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestCloseSendsFrameExactlyOnce checks that calling Close twice only
// ever puts a single CLOSE frame on the wire.
func TestCloseSendsFrameExactlyOnce(t *testing.T) {
	serverSess, clientSess, cleanup := newConnectedPair(t)
	defer cleanup()

	var closeFrames int
	done := make(chan struct{})
	clientSess.SetHandler(&transport.HandlerFuncs{
		OnReceivedFunc: func(_ transport.Session, data []byte) {
			dec := NewDecoder()
			dec.Feed(data)
			if frame, ok, _ := dec.TryDecode(); ok && frame.Opcode == OpcodeClose {
				closeFrames++
			}
		},
		OnDisconnectedFunc: func(transport.Session) { close(done) },
	})

	ws := newWsSession(serverSess, false, &MessageHandlerFuncs{})
	if err := ws.Close(CloseNormal, "bye"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A second Close call must not send another frame.
	ws.Close(CloseNormal, "bye again")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client never observed the session disconnect")
	}
	if closeFrames != 1 {
		t.Fatalf("observed %d CLOSE frames, want exactly 1", closeFrames)
	}
}

// TestUpgradeHandlerOnServeMux checks that NewUpgradeHandler integrates
// with a general-purpose ServeMux, leaving other routes unaffected.
func TestUpgradeHandlerOnServeMux(t *testing.T) {
	mux := nethttp.NewServeMux()
	upgraded := make(chan struct{}, 1)
	mux.Handle("/ws", NewUpgradeHandler(nil, func(ws *WsSession) MessageHandler {
		upgraded <- struct{}{}
		return &MessageHandlerFuncs{}
	}))
	mux.HandleFunc("/plain", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("ok"))
	})

	httpSrv := nethttp.NewServer(transport.NewTCPEndpoint("127.0.0.1", 0), mux)
	if err := httpSrv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer httpSrv.Stop()

	addr := httpSrv.Addr()
	if addr == "" {
		t.Fatal("server reports no bound address")
	}

	ws, err := Dial("ws://"+addr+"/ws", "", nil, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close(CloseNormal, "")

	select {
	case <-upgraded:
	case <-time.After(2 * time.Second):
		t.Fatal("factory never ran for the upgraded route")
	}
}

// TestDialRejectsNonUpgradeResponse checks that dialing a plain HTTP
// server (which answers 200 instead of 101) surfaces a handshake error.
func TestDialRejectsNonUpgradeResponse(t *testing.T) {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("not a websocket endpoint"))
	})
	httpSrv := nethttp.NewServer(transport.NewTCPEndpoint("127.0.0.1", 0), mux)
	if err := httpSrv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer httpSrv.Stop()

	_, err := Dial("ws://"+httpSrv.Addr()+"/", "", nil, nil)
	if err == nil {
		t.Fatal("expected Dial to fail against a non-upgrading server")
	}
}

func mustEncode(t *testing.T, f *Frame) []byte {
	t.Helper()
	b, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return b
}
