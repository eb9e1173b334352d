package websocket

import (
	"testing"
	"time"

	nethttp "netcore/pkg/http"
	"netcore/pkg/transport"
)

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		opcode  Opcode
		payload []byte
		masked  bool
	}{
		{"short-text-unmasked", OpcodeText, []byte("hello"), false},
		{"short-text-masked", OpcodeText, []byte("hello"), true},
		{"empty-binary", OpcodeBinary, nil, false},
		{"medium-binary-126", OpcodeBinary, make([]byte, 200), false},
		{"large-binary-127", OpcodeBinary, make([]byte, 70000), true},
		{"ping", OpcodePing, []byte("ping"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, err := EncodeFrame(&Frame{Fin: true, Opcode: c.opcode, Masked: c.masked, Payload: c.payload})
			if err != nil {
				t.Fatalf("EncodeFrame: %v", err)
			}
			dec := NewDecoder()
			dec.Feed(b)
			frame, ok, err := dec.TryDecode()
			if err != nil {
				t.Fatalf("TryDecode: %v", err)
			}
			if !ok {
				t.Fatal("TryDecode reported not enough data for a self-contained frame")
			}
			if frame.Opcode != c.opcode {
				t.Errorf("opcode = %v, want %v", frame.Opcode, c.opcode)
			}
			if string(frame.Payload) != string(c.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(frame.Payload), len(c.payload))
			}
		})
	}
}

func TestDecoderIncrementalFeed(t *testing.T) {
	b, err := EncodeFrame(&Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("split across reads")})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	dec := NewDecoder()
	for i := 0; i < len(b)-1; i++ {
		dec.Feed(b[i : i+1])
		if _, ok, err := dec.TryDecode(); err != nil || ok {
			t.Fatalf("byte %d: TryDecode = (ok=%v, err=%v), want incomplete", i, ok, err)
		}
	}
	dec.Feed(b[len(b)-1:])
	frame, ok, err := dec.TryDecode()
	if err != nil || !ok {
		t.Fatalf("final byte: TryDecode = (ok=%v, err=%v), want complete frame", ok, err)
	}
	if string(frame.Payload) != "split across reads" {
		t.Errorf("payload = %q", frame.Payload)
	}
}

func TestDecoderMultipleFramesInOneFeed(t *testing.T) {
	f1, _ := EncodeFrame(&Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("one")})
	f2, _ := EncodeFrame(&Frame{Fin: true, Opcode: OpcodeText, Payload: []byte("two")})
	dec := NewDecoder()
	dec.Feed(append(f1, f2...))

	var got []string
	for {
		frame, ok, err := dec.TryDecode()
		if err != nil {
			t.Fatalf("TryDecode: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(frame.Payload))
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}
}

func TestFrameValidateRejectsFragmentedControl(t *testing.T) {
	f := &Frame{Fin: false, Opcode: OpcodePing}
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for fragmented control frame")
	}
}

func TestFrameValidateRejectsOversizedControlPayload(t *testing.T) {
	f := &Frame{Fin: true, Opcode: OpcodeClose, Payload: make([]byte, MaxControlPayloadSize+1)}
	if err := f.Validate(); err == nil {
		t.Fatal("expected error for oversized control payload")
	}
}

func TestEncodeMessageFragmentsLargePayload(t *testing.T) {
	payload := make([]byte, 30)
	for i := range payload {
		payload[i] = byte(i)
	}
	frames, err := EncodeMessage(OpcodeBinary, payload, false, 10)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	dec := NewDecoder()
	var opcodes []Opcode
	var fins []bool
	var reassembled []byte
	for _, fb := range frames {
		dec.Feed(fb)
		frame, ok, err := dec.TryDecode()
		if err != nil || !ok {
			t.Fatalf("TryDecode: ok=%v err=%v", ok, err)
		}
		opcodes = append(opcodes, frame.Opcode)
		fins = append(fins, frame.Fin)
		reassembled = append(reassembled, frame.Payload...)
	}
	if opcodes[0] != OpcodeBinary || opcodes[1] != OpcodeContinuation || opcodes[2] != OpcodeContinuation {
		t.Fatalf("opcodes = %v", opcodes)
	}
	if fins[0] || fins[1] || !fins[2] {
		t.Fatalf("fin flags = %v, want [false false true]", fins)
	}
	if string(reassembled) != string(payload) {
		t.Fatal("reassembled payload mismatch")
	}
}

func TestGenerateAndVerifyAcceptKey(t *testing.T) {
	key, err := GenerateSecKey()
	if err != nil {
		t.Fatalf("GenerateSecKey: %v", err)
	}
	accept := generateAcceptKey(key)
	if !VerifyAcceptKey(key, accept) {
		t.Fatal("VerifyAcceptKey rejected a correctly generated accept value")
	}
	if VerifyAcceptKey(key, "bogus") {
		t.Fatal("VerifyAcceptKey accepted a mismatched value")
	}
}

func TestUpgraderAcceptValidatesRequest(t *testing.T) {
	u := NewUpgrader()
	key, err := GenerateSecKey()
	if err != nil {
		t.Fatalf("GenerateSecKey: %v", err)
	}

	valid := &nethttp.Request{Method: nethttp.MethodGet, Header: nethttp.Header{}}
	valid.Header.Set(headerUpgrade, "websocket")
	valid.Header.Set(headerConnection, "Upgrade")
	valid.Header.Set(headerSecWebSocketVersion, "13")
	valid.Header.Set(headerSecWebSocketKey, key)
	if _, err := u.Accept(valid); err != nil {
		t.Fatalf("Accept on a valid handshake request: %v", err)
	}

	missingUpgrade := &nethttp.Request{Method: nethttp.MethodGet, Header: nethttp.Header{}}
	missingUpgrade.Header.Set(headerConnection, "Upgrade")
	missingUpgrade.Header.Set(headerSecWebSocketVersion, "13")
	missingUpgrade.Header.Set(headerSecWebSocketKey, key)
	if _, err := u.Accept(missingUpgrade); err == nil {
		t.Fatal("expected error for missing Upgrade header")
	}

	badVersion := &nethttp.Request{Method: nethttp.MethodGet, Header: nethttp.Header{}}
	badVersion.Header.Set(headerUpgrade, "websocket")
	badVersion.Header.Set(headerConnection, "Upgrade")
	badVersion.Header.Set(headerSecWebSocketVersion, "8")
	badVersion.Header.Set(headerSecWebSocketKey, key)
	if _, err := u.Accept(badVersion); err == nil {
		t.Fatal("expected error for unsupported Sec-WebSocket-Version")
	}
}

// TestUpgradeDialRoundTrip exercises the full server Upgrade / client Dial
// path over a real loopback TCP connection: handshake, a text message in
// each direction, and a clean close.
func TestUpgradeDialRoundTrip(t *testing.T) {
	serverRecv := make(chan string, 1)
	factory := func(ws *WsSession) MessageHandler {
		return &MessageHandlerFuncs{
			OnWsReceivedFunc: func(ws *WsSession, opcode Opcode, payload []byte) {
				if opcode == OpcodeText {
					serverRecv <- string(payload)
					ws.SendTextAsync("echo:" + string(payload))
				}
			},
		}
	}

	srv := NewServer(transport.NewTCPEndpoint("127.0.0.1", 0), factory)
	if err := srv.StartAsync(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop()

	addr := srv.Addr()
	if addr == "" {
		t.Fatal("server reports no bound address")
	}

	clientRecv := make(chan string, 1)
	ws, err := Dial("ws://"+addr+"/", "", nil, &MessageHandlerFuncs{
		OnWsReceivedFunc: func(ws *WsSession, opcode Opcode, payload []byte) {
			if opcode == OpcodeText {
				clientRecv <- string(payload)
			}
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ws.Close(CloseNormal, "")

	if err := ws.SendText("hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	select {
	case got := <-serverRecv:
		if got != "hi" {
			t.Fatalf("server received %q, want %q", got, "hi")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the client's message")
	}

	select {
	case got := <-clientRecv:
		if got != "echo:hi" {
			t.Fatalf("client received %q, want %q", got, "echo:hi")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client never received the server's echo")
	}
}
