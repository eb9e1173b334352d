package http

import "testing"

func TestCacheFeedSingleChunk(t *testing.T) {
	c := NewCache(64)
	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhowdy"
	msg, complete, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !complete {
		t.Fatal("expected message to complete in one Feed call")
	}
	if msg.Line.Method != "GET" || msg.Line.Target != "/hello" {
		t.Fatalf("unexpected start line: %+v", msg.Line)
	}
	if got := msg.Header.Get(HeaderHost); got != "example.com" {
		t.Fatalf("Host = %q", got)
	}
	if string(msg.Body) != "howdy" {
		t.Fatalf("Body = %q", msg.Body)
	}
}

// TestCacheFeedSplitAcrossCalls checks that a request split at every
// possible byte offset (including mid-terminator) still parses once all
// bytes have arrived, exercising the resumable header scan.
func TestCacheFeedSplitAcrossCalls(t *testing.T) {
	raw := []byte("POST /submit HTTP/1.1\r\nHost: h\r\nContent-Length: 3\r\n\r\nabc")
	for split := 1; split < len(raw); split++ {
		c := NewCache(16)
		_, complete, err := c.Feed(raw[:split])
		if err != nil {
			t.Fatalf("split %d: Feed first half: %v", split, err)
		}
		if complete {
			t.Fatalf("split %d: completed before the full message arrived", split)
		}
		msg, complete, err := c.Feed(raw[split:])
		if err != nil {
			t.Fatalf("split %d: Feed second half: %v", split, err)
		}
		if !complete {
			t.Fatalf("split %d: never completed", split)
		}
		if string(msg.Body) != "abc" {
			t.Fatalf("split %d: Body = %q", split, msg.Body)
		}
	}
}

func TestCachePipelining(t *testing.T) {
	c := NewCache(64)
	first := "GET /a HTTP/1.1\r\nHost: h\r\n\r\n"
	second := "GET /b HTTP/1.1\r\nHost: h\r\n\r\n"
	msg, complete, err := c.Feed([]byte(first + second))
	if err != nil || !complete {
		t.Fatalf("first message: complete=%v err=%v", complete, err)
	}
	if msg.Line.Target != "/a" {
		t.Fatalf("first target = %q", msg.Line.Target)
	}
	c.Advance()

	msg, complete, err = c.Feed(nil)
	if err != nil || !complete {
		t.Fatalf("second message: complete=%v err=%v", complete, err)
	}
	if msg.Line.Target != "/b" {
		t.Fatalf("second target = %q", msg.Line.Target)
	}
}

func TestRequestEncodeRoundTrip(t *testing.T) {
	req, err := MakePostRequest("http://example.com/items", []byte("payload"), "text/plain")
	if err != nil {
		t.Fatalf("MakePostRequest: %v", err)
	}
	req.Host = "example.com"
	encoded := req.Encode()

	c := NewCache(64)
	msg, complete, err := c.Feed(encoded)
	if err != nil || !complete {
		t.Fatalf("Feed: complete=%v err=%v", complete, err)
	}
	got, err := RequestFromMessage(msg)
	if err != nil {
		t.Fatalf("RequestFromMessage: %v", err)
	}
	if got.Method != MethodPost || got.URL.Path != "/items" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if string(got.Body) != "payload" {
		t.Fatalf("Body = %q", got.Body)
	}
}

func TestResponseEncodeRoundTrip(t *testing.T) {
	resp := MakeOkResponse([]byte("ok body"), "text/plain")
	encoded := resp.Encode()

	c := NewCache(64)
	msg, complete, err := c.Feed(encoded)
	if err != nil || !complete {
		t.Fatalf("Feed: complete=%v err=%v", complete, err)
	}
	got, err := ResponseFromMessage(msg, nil)
	if err != nil {
		t.Fatalf("ResponseFromMessage: %v", err)
	}
	if got.StatusCode != StatusOK {
		t.Fatalf("StatusCode = %d", got.StatusCode)
	}
	if string(got.Body) != "ok body" {
		t.Fatalf("Body = %q", got.Body)
	}
}

func TestCookieParsing(t *testing.T) {
	got := parseCookieHeader("a=1; b=two; c=")
	want := []CookiePair{{Name: "a", Value: "1"}, {Name: "b", Value: "two"}, {Name: "c", Value: ""}}
	if len(got) != len(want) {
		t.Fatalf("got %d pairs, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("pair %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestHeaderPreservesInsertionOrder(t *testing.T) {
	var h Header
	h.Add("X-Trace", "1")
	h.Set(HeaderContentType, "text/plain")
	h.Add("X-Trace", "2")

	want := []string{"X-Trace", "Content-Type", "X-Trace"}
	if len(h) != len(want) {
		t.Fatalf("got %d fields, want %d: %+v", len(h), len(want), h)
	}
	for i, name := range want {
		if h[i].Name != name {
			t.Fatalf("field %d name = %q, want %q", i, h[i].Name, name)
		}
	}

	h.Set("X-Trace", "3")
	if len(h) != 2 || h[0].Name != "X-Trace" || h[0].Value != "3" || h[1].Name != "Content-Type" {
		t.Fatalf("Set did not collapse repeats in place: %+v", h)
	}
}

// TestCacheSwitchingProtocolsCompletesAtHeaders checks that a 101 response
// (no Content-Length, as a real WebSocket handshake response sends) parses
// complete as soon as its headers are scanned instead of waiting for a
// body terminator that will never arrive.
func TestCacheSwitchingProtocolsCompletesAtHeaders(t *testing.T) {
	c := NewCache(64)
	raw := "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"
	msg, complete, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !complete {
		t.Fatal("expected 101 response to complete at headers, not wait for a body")
	}
	if len(msg.Body) != 0 {
		t.Fatalf("Body = %q, want empty", msg.Body)
	}
}

// TestCacheHeadResponseCompletesAtHeaders checks that a response to a HEAD
// request completes at headers even without Content-Length, since
// SetRequestMethod told the Cache the request was HEAD.
func TestCacheHeadResponseCompletesAtHeaders(t *testing.T) {
	c := NewCache(64)
	c.SetRequestMethod(MethodHead)
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\n"
	msg, complete, err := c.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !complete {
		t.Fatal("expected HEAD response to complete at headers")
	}
	if len(msg.Body) != 0 {
		t.Fatalf("Body = %q, want empty", msg.Body)
	}
}

// TestCacheFeedRejectsMalformedHeaderLine checks that a header line with
// no ':' separator, or an empty header name, fails the parse instead of
// being silently dropped.
func TestCacheFeedRejectsMalformedHeaderLine(t *testing.T) {
	cases := []string{
		"GET / HTTP/1.1\r\nHost example.com\r\n\r\n",
		"GET / HTTP/1.1\r\n: foo\r\n\r\n",
	}
	for _, raw := range cases {
		c := NewCache(64)
		_, _, err := c.Feed([]byte(raw))
		if err == nil {
			t.Fatalf("Feed(%q): expected error, got nil", raw)
		}
		if _, ok := err.(*ProtocolError); !ok {
			t.Fatalf("Feed(%q): err = %T, want *ProtocolError", raw, err)
		}
	}
}

func TestResponseIsEmpty(t *testing.T) {
	if !MakeOptionsResponse("GET").IsEmpty() {
		t.Fatal("OPTIONS response should be empty")
	}
	if MakeOkResponse([]byte("x"), "text/plain").IsEmpty() {
		t.Fatal("response with a body should not be empty")
	}
}
