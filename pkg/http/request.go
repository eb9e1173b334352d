package http

import (
	"net/url"
	"strconv"
	"strings"
)

// Request is a parsed or to-be-sent HTTP/1.1 request. Body is an owned
// byte slice rather than an io.Reader: the codec never streams a body
// larger than what already arrived in the session's receive buffer (see
// the Non-goals on chunked transfer encoding and general streaming).
type Request struct {
	Method string
	URL    *url.URL
	Proto  string
	Header Header
	Body   []byte
	Host   string
}

// NewRequest builds a request ready for Encode.
func NewRequest(method, urlStr string, body []byte) (*Request, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method: method,
		URL:    u,
		Proto:  ProtocolHTTP11,
		Header: Header{},
		Body:   body,
		Host:   u.Host,
	}, nil
}

// MakeGetRequest builds a GET request with no body.
func MakeGetRequest(urlStr string) (*Request, error) {
	return NewRequest(MethodGet, urlStr, nil)
}

// MakePostRequest builds a POST request carrying body, setting
// Content-Length and, if ct is non-empty, Content-Type.
func MakePostRequest(urlStr string, body []byte, ct string) (*Request, error) {
	r, err := NewRequest(MethodPost, urlStr, body)
	if err != nil {
		return nil, err
	}
	r.Header.Set(HeaderContentLength, strconv.Itoa(len(body)))
	if ct != "" {
		r.Header.Set(HeaderContentType, ct)
	}
	return r, nil
}

// RequestURI returns the request-target (path and query) sent on the wire.
func (r *Request) RequestURI() string {
	if r.URL != nil {
		return r.URL.RequestURI()
	}
	return "/"
}

// Encode renders the request as wire bytes.
func (r *Request) Encode() []byte {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.RequestURI())
	b.WriteByte(' ')
	if r.Proto == "" {
		b.WriteString(ProtocolHTTP11)
	} else {
		b.WriteString(r.Proto)
	}
	b.WriteString("\r\n")
	if r.Host != "" {
		b.WriteString(HeaderHost + ": " + r.Host + "\r\n")
	}
	writeHeaderLines(&b, r.Header)
	b.WriteString("\r\n")
	out := []byte(b.String())
	return append(out, r.Body...)
}

// RequestFromMessage converts a parsed Message into a Request. The caller
// should copy msg.Body if it intends to retain it past the next
// Cache.Advance.
func RequestFromMessage(msg *Message) (*Request, error) {
	u, err := url.Parse(msg.Line.Target)
	if err != nil {
		return nil, &ProtocolError{"malformed request target: " + msg.Line.Target}
	}
	if !isValidMethod(msg.Line.Method) {
		return nil, &ProtocolError{"invalid method: " + msg.Line.Method}
	}
	host := msg.Header.Get(HeaderHost)
	if host == "" {
		host = u.Host
	}
	return &Request{
		Method: msg.Line.Method,
		URL:    u,
		Proto:  msg.Line.Proto,
		Header: msg.Header,
		Body:   msg.Body,
		Host:   host,
	}, nil
}

func writeHeaderLines(b *strings.Builder, h Header) {
	for _, f := range h {
		b.WriteString(f.Name + ": " + f.Value + "\r\n")
	}
}

// ContentLength returns the Content-Length header value, or -1 if unset
// or not a valid non-negative integer.
func (r *Request) ContentLength() int64 {
	if r.Header == nil {
		return -1
	}
	n, err := strconv.ParseInt(r.Header.Get(HeaderContentLength), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// UserAgent returns the User-Agent header value.
func (r *Request) UserAgent() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(HeaderUserAgent)
}

// Cookies parses the Cookie header into an ordered list of name/value
// pairs, preserving the order they appeared on the wire.
func (r *Request) Cookies() []CookiePair {
	if r.Header == nil {
		return nil
	}
	return parseCookieHeader(r.Header.Get(HeaderCookie))
}

// Cookie returns the value of the first cookie named name, or "" if absent.
func (r *Request) Cookie(name string) string {
	for _, c := range r.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
