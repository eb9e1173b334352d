package http

import (
	"crypto/tls"
	"net/url"
	"strings"
	"time"

	"github.com/jumboframes/armorigo/synchub"

	"netcore/pkg/transport"
)

// RoundTripper executes a single HTTP transaction over a fresh
// transport.Session, obtaining the Response for a given Request.
// Connections are never reused across requests: client-side connection
// pooling is out of scope.
type RoundTripper interface {
	RoundTrip(req *Request, timeout time.Duration) (*Response, error)
}

// Client is an HTTP client built on transport.Session instead of net.Conn
// directly, so it benefits from the same async send queue and TLS overlay
// the server side uses.
type Client struct {
	Transport RoundTripper
	Timeout   time.Duration
}

// DefaultClient round-trips over plain TCP or TLS depending on the
// request URL's scheme.
var DefaultClient = &Client{Transport: &sessionTransport{}, Timeout: DefaultClientTimeout}

func (c *Client) Do(req *Request) (*Response, error) {
	rt := c.Transport
	if rt == nil {
		rt = DefaultClient.Transport
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultClientTimeout
	}
	return rt.RoundTrip(req, timeout)
}

func (c *Client) Get(urlStr string) (*Response, error) {
	req, err := MakeGetRequest(urlStr)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) Post(urlStr, contentType string, body []byte) (*Response, error) {
	req, err := MakePostRequest(urlStr, body, contentType)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) Head(urlStr string) (*Response, error) {
	req, err := NewRequest(MethodHead, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// sessionTransport is the default RoundTripper: dial, send the encoded
// request, block on a synchub waiter until the Cache parses a full
// response (or the timeout fires), then tear the session down. One
// request, one session — matching the Non-goal on pooling.
type sessionTransport struct{}

func (t *sessionTransport) RoundTrip(req *Request, timeout time.Duration) (*Response, error) {
	host, port, scheme := requestHostPort(req)
	endpoint := transport.NewTCPEndpoint(host, port)

	hub := synchub.NewSyncHub()
	waiter := hub.New(req, synchub.WithTimeout(timeout))

	cache := NewCache(4096)
	cache.SetRequestMethod(req.Method)
	var settled bool
	handler := &transport.HandlerFuncs{
		OnReceivedFunc: func(s transport.Session, data []byte) {
			msg, complete, err := cache.Feed(data)
			if err != nil {
				settled = true
				hub.Error(req, err)
				return
			}
			if !complete {
				return
			}
			settled = true
			resp, err := ResponseFromMessage(msg, req)
			if err != nil {
				hub.Error(req, err)
				return
			}
			hub.Ack(req, resp)
		},
		OnErrorFunc: func(s transport.Session, err error) {
			settled = true
			hub.Error(req, err)
		},
		OnDisconnectedFunc: func(s transport.Session) {
			// A response with no Content-Length is close-delimited (see
			// bodyLength): the server signals the end of its body by
			// closing rather than by a trailing "\r\n\r\n". settled guards
			// against this firing again when RoundTrip's own deferred
			// Disconnect runs after a response already arrived normally.
			if settled {
				return
			}
			if msg, ok := cache.FinishOnClose(); ok {
				settled = true
				if resp, err := ResponseFromMessage(msg, req); err == nil {
					hub.Ack(req, resp)
				}
			}
		},
	}

	var sess transport.Session
	if scheme == "https" {
		sess = transport.NewTLSSession(endpoint, &tls.Config{ServerName: host})
	} else {
		sess = transport.NewTCPSession(endpoint)
	}
	sess.SetHandler(handler)
	if err := sess.Connect(); err != nil {
		return nil, err
	}
	defer sess.Disconnect()

	if _, err := sess.Send(req.Encode()); err != nil {
		return nil, err
	}

	event := <-waiter.C()
	if event.Error != nil {
		return nil, event.Error
	}
	return event.Data.(*Response), nil
}

func requestHostPort(req *Request) (host string, port int, scheme string) {
	u := req.URL
	scheme = u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host = u.Hostname()
	if host == "" {
		host = req.Host
	}
	if p := u.Port(); p != "" {
		port = atoiOr(p, 80)
	} else if scheme == "https" {
		port = 443
	} else {
		port = 80
	}
	return host, port, scheme
}

func atoiOr(s string, fallback int) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fallback
		}
		n = n*10 + int(s[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}

// URLEncode encodes a map of form parameters as a URL query string.
func URLEncode(data map[string]string) string {
	var parts []string
	for k, v := range data {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	return strings.Join(parts, "&")
}

// URLDecode decodes a URL query string into a map.
func URLDecode(query string) (map[string]string, error) {
	m := make(map[string]string)
	if query == "" {
		return m, nil
	}
	for _, pair := range strings.Split(query, "&") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		k, err := url.QueryUnescape(parts[0])
		if err != nil {
			return nil, err
		}
		v, err := url.QueryUnescape(parts[1])
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// PostForm submits a form POST request with URL-encoded data.
func PostForm(urlStr string, data map[string]string) (*Response, error) {
	body := []byte(URLEncode(data))
	return DefaultClient.Post(urlStr, "application/x-www-form-urlencoded", body)
}
