package websocket

import (
	"crypto/tls"
	"net/url"
	"strconv"
	"time"

	nethttp "netcore/pkg/http"
	"netcore/pkg/transport"
)

// DialTimeout bounds how long Dial waits for the server's 101 response.
const DialTimeout = 10 * time.Second

// Dial performs the client side of the RFC 6455 handshake against urlStr
// (scheme "ws" or "wss") and, on a valid 101 response, returns a WsSession
// ready for sendText/Binary/Close/Ping/Pong and receiveText/receiveBinary.
func Dial(urlStr, origin string, subprotocols []string, handler MessageHandler) (*WsSession, error) {
	reqBytes, sentKey, err := BuildUpgradeRequest(urlStr, origin, subprotocols)
	if err != nil {
		return nil, err
	}
	host, port, scheme, err := dialTarget(urlStr)
	if err != nil {
		return nil, err
	}
	endpoint := transport.NewTCPEndpoint(host, port)

	var sess transport.Session
	if scheme == "wss" {
		sess = transport.NewTLSSession(endpoint, &tls.Config{ServerName: host})
	} else {
		sess = transport.NewTCPSession(endpoint)
	}

	type handshakeResult struct {
		resp *nethttp.Response
		err  error
	}
	done := make(chan handshakeResult, 1)
	cache := nethttp.NewCache(4096)
	sess.SetHandler(&transport.HandlerFuncs{
		OnReceivedFunc: func(_ transport.Session, data []byte) {
			msg, complete, ferr := cache.Feed(data)
			if ferr != nil {
				select {
				case done <- handshakeResult{err: ferr}:
				default:
				}
				return
			}
			if !complete {
				return
			}
			resp, rerr := nethttp.ResponseFromMessage(msg, nil)
			select {
			case done <- handshakeResult{resp: resp, err: rerr}:
			default:
			}
		},
		OnErrorFunc: func(_ transport.Session, err error) {
			select {
			case done <- handshakeResult{err: err}:
			default:
			}
		},
	})

	if err := sess.Connect(); err != nil {
		return nil, err
	}
	if _, err := sess.Send(reqBytes); err != nil {
		sess.Disconnect()
		return nil, err
	}

	var result handshakeResult
	select {
	case result = <-done:
	case <-time.After(DialTimeout):
		sess.Disconnect()
		return nil, &HandshakeError{Err: ErrNotWebSocketRequest, Status: nethttp.StatusRequestTimeout}
	}
	if result.err != nil {
		sess.Disconnect()
		return nil, result.err
	}
	resp := result.resp
	if resp.StatusCode != nethttp.StatusSwitchingProtocols {
		sess.Disconnect()
		return nil, &HandshakeError{Err: ErrNotWebSocketRequest, Status: resp.StatusCode}
	}
	if !VerifyAcceptKey(sentKey, resp.Header.Get(headerSecWebSocketAccept)) {
		sess.Disconnect()
		return nil, ErrSecAcceptMismatch
	}

	ws := newWsSession(sess, true, handler)
	if leftover := cache.Remainder(); len(leftover) > 0 {
		ws.feed(leftover)
	}
	return ws, nil
}

func dialTarget(urlStr string) (host string, port int, scheme string, err error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, "", err
	}
	scheme = u.Scheme
	switch scheme {
	case "wss":
		port = 443
	default:
		scheme = "ws"
		port = 80
	}
	host = u.Hostname()
	if p := u.Port(); p != "" {
		if n, perr := strconv.Atoi(p); perr == nil && n > 0 {
			port = n
		}
	}
	return host, port, scheme, nil
}
