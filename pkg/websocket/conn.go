package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jumboframes/armorigo/synchub"

	"netcore/pkg/transport"
)

// MessageHandler is the capability interface a WsSession calls back into,
// mirroring transport.Handler's composition-over-inheritance shape for the
// frame layer: OnWsReceived for completed data messages, OnWsPing/OnWsPong
// for each received PING/PONG (a PING is also answered with a PONG
// automatically), OnWsClose when the peer's CLOSE frame arrives, before
// the session echoes it and disconnects, OnWsError for frame-level
// protocol violations.
type MessageHandler interface {
	OnWsReceived(s *WsSession, opcode Opcode, payload []byte)
	OnWsPing(s *WsSession, payload []byte)
	OnWsPong(s *WsSession, payload []byte)
	OnWsClose(s *WsSession, code uint16, reason string)
	OnWsError(s *WsSession, err error)
}

// MessageHandlerFuncs implements MessageHandler from nilable func fields.
type MessageHandlerFuncs struct {
	OnWsReceivedFunc func(s *WsSession, opcode Opcode, payload []byte)
	OnWsPingFunc     func(s *WsSession, payload []byte)
	OnWsPongFunc     func(s *WsSession, payload []byte)
	OnWsCloseFunc    func(s *WsSession, code uint16, reason string)
	OnWsErrorFunc    func(s *WsSession, err error)
}

func (h *MessageHandlerFuncs) OnWsReceived(s *WsSession, opcode Opcode, payload []byte) {
	if h.OnWsReceivedFunc != nil {
		h.OnWsReceivedFunc(s, opcode, payload)
	}
}

func (h *MessageHandlerFuncs) OnWsPing(s *WsSession, payload []byte) {
	if h.OnWsPingFunc != nil {
		h.OnWsPingFunc(s, payload)
	}
}

func (h *MessageHandlerFuncs) OnWsPong(s *WsSession, payload []byte) {
	if h.OnWsPongFunc != nil {
		h.OnWsPongFunc(s, payload)
	}
}

func (h *MessageHandlerFuncs) OnWsClose(s *WsSession, code uint16, reason string) {
	if h.OnWsCloseFunc != nil {
		h.OnWsCloseFunc(s, code, reason)
	}
}

func (h *MessageHandlerFuncs) OnWsError(s *WsSession, err error) {
	if h.OnWsErrorFunc != nil {
		h.OnWsErrorFunc(s, err)
	}
}

// Close status codes per RFC 6455 section 7.4.1.
const (
	CloseNormal          uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseUnsupportedData uint16 = 1003
	CloseInvalidPayload  uint16 = 1007
	ClosePolicyViolation uint16 = 1008
	CloseMessageTooBig   uint16 = 1009
	CloseInternalError   uint16 = 1011
)

const defaultHeartbeatGrace = 2

// WsSession bridges a handshaked transport.Session to frame-level I/O: it
// owns the Decoder that feeds off the session's raw OnReceived bytes, the
// fragmented-message assembly buffer, and the send-side serializing lock
// that keeps a multi-byte frame write from interleaving with another
// goroutine's send on the same connection.
type WsSession struct {
	sess   transport.Session
	masked bool // true for client-originated (must-mask) sessions

	dec *Decoder

	sendMu sync.Mutex

	fragMu     sync.Mutex
	fragActive bool
	fragOpcode Opcode
	fragBuf    []byte

	handler MessageHandler
	shub    *synchub.SyncHub

	closeMu   sync.Mutex
	closeSent bool

	heartbeatMu   sync.Mutex
	heartbeatStop chan struct{}
	lastPong      time.Time
}

// newWsSession wraps an already-handshaked transport.Session. masked
// controls whether frames this session sends carry the mask bit (true for
// the client side of the connection, per RFC 6455 section 5.1).
func newWsSession(sess transport.Session, masked bool, handler MessageHandler) *WsSession {
	if handler == nil {
		handler = &MessageHandlerFuncs{}
	}
	ws := &WsSession{
		sess:    sess,
		masked:  masked,
		dec:     NewDecoder(),
		handler: handler,
		shub:    synchub.NewSyncHub(),
	}
	sess.SetHandler(&transport.HandlerFuncs{
		OnReceivedFunc: func(_ transport.Session, data []byte) { ws.feed(data) },
		OnErrorFunc: func(_ transport.Session, err error) {
			callSafelyWs(func() { ws.handler.OnWsError(ws, err) })
		},
	})
	return ws
}

// SetHandler replaces ws's MessageHandler, for callers that only learn
// the real handler after the session already exists (an HTTP-upgrade
// factory keyed by *WsSession, for instance).
func (ws *WsSession) SetHandler(h MessageHandler) {
	if h == nil {
		h = &MessageHandlerFuncs{}
	}
	ws.handler = h
}

// ID returns the underlying session's identity.
func (ws *WsSession) ID() uuid.UUID { return ws.sess.ID() }

// Session returns the underlying transport.Session, for callers that need
// endpoints or raw Disconnect access.
func (ws *WsSession) Session() transport.Session { return ws.sess }

// feed is the transport-layer OnReceived callback: it appends to the
// Decoder and drains every frame that has become available, dispatching
// each in turn. Control frames may interleave within a fragmented
// message without disturbing the assembly state.
func (ws *WsSession) feed(data []byte) {
	ws.dec.Feed(data)
	for {
		frame, ok, err := ws.dec.TryDecode()
		if err != nil {
			callSafelyWs(func() { ws.handler.OnWsError(ws, err) })
			ws.Close(CloseProtocolError, "protocol error")
			return
		}
		if !ok {
			return
		}
		ws.dispatch(frame)
	}
}

func (ws *WsSession) dispatch(frame *Frame) {
	switch frame.Opcode {
	case OpcodeClose:
		ws.handleClose(frame.Payload)
	case OpcodePing:
		callSafelyWs(func() { ws.handler.OnWsPing(ws, frame.Payload) })
		ws.PongAsync(frame.Payload)
	case OpcodePong:
		ws.heartbeatMu.Lock()
		ws.lastPong = time.Now()
		ws.heartbeatMu.Unlock()
		callSafelyWs(func() { ws.handler.OnWsPong(ws, frame.Payload) })
	default:
		ws.assemble(frame)
	}
}

func (ws *WsSession) assemble(frame *Frame) {
	ws.fragMu.Lock()
	if frame.Opcode != OpcodeContinuation {
		ws.fragOpcode = frame.Opcode
		ws.fragBuf = append(ws.fragBuf[:0], frame.Payload...)
		ws.fragActive = true
	} else if ws.fragActive {
		ws.fragBuf = append(ws.fragBuf, frame.Payload...)
	} else {
		ws.fragMu.Unlock()
		callSafelyWs(func() { ws.handler.OnWsError(ws, ErrInvalidFrame) })
		ws.Close(CloseProtocolError, "continuation without start")
		return
	}

	if !frame.Fin {
		ws.fragMu.Unlock()
		return
	}
	opcode := ws.fragOpcode
	payload := make([]byte, len(ws.fragBuf))
	copy(payload, ws.fragBuf)
	ws.fragActive = false
	ws.fragBuf = ws.fragBuf[:0]
	ws.fragMu.Unlock()

	if opcode == OpcodeText {
		ws.shub.Ack("text", payload)
	} else {
		ws.shub.Ack("binary", payload)
	}
	callSafelyWs(func() { ws.handler.OnWsReceived(ws, opcode, payload) })
}

func (ws *WsSession) handleClose(payload []byte) {
	code, reason := CloseNormal, ""
	if len(payload) >= 2 {
		code = uint16(payload[0])<<8 | uint16(payload[1])
		reason = string(payload[2:])
	}
	callSafelyWs(func() { ws.handler.OnWsClose(ws, code, reason) })

	ws.closeMu.Lock()
	alreadySent := ws.closeSent
	ws.closeSent = true
	ws.closeMu.Unlock()
	if !alreadySent {
		// Echo the close frame before tearing down so it isn't lost to a
		// race with the TCP FIN.
		ws.sendClose(code, reason)
	}
	ws.sess.Disconnect()
}

func (ws *WsSession) sendFrame(opcode Opcode, payload []byte) error {
	ws.sendMu.Lock()
	defer ws.sendMu.Unlock()
	b, err := EncodeFrame(&Frame{Fin: true, Opcode: opcode, Masked: ws.masked, Payload: payload})
	if err != nil {
		return err
	}
	_, err = ws.sess.Send(b)
	return err
}

func (ws *WsSession) sendFrameAsync(opcode Opcode, payload []byte) bool {
	ws.sendMu.Lock()
	b, err := EncodeFrame(&Frame{Fin: true, Opcode: opcode, Masked: ws.masked, Payload: payload})
	ws.sendMu.Unlock()
	if err != nil {
		return false
	}
	return ws.sess.SendAsync(b)
}

// SendText sends payload as a single unfragmented TEXT frame, blocking
// until it has been handed to the OS.
func (ws *WsSession) SendText(payload string) error {
	return ws.sendFrame(OpcodeText, []byte(payload))
}

// SendTextAsync queues payload as a TEXT frame without blocking.
func (ws *WsSession) SendTextAsync(payload string) bool {
	return ws.sendFrameAsync(OpcodeText, []byte(payload))
}

// SendBinary sends payload as a single unfragmented BINARY frame.
func (ws *WsSession) SendBinary(payload []byte) error {
	return ws.sendFrame(OpcodeBinary, payload)
}

// SendBinaryAsync queues payload as a BINARY frame without blocking.
func (ws *WsSession) SendBinaryAsync(payload []byte) bool {
	return ws.sendFrameAsync(OpcodeBinary, payload)
}

// Ping sends a PING control frame, blocking until written.
func (ws *WsSession) Ping(payload []byte) error { return ws.sendFrame(OpcodePing, payload) }

// PingAsync queues a PING control frame without blocking.
func (ws *WsSession) PingAsync(payload []byte) bool { return ws.sendFrameAsync(OpcodePing, payload) }

// Pong sends a PONG control frame, blocking until written.
func (ws *WsSession) Pong(payload []byte) error { return ws.sendFrame(OpcodePong, payload) }

// PongAsync queues a PONG control frame without blocking.
func (ws *WsSession) PongAsync(payload []byte) bool { return ws.sendFrameAsync(OpcodePong, payload) }

func (ws *WsSession) sendClose(code uint16, reason string) error {
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], reason)
	return ws.sendFrame(OpcodeClose, payload)
}

// Close sends a CLOSE frame (if one hasn't already gone out) and
// synchronously tears down the underlying session. Both the sync and
// async paths flush the CLOSE frame before disconnecting rather than
// racing it against the TCP FIN.
func (ws *WsSession) Close(code uint16, reason string) error {
	ws.closeMu.Lock()
	alreadySent := ws.closeSent
	ws.closeSent = true
	ws.closeMu.Unlock()
	var err error
	if !alreadySent {
		err = ws.sendClose(code, reason)
	}
	ws.StopHeartbeat()
	ws.sess.Disconnect()
	return err
}

// CloseAsync does the same as Close without blocking the caller; the
// CLOSE frame is still written synchronously inside the spawned goroutine
// before the transport is torn down, so it is never silently dropped.
func (ws *WsSession) CloseAsync(code uint16, reason string) {
	go ws.Close(code, reason)
}

// ReceiveText blocks until the next complete TEXT message arrives or
// timeout elapses. Only one concurrent waiter of a given kind is
// supported.
func (ws *WsSession) ReceiveText(timeout time.Duration) (string, error) {
	waiter := ws.shub.New("text", synchub.WithTimeout(timeout))
	event := <-waiter.C()
	if event.Error != nil {
		return "", event.Error
	}
	return string(event.Data.([]byte)), nil
}

// ReceiveBinary blocks until the next complete BINARY message arrives or
// timeout elapses.
func (ws *WsSession) ReceiveBinary(timeout time.Duration) ([]byte, error) {
	waiter := ws.shub.New("binary", synchub.WithTimeout(timeout))
	event := <-waiter.C()
	if event.Error != nil {
		return nil, event.Error
	}
	return event.Data.([]byte), nil
}

// StartHeartbeat sends a PING every interval and force-closes the session
// if no PONG arrives within defaultHeartbeatGrace intervals, carrying the
// source's Connection.StartHeartbeat liveness behavior forward.
func (ws *WsSession) StartHeartbeat(interval time.Duration) {
	ws.heartbeatMu.Lock()
	if ws.heartbeatStop != nil {
		ws.heartbeatMu.Unlock()
		return
	}
	stop := make(chan struct{})
	ws.heartbeatStop = stop
	ws.lastPong = time.Now()
	ws.heartbeatMu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ws.heartbeatMu.Lock()
				stale := time.Since(ws.lastPong) > interval*defaultHeartbeatGrace
				ws.heartbeatMu.Unlock()
				if stale {
					ws.Close(CloseGoingAway, "heartbeat timeout")
					return
				}
				ws.PingAsync(nil)
			}
		}
	}()
}

// StopHeartbeat stops a previously started heartbeat goroutine. Safe to
// call even if StartHeartbeat was never called.
func (ws *WsSession) StopHeartbeat() {
	ws.heartbeatMu.Lock()
	defer ws.heartbeatMu.Unlock()
	if ws.heartbeatStop == nil {
		return
	}
	close(ws.heartbeatStop)
	ws.heartbeatStop = nil
}

func callSafelyWs(fn func()) {
	defer func() { recover() }()
	fn()
}
