// Package websocket implements RFC 6455 WebSocket framing and handshakes
// on top of netcore's transport and http packages.
//
// A WsSession wraps an already-connected transport.Session with frame
// encoding/decoding, fragmentation reassembly, ping/pong heartbeat, and
// the close handshake. Servers obtain one by upgrading an inbound
// http.Request; clients obtain one by dialing a ws:// or wss:// URL.
//
// # Server usage
//
// Upgrade a single mux route:
//
//	mux.Handle("/ws", websocket.NewUpgradeHandler(nil, func(ws *websocket.WsSession) websocket.MessageHandler {
//	    return &websocket.MessageHandlerFuncs{
//	        OnWsReceivedFunc: func(ws *websocket.WsSession, op websocket.Opcode, payload []byte) {
//	            ws.SendTextAsync(string(payload))
//	        },
//	    }
//	}))
//
// Or run a dedicated server where every connection is a handshake:
//
//	srv := websocket.NewServer(endpoint, factory)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Client usage
//
//	ws, err := websocket.Dial("ws://example.com/ws", "", nil, handler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ws.SendText("hello")
//
// # Frame format
//
// Frames follow RFC 6455 section 5.2:
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|R| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |S|     (7)     |             (16/64)           |
//	|N|V|V|V|       |V|             |   (if payload len==126/127)   |
//	| |1|2|3|       |4|             |                               |
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|     Extended payload length continued, if payload len == 127  |
//	+---------------------------------------------------------------+
//	|                               | Masking-key, if MASK set to 1 |
//	+-------------------------------+-------------------------------+
//	| Masking-key (continued)       |          Payload Data         |
//	+-------------------------------+-------------------------------+
//	|                     Payload Data continued ...                |
//	+---------------------------------------------------------------+
package websocket
