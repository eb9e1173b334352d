// Package transport implements the session/server transport core: TCP and
// UDP sessions and servers/clients, a TLS overlay that conforms to the same
// contract, a concurrent session table, and the async send/receive
// machinery the http and websocket packages build on.
//
// A Session is never driven by inheritance. Instead each session owns a
// Handler — an interface with OnConnected/OnReceived/OnSent/... methods —
// and calls back into it as socket events occur. HandlerFuncs lets callers
// build a Handler out of plain function values instead of implementing the
// interface on a dedicated type.
//
// # Usage
//
//	srv := transport.NewTCPServer(transport.NewTCPEndpoint("0.0.0.0", 9000))
//	srv.SetHandlerFactory(func(s transport.Session) transport.Handler {
//	    return &transport.HandlerFuncs{
//	        OnReceivedFunc: func(s transport.Session, data []byte) {
//	            s.SendAsync(data) // echo
//	        },
//	    }
//	})
//	srv.Start()
package transport
