// Package http implements an HTTP/1.1 request/response codec on top of
// transport.Session: an incremental Cache parses messages as bytes
// arrive from OnReceived, so a request or response split across any
// number of reads (or several pipelined onto one) parses correctly.
//
// Chunked transfer encoding, HTTP/2, and client-side connection pooling
// are out of scope. A message without Content-Length has no body if it is
// a HEAD/GET/DELETE/OPTIONS/TRACE request, a 1xx/204/304 response, or a
// response to HEAD; otherwise its body runs until a trailing "\r\n\r\n"
// or until the connection closes.
//
// # Usage
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//	    w.Header().Set(http.HeaderContentType, "text/plain; charset=utf-8")
//	    w.Write([]byte("hello"))
//	})
//	srv := http.NewServer(transport.NewTCPEndpoint("0.0.0.0", 8080), mux)
//	srv.Start()
package http
