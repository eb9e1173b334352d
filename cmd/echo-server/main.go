// Command echo-server runs a combined HTTP + WebSocket server on top of
// netcore's transport package, and exercises it with a real client before
// settling into steady state.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "netcore/pkg/http"
	"netcore/pkg/transport"
	"netcore/pkg/websocket"
)

func main() {
	fmt.Println("netcore echo-server demo")
	fmt.Println("========================")

	endpoint := transport.NewTCPEndpoint("127.0.0.1", 0)

	mux := nethttp.NewServeMux()
	mux.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set(nethttp.HeaderContentType, nethttp.MimeType(".txt"))
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("netcore echo-server\n"))
	})
	mux.HandleFunc("/time", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set(nethttp.HeaderContentType, nethttp.MimeType(".json"))
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte(`{"time":"` + time.Now().Format(time.RFC3339) + `"}`))
	})
	mux.Handle("/ws", websocket.NewUpgradeHandler(nil, func(ws *websocket.WsSession) websocket.MessageHandler {
		fmt.Println("   websocket client upgraded")
		return &websocket.MessageHandlerFuncs{
			OnWsReceivedFunc: func(ws *websocket.WsSession, opcode websocket.Opcode, payload []byte) {
				if opcode == websocket.OpcodeText {
					ws.SendTextAsync("echo: " + string(payload))
				}
			},
		}
	}))

	srv := nethttp.NewServer(endpoint, mux,
		transport.WithMaxSessions(1000),
		transport.WithReadTimeout(30*time.Second),
	)

	fmt.Println("\n1. Starting server...")
	if err := srv.StartAsync(); err != nil {
		log.Fatalf("start: %v", err)
	}
	addr := srv.Addr()
	fmt.Printf("   listening on %s\n", addr)

	fmt.Println("\n2. Exercising the HTTP routes...")
	client := &nethttp.Client{}
	if resp, err := client.Get("http://" + addr + "/"); err != nil {
		fmt.Printf("   GET / failed: %v\n", err)
	} else {
		fmt.Printf("   GET / -> %d\n", resp.StatusCode)
	}
	if resp, err := client.Get("http://" + addr + "/time"); err != nil {
		fmt.Printf("   GET /time failed: %v\n", err)
	} else {
		fmt.Printf("   GET /time -> %d\n", resp.StatusCode)
	}

	fmt.Println("\n3. Exercising the WebSocket route...")
	received := make(chan string, 1)
	ws, err := websocket.Dial("ws://"+addr+"/ws", "", nil, &websocket.MessageHandlerFuncs{
		OnWsReceivedFunc: func(ws *websocket.WsSession, opcode websocket.Opcode, payload []byte) {
			if opcode == websocket.OpcodeText {
				received <- string(payload)
			}
		},
	})
	if err != nil {
		fmt.Printf("   dial failed: %v\n", err)
	} else {
		if err := ws.SendText("hello"); err != nil {
			fmt.Printf("   send failed: %v\n", err)
		}
		select {
		case msg := <-received:
			fmt.Printf("   received %q\n", msg)
		case <-time.After(2 * time.Second):
			fmt.Println("   timed out waiting for echo")
		}
		ws.Close(websocket.CloseNormal, "done")
	}

	fmt.Println("\n4. Waiting for shutdown signal (Ctrl+C)...")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\n5. Stopping server...")
	if err := srv.Stop(); err != nil {
		log.Printf("stop: %v", err)
	}
	fmt.Println("   stopped")
}
