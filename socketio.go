// Package socketio provides a Go client for the socket.io 0.9 protocol.
//
// A client performs an HTTP handshake, upgrades to a WebSocket channel and
// multiplexes any number of namespaces over that single connection. Events
// and messages may request an acknowledgment; replies are correlated with
// the original send by a connection-wide message id. A background heartbeat
// keeps the server from timing out an idle connection.
//
// # Thread Safety
//
// [Client] and [Namespace] are safe for concurrent use by multiple
// goroutines. Handlers run one at a time on the client's receive goroutine,
// in the order packets arrive; a handler that blocks delays delivery of
// everything after it.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	client, err := socketio.Connect(ctx, "localhost", 8000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	client.On("news", func(args ...any) {
//	    fmt.Println("news:", args)
//	})
//
//	err = client.EmitWithAck(ctx, "greet", func(args ...any) {
//	    fmt.Println("server replied:", args)
//	}, "hi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Block until every acknowledgment has arrived.
//	if err := client.WaitForCallbacks(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Namespaces
//
//	chat, err := client.Define(ctx, "/chat", socketio.Behavior{
//	    OnConnect: func(args ...any) { fmt.Println("joined /chat") },
//	})
//	chat.On("message", func(args ...any) { ... })
//	chat.Emit(ctx, "hello", "everyone")
//
// # Acknowledging server events
//
// When the server asks for an acknowledgment, the handler receives an
// [AckFunc] as its last argument. Use [FindAck] to split it off:
//
//	client.On("question", func(args ...any) {
//	    ack, args := socketio.FindAck(args)
//	    if ack != nil {
//	        ack("answer")
//	    }
//	})
//
// # Observability
//
// Use [WithLogger], [WithOnSend], [WithOnReceive], [WithMetrics] and
// [WithTracerProvider] to add logging and monitoring to the client.
package socketio

// ProtocolVersion is the socket.io protocol revision spoken by this client.
const ProtocolVersion = 1
