// Package moonraker implements a JSON-RPC 2.0 client for the Moonraker
// printer API server, communicating over a persistent WebSocket.
//
// # Architecture
//
//	┌────────────┐   JSON-RPC 2.0 / WebSocket   ┌───────────────┐
//	│  Moonraker │◄────────────────────────────►│    Client     │
//	│  (Klipper) │   requests + notifications   │ (this package)│
//	└────────────┘                              └───────┬───────┘
//	                                                    │ callbacks
//	                                                    ▼
//	                                              bridge package
//
// The client multiplexes concurrent calls over a single connection by
// correlating responses with numeric request IDs. Server-initiated
// notifications (status updates, Klippy lifecycle events, history
// changes) are delivered through a bounded worker pool so a slow
// consumer cannot stall the read loop.
//
// # Reconnection
//
// When the connection drops, the client reconnects automatically with
// exponential backoff. Pending calls are failed immediately rather than
// left hanging; the consumer re-subscribes printer objects from its
// OnConnect callback.
//
// # Usage
//
//	client, err := moonraker.Connect(ctx, moonraker.Config{
//	    Host: "printer.local",
//	    Port: 7125,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	info, err := client.PrinterInfo(ctx)
package moonraker
