package transport

import (
	"context"

	"nhooyr.io/websocket"
)

// DialWebSocket opens a WebSocket connection to a ws:// or wss:// addr
// using the "mqtt" subprotocol and wraps it as a Conn. Grounded on the
// teacher's examples/websocket dialer: nhooyr.io/websocket's NetConn
// adapter makes the socket look like an ordinary net.Conn so it can
// share the same Conn write loop and packet reader as TCP/TLS.
func DialWebSocket(ctx context.Context, addr string) (*Conn, error) {
	c, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		Subprotocols: []string{"mqtt"},
	})
	if err != nil {
		return nil, err
	}
	nc := websocket.NetConn(ctx, c, websocket.MessageBinary)
	return NewConn(nc), nil
}
