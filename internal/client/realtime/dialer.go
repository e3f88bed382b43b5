package realtime

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one established message-oriented connection. Read blocks until
// a message arrives or ctx ends.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

const (
	stompSubprotocol = "v12.stomp"
	maxMessageBytes  = 1 << 20
)

// WebSocketDialer dials plain WebSocket endpoints.
type WebSocketDialer struct {
	HTTPClient *http.Client
}

func (d WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient:   d.HTTPClient,
		HTTPHeader:   header,
		Subprotocols: []string{stompSubprotocol},
	})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(maxMessageBytes)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
