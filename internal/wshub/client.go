package wshub

import (
	"context"
	"errors"
	"net"

	"github.com/coder/websocket"
)

// Client adapts a websocket connection to a session stream. Send is the
// outbound queue the registry writes into.
type Client struct {
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(conn *websocket.Conn, send chan []byte) *Client {
	return &Client{Conn: conn, Send: send}
}

// Read returns the next text message. Binary frames are skipped.
func (c *Client) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.Conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

// Close ends the connection with reason. Clients read the reason from the
// close frame. Closing an already closed connection returns nil.
func (c *Client) Close(reason string) error {
	err := c.Conn.Close(websocket.StatusInternalError, reason)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// WritePump reads from the Send channel and writes to the WebSocket
// connection. It returns when Send is closed, a write fails, or ctx ends.
func (c *Client) WritePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.Send:
			if !ok {
				return nil
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return err
			}
		}
	}
}
