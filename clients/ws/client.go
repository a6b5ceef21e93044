// Package ws provides a WebSocket client for the bonsai server.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/bonsai-todo/bonsai/internal/gateway/ws"
)

// Client is a WebSocket client for the bonsai server.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the server WebSocket endpoint as the given user.
func Dial(ctx context.Context, url, userID string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-User-ID": []string{userID}},
	})
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// SendMessage sends a chat message, optionally continuing a conversation.
func (c *Client) SendMessage(conversationID, message string) error {
	return c.request(wsprotocol.MethodSendMessage, map[string]string{
		"conversation_id": conversationID,
		"message":         message,
	})
}

// Confirm answers a pending confirmation in the conversation.
func (c *Client) Confirm(conversationID string, confirmed bool) error {
	return c.request(wsprotocol.MethodConfirm, map[string]any{
		"conversation_id": conversationID,
		"confirmed":       confirmed,
	})
}

func (c *Client) request(method string, params any) error {
	seq := atomic.AddUint64(&c.reqSeq, 1)

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	frame := wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     fmt.Sprintf("req-%d", seq),
		Method: method,
		Params: raw,
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return err
	}

	return c.conn.Write(c.ctx, websocket.MessageText, data)
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
