package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketClient wraps a WebSocket connection speaking the JSON request
// protocol. Sends are serialized; progress events arrive from the
// generation goroutine while the session goroutine also writes.
type WebSocketClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketClient creates a new WebSocketClient from a WebSocket connection.
func NewWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{conn: conn}
}

// ReadRequest reads the next request (blocking). A connection error is
// returned as err; a message that is not a valid request is reported
// through bad so the session can reject it and keep reading.
func (c *WebSocketClient) ReadRequest() (req Request, bad error, err error) {
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return Request{}, nil, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, fmt.Errorf("malformed request: %w", err), nil
	}
	return req, nil, nil
}

// Send writes one message to the client.
func (c *WebSocketClient) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Close closes the WebSocket connection.
func (c *WebSocketClient) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
