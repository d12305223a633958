// Package client talks to a running generation service over WebSocket.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lawnchairsociety/roomweaver/internal/server"
)

// ErrTimeout is returned when the service does not answer in time.
var ErrTimeout = errors.New("timed out waiting for the service")

// Client is one connection to the generation service. Messages are read
// in the background and queued in arrival order.
type Client struct {
	conn *websocket.Conn

	mu       sync.Mutex
	messages []server.Message
	readErr  error
	arrived  chan struct{}
	done     chan struct{}
}

// Dial connects to the service's generate endpoint, for example
// ws://localhost:8420/generate.
func Dial(url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:    conn,
		arrived: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go c.readMessages()
	return c, nil
}

// readMessages continuously reads messages from the service
func (c *Client) readMessages() {
	defer close(c.done)
	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			c.signal()
			return
		}
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
		c.signal()
	}
}

func (c *Client) signal() {
	select {
	case c.arrived <- struct{}{}:
	default:
	}
}

// Submit sends a generate request with the given settings YAML.
func (c *Client) Submit(settingsYAML string, maxAttempts int) error {
	return c.conn.WriteJSON(server.Request{
		Type:        server.RequestGenerate,
		Settings:    settingsYAML,
		MaxAttempts: maxAttempts,
	})
}

// Pending returns the queued messages without consuming them
func (c *Client) Pending() []server.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]server.Message(nil), c.messages...)
}

// Wait blocks until a message of one of the given types arrives and
// returns it. Every message queued before it is consumed and handed to
// skipped when skipped is non-nil.
func (c *Client) Wait(timeout time.Duration, skipped func(server.Message), types ...string) (server.Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		for {
			msg, ok := c.pop()
			if !ok {
				break
			}
			for _, t := range types {
				if msg.Type == t {
					return msg, nil
				}
			}
			if skipped != nil {
				skipped(msg)
			}
		}

		c.mu.Lock()
		readErr := c.readErr
		c.mu.Unlock()
		if readErr != nil {
			return server.Message{}, fmt.Errorf("connection closed: %w", readErr)
		}

		select {
		case <-c.arrived:
		case <-deadline.C:
			return server.Message{}, ErrTimeout
		}
	}
}

func (c *Client) pop() (server.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return server.Message{}, false
	}
	msg := c.messages[0]
	c.messages = c.messages[1:]
	return msg, true
}

// Generate submits one job and waits for its result. Messages before the
// result go to progress when it is non-nil. A job the service reports as
// failed is returned as an error.
func (c *Client) Generate(settingsYAML string, maxAttempts int, timeout time.Duration, progress func(server.Message)) (server.Message, error) {
	if err := c.Submit(settingsYAML, maxAttempts); err != nil {
		return server.Message{}, fmt.Errorf("failed to submit job: %w", err)
	}

	msg, err := c.Wait(timeout, progress, server.MessageResult, server.MessageError)
	if err != nil {
		return server.Message{}, err
	}
	if msg.Type == server.MessageError {
		if msg.JobID == "" {
			return msg, fmt.Errorf("request rejected: %s", msg.Error)
		}
		return msg, fmt.Errorf("job %s failed: %s", msg.JobID, msg.Error)
	}
	return msg, nil
}

// Ping checks that the service answers
func (c *Client) Ping(timeout time.Duration) error {
	if err := c.conn.WriteJSON(server.Request{Type: server.RequestPing}); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}
	_, err := c.Wait(timeout, nil, server.MessagePong)
	return err
}

// Close closes the connection
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}
