// Package jsonrpc implements the host's JSON-RPC 2.0 protocol over a single
// WebSocket connection. One connection carries both directions: request and
// response frames correlated by id, and unsolicited notification frames that
// announce playback events.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mkaindl/offsetpilot/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second

	sendBufferSize         = 16
	notificationBufferSize = 64
)

// ErrClosed is returned by Call once the connection is gone.
var ErrClosed = errors.New("jsonrpc: connection closed")

// Error is a JSON-RPC error object returned by the host.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code %d)", e.Message, e.Code)
}

// Notification is an unsolicited frame pushed by the host.
type Notification struct {
	Method string
	Params json.RawMessage
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// envelope covers every inbound frame shape: responses carry id and
// result/error, notifications carry method and params.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Client multiplexes calls and notifications over one WebSocket connection.
// It is safe for concurrent use. Once the connection dies the Done channel
// closes and every in-flight and future Call fails with ErrClosed.
type Client struct {
	conn  *websocket.Conn
	clock clockwork.Clock

	sendCh        chan []byte
	notifications chan Notification

	pendingMu sync.Mutex
	pending   map[string]chan envelope

	doneCh     chan struct{}
	readerDone chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// Dial connects to the host's WebSocket endpoint and starts the connection
// goroutines.
func Dial(ctx context.Context, url string, clock clockwork.Clock) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewClient(conn, clock), nil
}

// NewClient wraps an established connection. Mostly useful for tests; use
// Dial otherwise.
func NewClient(conn *websocket.Conn, clock clockwork.Clock) *Client {
	c := &Client{
		conn:          conn,
		clock:         clock,
		sendCh:        make(chan []byte, sendBufferSize),
		notifications: make(chan Notification, notificationBufferSize),
		pending:       make(map[string]chan envelope),
		doneCh:        make(chan struct{}),
		readerDone:    make(chan struct{}),
	}
	c.configurePongHandler()
	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Call sends a request and blocks until the matching response, ctx
// cancellation, or connection loss.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := uuid.NewString()
	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	respCh := make(chan envelope, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	start := c.clock.Now()

	select {
	case c.sendCh <- payload:
	case <-c.readerDone:
		metrics.RPCCalls.WithLabelValues(method, "error").Inc()
		return ErrClosed
	case <-ctx.Done():
		metrics.RPCCalls.WithLabelValues(method, "error").Inc()
		return ctx.Err()
	}

	select {
	case resp := <-respCh:
		metrics.RPCDuration.WithLabelValues(method).Observe(c.clock.Since(start).Seconds())
		if resp.Error != nil {
			metrics.RPCCalls.WithLabelValues(method, "error").Inc()
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		metrics.RPCCalls.WithLabelValues(method, "ok").Inc()
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
		return nil
	case <-c.readerDone:
		metrics.RPCCalls.WithLabelValues(method, "error").Inc()
		return ErrClosed
	case <-ctx.Done():
		metrics.RPCCalls.WithLabelValues(method, "error").Inc()
		return ctx.Err()
	}
}

// Ping round-trips a JSONRPC.Ping frame, verifying the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Call(ctx, "JSONRPC.Ping", nil, nil)
}

// Notifications returns the stream of host notifications. The channel closes
// when the connection dies or Close is called.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Done closes when the connection is gone, regardless of which side ended it.
func (c *Client) Done() <-chan struct{} {
	return c.readerDone
}

// Close tears down the connection and waits for both loops to exit.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
		_ = c.conn.Close()
	})
	c.wg.Wait()
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.notifications)
	defer close(c.readerDone)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.doneCh:
			default:
				slog.Warn("Host connection lost", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Discarding unparseable host frame", "error", err)
			continue
		}

		if env.Method != "" && env.ID == nil {
			c.deliverNotification(env)
			continue
		}
		c.deliverResponse(env)
	}
}

func (c *Client) deliverNotification(env envelope) {
	n := Notification{Method: env.Method, Params: env.Params}
	select {
	case c.notifications <- n:
	default:
		metrics.NotificationsDropped.Inc()
		slog.Warn("Notification buffer full, dropping", "method", env.Method)
	}
}

func (c *Client) deliverResponse(env envelope) {
	id, ok := env.ID.(string)
	if !ok {
		slog.Debug("Ignoring response with foreign id", "id", env.ID)
		return
	}

	c.pendingMu.Lock()
	respCh := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if respCh == nil {
		slog.Debug("Ignoring response for unknown call", "id", id)
		return
	}
	respCh <- env
}

func (c *Client) writeLoop() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case payload := <-c.sendCh:
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				slog.Warn("Failed to write to host", "error", err)
				_ = c.conn.Close() // unblock the read loop
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.doneCh:
			return
		case <-c.readerDone:
			return
		}
	}
}

func (c *Client) configurePongHandler() {
	c.updateReadDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Client) updateWriteDeadline() {
	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *Client) updateReadDeadline() {
	_ = c.conn.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}
