package remotecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/wire"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/logger"
)

var (
	ErrClosed         = errors.New("remote cache client closed")
	ErrRejected       = errors.New("remote cache rejected request")
	ErrUnexpectedType = errors.New("unexpected remote cache reply")
)

type ClientOption func(*Client)

// WithTimeout bounds each request when the context has no deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// Client talks to a remote cache server. Requests are serialized: a
// connection never has more than one request in flight. A failed request
// drops the connection and the next one redials.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to url ("ws://host/ws").
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		timeout: 10 * time.Second,
		log:     logger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial remote cache %s: %w", c.url, err)
	}
	conn.SetReadLimit(maxMessageBytes)
	c.conn = conn
	return nil
}

// Read asks for the POIs of ids. Ids the server never stored are absent.
func (c *Client) Read(ctx context.Context, ids [][]byte) ([]wire.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req, err := wire.EncodeReadBatch(ids)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	typ, reply, err := c.roundTrip(ctx, req)
	if err == nil {
		if typ == websocket.BinaryMessage {
			var groups []wire.Group
			groups, err = wire.DecodeGroupedResponse(reply)
			observability.ObserveRemote("read", err, time.Since(start).Seconds())
			return groups, err
		}
		err = replyError(reply)
	}
	observability.ObserveRemote("read", err, time.Since(start).Seconds())
	return nil, err
}

// Write stores entries and waits for the acknowledgement.
func (c *Client) Write(ctx context.Context, entries []wire.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	req, err := wire.EncodeWriteBatch(entries)
	if err != nil {
		return err
	}
	start := time.Now()
	typ, reply, err := c.roundTrip(ctx, req)
	if err == nil && (typ != websocket.TextMessage || string(reply) != Ack) {
		err = replyError(reply)
	}
	observability.ObserveRemote("write", err, time.Since(start).Seconds())
	return err
}

func replyError(reply []byte) error {
	var e ErrorReply
	if json.Unmarshal(reply, &e) == nil && e.Error != "" {
		return fmt.Errorf("%w: %s", ErrRejected, e.Error)
	}
	return fmt.Errorf("%w: %d bytes", ErrUnexpectedType, len(reply))
}

func (c *Client) roundTrip(ctx context.Context, req []byte) (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return 0, nil, err
		}
	}

	conn := c.conn
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// unblock ReadMessage if ctx is cancelled first
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, req); err != nil {
		c.drop()
		return 0, nil, fmt.Errorf("send to remote cache: %w", err)
	}
	typ, reply, err := conn.ReadMessage()
	if err != nil {
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, fmt.Errorf("receive from remote cache: %w", err)
	}
	return typ, reply, nil
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		c.log.Debug("remote cache close frame", "err", err)
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("close remote cache: %w", err)
	}
	return nil
}
