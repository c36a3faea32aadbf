// Package channel is the bidirectional websocket used by the scoping
// conversation. A Conn is dialled once per wizard session and never
// reconnects.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultBaseURL is used when no websocket base URL is configured.
const DefaultBaseURL = "ws://localhost:8000"

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 54 * time.Second
)

// ErrClosed is returned by Send once the connection has gone away.
var ErrClosed = errors.New("channel closed")

// Handler receives inbound frames in arrival order.
type Handler func(raw []byte)

type options struct {
	handler Handler
	onClose func(err error)
	logger  *zap.Logger
	dialer  *websocket.Dialer
	header  http.Header
}

// Option configures Dial.
type Option func(*options)

// WithHandler sets the inbound frame handler.
func WithHandler(h Handler) Option {
	return func(o *options) { o.handler = h }
}

// WithOnClose sets a callback fired once when the connection ends, for
// whatever reason. err is nil after a clean close. The callback runs on the
// reader goroutine and must not call Close.
func WithOnClose(fn func(err error)) Option {
	return func(o *options) { o.onClose = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithBearerToken adds an Authorization header to the handshake.
func WithBearerToken(token string) Option {
	return func(o *options) {
		if token == "" {
			return
		}
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set("Authorization", "Bearer "+token)
	}
}

// Conn is an open channel.
type Conn struct {
	ws      *websocket.Conn
	handler Handler
	onClose func(error)
	log     *zap.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
}

// URL builds {base}/ws?session={id}.
func URL(base, sessionID string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/ws?session=" + url.QueryEscape(sessionID)
}

// Dial opens the channel for sessionID.
func Dial(ctx context.Context, base, sessionID string, opts ...Option) (*Conn, error) {
	o := options{dialer: websocket.DefaultDialer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	target := URL(base, sessionID)
	ws, _, err := o.dialer.DialContext(ctx, target, o.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	c := &Conn{
		ws:      ws,
		handler: o.handler,
		onClose: o.onClose,
		log:     o.logger.With(zap.String("session_id", sessionID)),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	c.log.Debug("channel connected", zap.String("url", target))
	return c, nil
}

type outbound struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Send writes one {"role","content"} text frame.
func (c *Conn) Send(role, content string) error {
	data, err := json.Marshal(outbound{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	select {
	case <-c.done:
		return ErrClosed
	case <-c.closing:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// Done is closed when the reader exits, after the close callback.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears the connection down. It waits for
// the reader to exit, so the close callback has fired when Close returns.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.ws.Close()
	})
	<-c.done
	return nil
}

func (c *Conn) readLoop() {
	var cause error
	defer func() {
		c.end(cause)
	}()

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					cause = err
					c.log.Warn("channel read failed", zap.Error(err))
				}
			}
			return
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if c.handler != nil {
			c.handler(data)
		}
	}
}

func (c *Conn) end(cause error) {
	c.endOnce.Do(func() {
		c.ws.Close()
		c.log.Debug("channel disconnected", zap.Error(cause))
		if c.onClose != nil {
			c.onClose(cause)
		}
		close(c.done)
	})
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Decode turns an inbound frame into display text and a structured
// payload. A JSON object yields its "message" string (or "") and the whole
// object; anything else is shown verbatim with no payload.
func Decode(raw []byte) (content string, payload map[string]any) {
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return string(raw), nil
	}
	content, _ = payload["message"].(string)
	return content, payload
}
