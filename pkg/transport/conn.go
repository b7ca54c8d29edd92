// Package transport owns the persistent websocket connection of a session stream.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrClosed      = errors.New("connection closed")
	ErrOutboxFull  = errors.New("outbound queue full")
	defaultOutbox  = 64
	closeWriteWait = 2 * time.Second
)

// Conn is a bidirectional frame connection. ReadFrame blocks until a frame
// arrives or the connection fails; Send only queues the frame.
type Conn interface {
	ReadFrame() ([]byte, error)
	Send(frame []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) { return f(ctx, url) }

// WebsocketDialer dials gorilla websocket connections.
type WebsocketDialer struct {
	Header     http.Header
	OutboxSize int
	Logger     zerolog.Logger
}

func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "dial %s: handshake status %d", url, resp.StatusCode)
		}
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewWSConn(ws, d.OutboxSize, d.Logger), nil
}

// WSConn wraps a websocket connection with a dedicated writer goroutine so
// that Send never blocks the caller on network I/O.
type WSConn struct {
	ws     *websocket.Conn
	log    zerolog.Logger
	outbox chan []byte
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ Conn = &WSConn{}

func NewWSConn(ws *websocket.Conn, outbox int, logger zerolog.Logger) *WSConn {
	if outbox <= 0 {
		outbox = defaultOutbox
	}
	c := &WSConn{
		ws:     ws,
		log:    logger.With().Str("component", "transport").Logger(),
		outbox: make(chan []byte, outbox),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ReadFrame returns the next text or binary frame.
func (c *WSConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, errors.Wrap(ErrClosed, err.Error())
			}
			return nil, errors.Wrap(err, "read frame")
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *WSConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Close flushes queued frames, sends a close frame and closes the socket.
func (c *WSConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	close(c.outbox)
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *WSConn) writeLoop() {
	defer close(c.done)
	for frame := range c.outbox {
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.log.Warn().Err(err).Msg("ws write failed, dropping connection")
			_ = c.ws.Close()
			for range c.outbox {
			}
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait)); err != nil {
		c.log.Debug().Err(err).Msg("ws close frame not sent")
	}
	if err := c.ws.Close(); err != nil {
		c.log.Debug().Err(err).Msg("ws close failed")
	}
}
