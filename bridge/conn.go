package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/observe"
)

// Conn is one registered client connection. All outbound traffic goes
// through the buffered send channel and is written by a single write pump,
// so broadcasts never block on a slow peer and frames are never interleaved.
type Conn struct {
	id       string
	identity *auth.Identity
	ws       *websocket.Conn
	logger   observe.Logger

	send chan []byte
	done chan struct{}
	once sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
}

func newConn(ws *websocket.Conn, id *auth.Identity, logger observe.Logger, cfg Config) *Conn {
	c := &Conn{
		id:           uuid.NewString(),
		identity:     id,
		ws:           ws,
		send:         make(chan []byte, cfg.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
	}
	c.logger = logger.With(
		observe.Field{Key: "conn_id", Value: c.id},
		observe.Field{Key: "user_id", Value: id.UserID},
		observe.Field{Key: "app_name", Value: id.AppName})
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// Identity returns the identity established at accept time.
func (c *Conn) Identity() *auth.Identity { return c.identity }

// Send marshals v and queues it for delivery. A full buffer drops the
// message and returns ErrSendBufferFull.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw queues a pre-marshaled frame for delivery.
func (c *Conn) SendRaw(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// writePump serializes all outbound frames and keepalive pings. It runs
// until Close or a write error.
func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug(ctx, "write failed",
					observe.Field{Key: "error", Value: err.Error()})
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
