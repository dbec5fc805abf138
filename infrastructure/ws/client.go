package ws

import (
	"context"
	"log/slog"
	"time"

	"chat-hub/domain"
	"chat-hub/domain/event"
	apperrors "chat-hub/errors"
	"chat-hub/runtime"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Client is one live websocket connection. Its buffered send channel is the
// connection's EventSink: fanout enqueues, the write pump drains. When the
// buffer is full the connection drops its own events instead of stalling
// the dispatcher.
type Client struct {
	id          domain.ConnectionID
	conn        *websocket.Conn
	coordinator *runtime.Coordinator
	limiter     *rate.Limiter
	send        chan envelope
	log         *slog.Logger
}

func newClient(id domain.ConnectionID, conn *websocket.Conn, coordinator *runtime.Coordinator,
	limiter *rate.Limiter, bufferSize int, log *slog.Logger) *Client {
	return &Client{
		id:          id,
		conn:        conn,
		coordinator: coordinator,
		limiter:     limiter,
		send:        make(chan envelope, bufferSize),
		log:         log,
	}
}

// Consume is called by the dispatcher after its locks are released.
// It must never block on the socket.
func (c *Client) Consume(ctx context.Context, e event.BroadcastEvent) error {
	env, err := encode(e)
	if err != nil {
		return err
	}
	select {
	case c.send <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.log.Debug("send buffer full, event dropped", "connection_id", c.id, "topic", e.Topic())
		return nil
	}
}

// readPump pumps inbound frames from the socket into the coordinator.
// It owns the disconnect: whatever ends the loop, the connection is
// deregistered and cleanup runs to completion.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.coordinator.Disconnect(context.WithoutCancel(ctx), c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("unexpected close", "connection_id", c.id, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.reply(errorEnvelope("RESOURCE_EXHAUSTED", "too many frames"))
			continue
		}

		frame, err := decodeFrame(data)
		if err != nil {
			c.reply(errorEnvelope("INVALID_ARGUMENT", err.Error()))
			continue
		}

		// Errors are reported to this connection only, never broadcast.
		if err := c.coordinator.Handle(ctx, c.id, frame); err != nil {
			c.reply(errorEnvelope(apperrors.Code(err), err.Error()))
		}
	}
}

func (c *Client) reply(env envelope) {
	select {
	case c.send <- env:
	default:
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
