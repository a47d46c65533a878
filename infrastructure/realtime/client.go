package realtime

import (
	"context"
	"interest-chat/domain/chat"
	"interest-chat/domain/event"
	"interest-chat/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// Client is one websocket connection. It is the EventSink the router delivers to.
type Client struct {
	id        string
	userID    chat.UserID
	conn      *websocket.Conn
	send      chan event.Event
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
	pingEvery time.Duration
	log       *slog.Logger
}

func newClient(id string, userID chat.UserID, conn *websocket.Conn, options Options, log *slog.Logger) *Client {
	return &Client{
		id:        id,
		userID:    userID,
		conn:      conn,
		send:      make(chan event.Event, options.SendBuffer),
		done:      make(chan struct{}),
		writeWait: options.WriteWait,
		pingEvery: options.PongWait * 9 / 10,
		log:       log.With("client", id),
	}
}

func (c *Client) ID() string { return c.id }

// Consume never blocks. A client that does not drain its buffer is closed, the read pump then runs the disconnect cleanup.
func (c *Client) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-c.done:
		return errors.ErrClientClosed
	default:
	}
	select {
	case c.send <- e:
		return nil
	case <-c.done:
		return errors.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		if c.log != nil {
			c.log.Warn("Send buffer full, closing slow client", "event", e.Name)
		}
		c.close()
		return errors.ErrSlowConsumer
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump is the only writer of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case e := <-c.send:
			if err := c.write(e); err != nil {
				c.log.Debug("Failed to write event", "event", e.Name, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// reply queues an event for this client only.
func (c *Client) reply(e event.Event) {
	if err := c.Consume(context.Background(), e); err != nil {
		c.log.Debug("Reply dropped", "event", e.Name, "error", err)
	}
}
