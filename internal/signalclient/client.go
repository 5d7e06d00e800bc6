// Package signalclient is the client side of the signaling relay websocket.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/webrtc-call/internal/models"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	sendQueueSize    = 64
)

var ErrClosed = errors.New("signaling connection closed")

// Conn is a connection to the relay. Outgoing messages are written in the
// order Send was called.
type Conn struct {
	conn   *websocket.Conn
	logger logrus.FieldLogger

	send     chan []byte
	messages chan []byte
	done     chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to the relay websocket at url.
func Dial(ctx context.Context, url string, logger logrus.FieldLogger) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial relay (status %s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	c := &Conn{
		conn:     conn,
		logger:   logger,
		send:     make(chan []byte, sendQueueSize),
		messages: make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Send queues msg for delivery to the relay.
func (c *Conn) Send(msg models.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Messages returns the raw messages received from the relay. It is closed
// when the connection ends.
func (c *Conn) Messages() <-chan []byte {
	return c.messages
}

// Done is closed once the connection has ended.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the connection. It is idempotent.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()
	})
}

func (c *Conn) readPump() {
	defer close(c.messages)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.WithError(err).Warnln("signaling connection lost")
				}
				c.shutdown(err)
			}
			return
		}

		select {
		case c.messages <- message:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WithError(err).Debugln("failed to write message")
				c.shutdown(err)
				return
			}
		}
	}
}
