package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/webrtc-call/internal/models"
	"github.com/mossy-p/webrtc-call/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	participant *relay.Participant
	conn        *websocket.Conn
	handler     *Handler
	logger      logrus.FieldLogger
}

// HandleLobby serves the unscoped signaling endpoint. Every participant
// connected here receives the setup messages of every other one.
func (h *Handler) HandleLobby(c *gin.Context) {
	h.serveSignaling(c, "", 0)
}

// HandleSignaling serves signaling scoped to a single call
func (h *Handler) HandleSignaling(c *gin.Context) {
	callIdentifier := c.Param("callId")
	if callIdentifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callId is required"})
		return
	}

	// Validate call exists and get actual call ID
	call, err := h.store.ValidateJoinable(c.Request.Context(), callIdentifier)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	h.serveSignaling(c, call.ID, call.MaxParticipants)
}

// serveSignaling admits one participant to callID. A limit above zero caps
// the number of connected participants of the call.
func (h *Handler) serveSignaling(c *gin.Context, callID string, limit int) {
	peerID := uuid.New().String()
	logger := h.logger.WithFields(logrus.Fields{
		"peer": peerID,
		"call": callID,
	})
	if displayName := c.Query("displayName"); displayName != "" {
		logger = logger.WithField("name", displayName)
	}

	participant := relay.NewParticipant(peerID, callID, h.queueSize)
	if err := h.registry.RegisterLimited(participant, limit); err != nil {
		if errors.Is(err, relay.ErrCallFull) {
			logger.Infoln("rejecting join to full call")
			c.JSON(http.StatusConflict, gin.H{"error": "Call is full"})
			return
		}
		logger.WithError(err).Errorln("failed to register participant")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Warnln("failed to upgrade connection")
		h.registry.Unregister(participant)
		return
	}

	// Confirm the join before the write pump starts so that the
	// confirmation is the first message the peer reads, then tell everyone
	// else.
	join := models.SignalMessage{
		Type:   models.SignalTypeJoin,
		From:   peerID,
		CallID: callID,
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(join); err != nil {
		logger.WithError(err).Debugln("failed to confirm join")
		h.registry.Unregister(participant)
		conn.Close()
		return
	}

	if callID != "" {
		if err := h.store.AddParticipant(context.Background(), callID, peerID); err != nil {
			logger.WithError(err).Warnln("failed to record participant")
		}
	}

	client := &Client{
		participant: participant,
		conn:        conn,
		handler:     h,
		logger:      logger,
	}

	logger.WithField("participants", h.registry.Count(callID)).Infoln("peer joined")

	client.broadcast(join)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	p := c.participant
	defer func() {
		c.handler.registry.Unregister(p)
		c.conn.Close()

		if p.CallID != "" {
			if err := c.handler.store.RemoveParticipant(context.Background(), p.CallID, p.ID); err != nil {
				c.logger.WithError(err).Warnln("failed to remove participant")
			}
		}

		// Notify other peers
		c.broadcast(models.SignalMessage{
			Type:   models.SignalTypeLeave,
			From:   p.ID,
			CallID: p.CallID,
		})

		c.logger.Infoln("peer left")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Warnln("websocket error")
			}
			return
		}

		msg, err := models.ParseSignalMessage(message)
		if err != nil {
			c.logger.WithError(err).Debugln("rejecting malformed message")
			c.sendError(err.Error())
			continue
		}
		if !msg.Type.IsSetup() {
			c.sendError("unsupported message type: " + string(msg.Type))
			continue
		}

		if msg.To == p.ID {
			c.sendError("cannot address a message to yourself")
			continue
		}

		// Set the sender
		msg.From = p.ID
		msg.CallID = p.CallID

		// Forward to specific peer if "to" is specified
		if msg.To != "" {
			c.sendTo(msg, msg.To)
		} else {
			c.broadcast(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.participant.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.WithError(err).Debugln("failed to write message")
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

func (c *Client) marshal(msg models.SignalMessage) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.WithError(err).Errorln("failed to marshal message")
		return nil, false
	}
	return data, true
}

func (c *Client) broadcast(msg models.SignalMessage) {
	if data, ok := c.marshal(msg); ok {
		c.handler.registry.BroadcastExcept(c.participant.CallID, c.participant.ID, data)
	}
}

func (c *Client) sendTo(msg models.SignalMessage, targetID string) {
	if data, ok := c.marshal(msg); ok {
		c.handler.registry.SendTo(c.participant.CallID, targetID, data)
	}
}

func (c *Client) sendToSelf(msg models.SignalMessage) {
	c.sendTo(msg, c.participant.ID)
}

func (c *Client) sendError(text string) {
	c.sendToSelf(models.SignalMessage{
		Type:   models.SignalTypeError,
		CallID: c.participant.CallID,
		Error:  text,
	})
}
