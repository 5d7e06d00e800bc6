package handlers

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mossy-p/webrtc-call/internal/middleware"
	"github.com/mossy-p/webrtc-call/internal/models"
	"github.com/mossy-p/webrtc-call/internal/redis"
)

const (
	defaultMaxParticipants = 2
	codeChars              = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // Removed ambiguous chars
)

// CreateCall creates a new call (requires authentication)
func (h *Handler) CreateCall(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateCallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// Calls are pairwise unless asked otherwise
	if req.MaxParticipants == 0 {
		req.MaxParticipants = defaultMaxParticipants
	}

	code, err := generateCallCode()
	if err != nil {
		h.logger.WithError(err).Errorln("failed to generate call code")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call"})
		return
	}

	call := models.CallMetadata{
		ID:              uuid.New().String(),
		Code:            code,
		CreatorID:       userID,
		CreatedAt:       time.Now().UTC(),
		MaxParticipants: req.MaxParticipants,
	}

	if err := h.store.CreateCall(c.Request.Context(), call); err != nil {
		h.logger.WithError(err).Errorln("failed to store call")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create call"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"call": call.ID,
		"code": call.Code,
		"user": userID,
	}).Infoln("call created")

	c.JSON(http.StatusCreated, models.CreateCallResponse{
		CallID: call.ID,
		Code:   call.Code,
	})
}

// GetCall gets call information by code or ID (public)
func (h *Handler) GetCall(c *gin.Context) {
	call, err := h.store.GetCall(c.Request.Context(), c.Param("callId"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

// DeleteCall deletes a call (requires authentication and creator)
func (h *Handler) DeleteCall(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	call, err := h.store.GetCall(c.Request.Context(), c.Param("callId"))
	if err != nil {
		h.writeStoreError(c, err)
		return
	}

	// Verify user is the creator
	if call.CreatorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the call creator can delete the call"})
		return
	}

	if err := h.store.DeleteCall(c.Request.Context(), call); err != nil {
		h.writeStoreError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"call": call.ID,
		"user": userID,
	}).Infoln("call deleted")

	c.JSON(http.StatusOK, gin.H{"message": "Call deleted"})
}

func (h *Handler) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, redis.ErrCallNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
	case errors.Is(err, redis.ErrCallFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Call is full"})
	default:
		h.logger.WithError(err).Errorln("call store error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// generateCallCode generates a random call code
func generateCallCode() (string, error) {
	code := make([]byte, redis.CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", err
		}
		code[i] = codeChars[n.Int64()]
	}
	return string(code), nil
}
