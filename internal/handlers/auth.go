package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/webrtc-call/internal/middleware"
)

const tokenTTL = 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login issues a call management token. Any credentials are accepted; the
// relay has no user store.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	token, err := middleware.IssueToken(req.Username, h.jwtSecret, tokenTTL)
	if err != nil {
		h.logger.WithError(err).Errorln("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	h.logger.WithField("user", req.Username).Debugln("issued token")
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    req.Username,
		ExpiresAt: expiresAt.UTC(),
	})
}
