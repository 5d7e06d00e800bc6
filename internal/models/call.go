package models

import "time"

// CallMetadata stores information about a call
type CallMetadata struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`      // Short, shareable call code (e.g., "ABCD23")
	CreatorID        string    `json:"creatorId"` // User ID from JWT who created the call
	CreatedAt        time.Time `json:"createdAt"`
	MaxParticipants  int       `json:"maxParticipants"`
	ParticipantCount int       `json:"participantCount"`
}

// CreateCallRequest is the request body for creating a call
type CreateCallRequest struct {
	MaxParticipants int `json:"maxParticipants" binding:"omitempty,min=2,max=16"`
}

// CreateCallResponse is the response for creating a call
type CreateCallResponse struct {
	CallID string `json:"callId"`
	Code   string `json:"code"`
}
