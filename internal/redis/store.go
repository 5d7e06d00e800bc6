package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mossy-p/webrtc-call/config"
	"github.com/mossy-p/webrtc-call/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// CodeLength is the length of the short shareable call code.
	CodeLength = 6

	callTTL = 24 * time.Hour
)

var (
	ErrCallNotFound = errors.New("call not found")
	ErrCallFull     = errors.New("call is full")
)

// Store keeps call metadata and the set of participants currently joined to
// each call.
type Store struct {
	client *redis.Client
}

// Connect initializes the Redis client and checks the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStore(client), nil
}

// NewStore wraps an existing client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func callKey(callID string) string  { return "call:" + callID }
func peersKey(callID string) string { return "call:" + callID + ":peers" }
func codeKey(code string) string    { return "code:" + code }

// CreateCall stores call metadata by id along with the code-to-id mapping.
func (s *Store) CreateCall(ctx context.Context, call models.CallMetadata) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to encode call: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, callKey(call.ID), data, callTTL)
	pipe.Set(ctx, codeKey(call.Code), call.ID, callTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store call: %w", err)
	}
	return nil
}

// ResolveCallID maps a call code to its id. Identifiers that are not codes
// are returned unchanged.
func (s *Store) ResolveCallID(ctx context.Context, identifier string) (string, error) {
	if len(identifier) != CodeLength {
		return identifier, nil
	}
	id, err := s.client.Get(ctx, codeKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCallNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve call code: %w", err)
	}
	return id, nil
}

// GetCall loads call metadata by id or code, with the live participant count.
func (s *Store) GetCall(ctx context.Context, identifier string) (*models.CallMetadata, error) {
	callID, err := s.ResolveCallID(ctx, identifier)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, callKey(callID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load call: %w", err)
	}

	var call models.CallMetadata
	if err := json.Unmarshal([]byte(data), &call); err != nil {
		return nil, fmt.Errorf("failed to parse call data: %w", err)
	}

	count, err := s.client.SCard(ctx, peersKey(callID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	call.ParticipantCount = int(count)
	return &call, nil
}

// ValidateJoinable checks that a call exists and is not full.
func (s *Store) ValidateJoinable(ctx context.Context, identifier string) (*models.CallMetadata, error) {
	call, err := s.GetCall(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if call.ParticipantCount >= call.MaxParticipants {
		return nil, ErrCallFull
	}
	return call, nil
}

// DeleteCall removes all keys belonging to a call.
func (s *Store) DeleteCall(ctx context.Context, call *models.CallMetadata) error {
	if err := s.client.Del(ctx, callKey(call.ID), codeKey(call.Code), peersKey(call.ID)).Err(); err != nil {
		return fmt.Errorf("failed to delete call: %w", err)
	}
	return nil
}

// AddParticipant records peerID as joined to callID.
func (s *Store) AddParticipant(ctx context.Context, callID, peerID string) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, peersKey(callID), peerID)
	pipe.Expire(ctx, peersKey(callID), callTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveParticipant removes peerID from callID.
func (s *Store) RemoveParticipant(ctx context.Context, callID, peerID string) error {
	return s.client.SRem(ctx, peersKey(callID), peerID).Err()
}
