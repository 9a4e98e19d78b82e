// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspost/internal/models"
)

const (
	stateKeyPrefix = "oauth:state:"

	// DefaultStateTTL bounds how long a user has to finish a consent screen.
	DefaultStateTTL = 10 * time.Minute
)

// ErrUnknownState is returned for a state that was never issued, has
// expired, or was already consumed.
var ErrUnknownState = errors.New("unknown or expired oauth state")

// PendingAuth is what the login step remembers for the callback.
type PendingAuth struct {
	Destination models.Destination `json:"destination"`
	Verifier    string             `json:"verifier,omitempty"`
}

// StateStore keeps OAuth state values in Valkey. Each value can be taken
// exactly once.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Put(ctx context.Context, state string, p PendingAuth) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("oauth state encode: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("oauth state put: %w", err)
	}
	return nil
}

// Take returns and deletes the pending authorization for state.
func (s *StateStore) Take(ctx context.Context, state string) (PendingAuth, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingAuth{}, ErrUnknownState
	}
	if err != nil {
		return PendingAuth{}, fmt.Errorf("oauth state take: %w", err)
	}
	var p PendingAuth
	if err := json.Unmarshal(raw, &p); err != nil {
		return PendingAuth{}, fmt.Errorf("oauth state decode: %w", err)
	}
	return p, nil
}
