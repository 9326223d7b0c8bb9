// Package store persists the append-only chat message log. Messages are
// never updated or deleted; history reads return a bounded chronological
// transcript per room.
package store

import (
	"context"

	"github.com/swgestor/backend/internal/chat"
)

const (
	// DefaultHistoryLimit applies when the caller does not ask for a limit.
	DefaultHistoryLimit = 30
	// MaxHistoryLimit caps how many messages a single history read returns.
	MaxHistoryLimit = 100
)

// Messages is the chat log contract.
type Messages interface {
	// Append validates and persists one message, returning it with its
	// generated identifier and timestamp. Fails with chat.ErrValidation when
	// room, user, or message violate their constraints.
	Append(ctx context.Context, req chat.SendRequest) (chat.Message, error)

	// History returns up to min(limit, MaxHistoryLimit) most recent messages
	// of the room, oldest first. Non-positive limits fall back to
	// DefaultHistoryLimit.
	History(ctx context.Context, room string, limit int) ([]chat.Message, error)

	Close() error
}

// ClampLimit normalizes a caller-supplied history limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
