// Package session keeps suspended conversation state keyed by workflow ID.
package session

import (
	"context"
	"time"
)

// DefaultTTL is how long a suspended conversation is kept when no TTL is configured.
const DefaultTTL = time.Hour

// Store is a key-value store of opaque conversation state.
// Take is destructive: of two concurrent Takes for the same ID at most one sees the value.
type Store interface {
	Save(ctx context.Context, workflowID string, state []byte) error
	Take(ctx context.Context, workflowID string) (state []byte, ok bool, err error)
	Delete(ctx context.Context, workflowID string) error
	Type() string
	Close() error
}
