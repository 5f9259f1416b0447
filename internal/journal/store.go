package journal

import (
	"context"
	"time"
)

// Store persists and retrieves journal entries.
type Store interface {
	// Append adds an entry. ID is assigned by the store and ignored on input.
	Append(ctx context.Context, e Entry) error

	// GetBySession returns every entry of one daemon session in append order.
	GetBySession(ctx context.Context, sessionID string) ([]Entry, error)

	// GetRange returns entries with start <= timestamp <= end in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Entry, error)

	Close() error
}
