package repository

import (
	"context"
	"errors"
)

// ErrHistoryNotFound marks a store that has never been written: a first run,
// as opposed to a history that exists but cannot be read.
var ErrHistoryNotFound = errors.New("identifier history not found")

// HistoryStore persists every guest identifier ever issued.
// Implementations: file (afs), SQL (gorm: postgres or sqlite), Redis, in-memory.
type HistoryStore interface {
	// Load returns all recorded identifiers.
	Load(ctx context.Context) ([]string, error)
	// Save records the history after a generation call. history is the full
	// set, issued the identifiers added by that call; append-only backends
	// write issued, rewrite backends replace their contents with history.
	Save(ctx context.Context, history []string, issued []string) error
}
