// Package persistence provides durable sinks for the pipeline's history
// log. The orchestrator reports committed entries; it never owns storage.
// Three backends are provided: in-memory (tests, single process), Redis
// (distributed deployments), and SQLite via GORM (embedded audit trail).
package persistence

import (
	"context"
	"errors"

	"github.com/relabs-ai/agentchain/types"
)

// ErrInvalidInput indicates a malformed entry or query.
var ErrInvalidInput = errors.New("persistence: invalid input")

// HistoryStore persists history entries in commit order and serves them
// back per session.
type HistoryStore interface {
	// Append persists a single entry.
	Append(ctx context.Context, entry types.HistoryEntry) error

	// List returns all entries for a session in commit order.
	List(ctx context.Context, sessionID string) ([]types.HistoryEntry, error)

	// Ping checks whether the store is healthy.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
