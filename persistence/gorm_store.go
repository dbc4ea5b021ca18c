package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/relabs-ai/agentchain/types"
)

// historyRecord is the GORM model backing the SQLite audit trail. The log
// is append-only; a reviewed entry appears as an additional row with the
// same entry id.
type historyRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	EntryID   string `gorm:"size:64;index"`
	SessionID string `gorm:"size:64;index"`
	AgentID   int
	AgentName string
	Prompt    string `gorm:"type:text"`
	Response  string `gorm:"type:text"`
	Status    string `gorm:"size:16"`
	Timestamp time.Time
	CreatedAt time.Time
}

func (historyRecord) TableName() string { return "history_entries" }

// GormHistoryStore is a SQLite-backed implementation of HistoryStore for
// an embedded, durable audit trail.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore opens the SQLite database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func NewGormHistoryStore(path string) (*GormHistoryStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&historyRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &GormHistoryStore{db: db}, nil
}

// Append persists a single entry.
func (s *GormHistoryStore) Append(ctx context.Context, entry types.HistoryEntry) error {
	if entry.SessionID == "" {
		return ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	record := historyRecord{
		EntryID:   entry.ID,
		SessionID: entry.SessionID,
		AgentID:   entry.AgentID,
		AgentName: entry.AgentName,
		Prompt:    entry.Prompt,
		Response:  entry.Response,
		Status:    string(entry.Status),
		Timestamp: entry.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to persist history entry: %w", err)
	}
	return nil
}

// List returns all entries for a session in commit order.
func (s *GormHistoryStore) List(ctx context.Context, sessionID string) ([]types.HistoryEntry, error) {
	var records []historyRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	entries := make([]types.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, types.HistoryEntry{
			ID:        r.EntryID,
			SessionID: r.SessionID,
			AgentID:   r.AgentID,
			AgentName: r.AgentName,
			Prompt:    r.Prompt,
			Response:  r.Response,
			Timestamp: r.Timestamp,
			Status:    types.HistoryStatus(r.Status),
		})
	}
	return entries, nil
}

// Ping checks if the store is healthy.
func (s *GormHistoryStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *GormHistoryStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
