package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wifiticket/guestpass/internal/model"
)

const historyInsertBatch = 500

type gormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore stores one row per identifier. It serves both the
// postgres and sqlite backends; the unique index keeps inserts idempotent.
func NewGormHistoryStore(db *gorm.DB) HistoryStore {
	return &gormHistoryStore{db: db}
}

func (s *gormHistoryStore) Load(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&model.IssuedIdentifier{}).
		Order("id").
		Pluck("identifier", &ids).Error; err != nil {
		return nil, fmt.Errorf("load issued identifiers: %w", err)
	}
	return ids, nil
}

func (s *gormHistoryStore) Save(ctx context.Context, _ []string, issued []string) error {
	if len(issued) == 0 {
		return nil
	}

	rows := make([]model.IssuedIdentifier, 0, len(issued))
	for _, id := range issued {
		rows = append(rows, model.IssuedIdentifier{Identifier: id})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, historyInsertBatch).Error
	if err != nil {
		return fmt.Errorf("insert issued identifiers: %w", err)
	}
	return nil
}
