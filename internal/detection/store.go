// Package detection holds the three-tier detection stores, the
// source resolver that picks the authoritative tier for a page batch,
// and the confidence banding used by review tooling.
package detection

import (
	"context"

	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/models"
)

// Store is one detection tier. All three tiers share the Detection
// schema and differ only in backing table.
type Store interface {
	ListByPageIDs(ctx context.Context, pageIDs []uint, excludeDeleted bool) ([]models.Detection, error)
}

// GormStore backs one tier with a gorm table.
type GormStore struct {
	DB    *gorm.DB
	Table string
}

func NewDraftStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, Table: models.TableDraftDetections}
}

func NewValidatedStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, Table: models.TableValidatedDetections}
}

func NewAIStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db, Table: models.TableAIDetections}
}

func (s *GormStore) ListByPageIDs(ctx context.Context, pageIDs []uint, excludeDeleted bool) ([]models.Detection, error) {
	if len(pageIDs) == 0 {
		return nil, nil
	}
	q := s.DB.WithContext(ctx).Table(s.Table).Where("page_id IN ?", pageIDs)
	if excludeDeleted {
		q = q.Where("status <> ?", models.StatusDeleted)
	}
	var rows []models.Detection
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateInTable inserts detections into the named tier table.
func CreateInTable(db *gorm.DB, table string, rows []models.Detection) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Table(table).Create(&rows).Error
}
