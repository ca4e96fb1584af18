package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/geometry"
	"github.com/facadeworks/takeoff/internal/models"
)

// RedetectService re-runs the external detection model for one page.
// The page's current draft rows are soft-deleted (status=deleted) and
// the fresh set inserted in the same transaction, so the edit history
// stays reconstructable; nothing is ever hard-deleted.
type RedetectService struct {
	DB     *gorm.DB
	Client detection.MLClient
}

func NewRedetectService(db *gorm.DB, client detection.MLClient) *RedetectService {
	return &RedetectService{DB: db, Client: client}
}

// Run invokes the model and swaps the page's draft detection set.
// Returns the inserted rows with derived geometry filled in.
func (s *RedetectService) Run(ctx context.Context, pageID uint) ([]models.Detection, error) {
	var page models.Page
	if err := s.DB.WithContext(ctx).First(&page, pageID).Error; err != nil {
		return nil, err
	}

	fresh, err := s.Client.Detect(ctx, page.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("redetect page %d: %w", pageID, err)
	}
	for i := range fresh {
		fresh[i].PageID = page.ID
		fresh[i].Status = models.StatusAuto
		geometry.Apply(&fresh[i], page)
	}

	batchID := uuid.NewString()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(models.TableDraftDetections).
			Where("page_id = ? AND status <> ?", page.ID, models.StatusDeleted).
			Update("status", models.StatusDeleted).Error; err != nil {
			return err
		}
		if err := detection.CreateInTable(tx, models.TableDraftDetections, fresh); err != nil {
			return err
		}
		audit := models.AuditLog{
			EntityType: "Page",
			EntityID:   page.ID,
			Action:     "redetect",
			BatchID:    batchID,
			Detail:     fmt.Sprintf("inserted=%d", len(fresh)),
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
