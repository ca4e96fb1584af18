package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/models"
)

type fakeMLClient struct {
	detections []models.Detection
	err        error
}

func (c fakeMLClient) Detect(context.Context, string) ([]models.Detection, error) {
	return c.detections, c.err
}

func setupRedetectDB(t *testing.T) (*gorm.DB, models.Page) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Job{}, &models.Page{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Table(models.TableDraftDetections).AutoMigrate(&models.Detection{}); err != nil {
		t.Fatalf("migrate drafts: %v", err)
	}
	page := models.Page{JobID: 1, PageType: models.PageTypeElevation, ElevationName: "front", ScaleRatio: 0.1, DPI: 150, ImageURL: "http://img/front.png"}
	if err := db.Create(&page).Error; err != nil {
		t.Fatalf("page: %v", err)
	}
	return db, page
}

func TestRedetectSoftDeletesAndInserts(t *testing.T) {
	db, page := setupRedetectDB(t)

	// Existing user draft, soon stale.
	conf := 1.0
	old := models.Detection{PageID: page.ID, Class: models.ClassWindow, Status: models.StatusEdited, WidthPx: 30, HeightPx: 40, Confidence: &conf}
	if err := db.Table(models.TableDraftDetections).Create(&old).Error; err != nil {
		t.Fatalf("old draft: %v", err)
	}

	nc := 0.85
	svc := NewRedetectService(db, fakeMLClient{detections: []models.Detection{
		{Class: models.ClassWindow, WidthPx: 32, HeightPx: 42, Confidence: &nc},
		{Class: models.ClassDoor, WidthPx: 30, HeightPx: 70, Confidence: &nc},
	}})
	inserted, err := svc.Run(context.Background(), page.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("expected 2 inserted, got %d", len(inserted))
	}
	for _, d := range inserted {
		if d.Status != models.StatusAuto || d.PageID != page.ID {
			t.Fatalf("inserted row not normalized: %+v", d)
		}
		if d.AreaSF == nil {
			t.Fatalf("expected derived geometry on inserted row")
		}
	}

	// The old draft remains as a deleted audit row, never hard-deleted.
	var deleted, live int64
	db.Table(models.TableDraftDetections).Where("page_id = ? AND status = ?", page.ID, models.StatusDeleted).Count(&deleted)
	db.Table(models.TableDraftDetections).Where("page_id = ? AND status <> ?", page.ID, models.StatusDeleted).Count(&live)
	if deleted != 1 || live != 2 {
		t.Fatalf("expected 1 deleted + 2 live rows, got %d/%d", deleted, live)
	}

	var audit models.AuditLog
	if err := db.Where("entity_type = ? AND action = ?", "Page", "redetect").First(&audit).Error; err != nil {
		t.Fatalf("audit row: %v", err)
	}
	if audit.BatchID == "" {
		t.Fatalf("expected batch id on audit row")
	}
}

func TestRedetectModelFailureLeavesDraftsUntouched(t *testing.T) {
	db, page := setupRedetectDB(t)
	conf := 1.0
	old := models.Detection{PageID: page.ID, Class: models.ClassWindow, Status: models.StatusEdited, WidthPx: 30, HeightPx: 40, Confidence: &conf}
	if err := db.Table(models.TableDraftDetections).Create(&old).Error; err != nil {
		t.Fatalf("old draft: %v", err)
	}

	svc := NewRedetectService(db, fakeMLClient{err: errors.New("model timeout")})
	if _, err := svc.Run(context.Background(), page.ID); err == nil {
		t.Fatalf("expected error from failing model")
	}
	var live int64
	db.Table(models.TableDraftDetections).Where("status <> ?", models.StatusDeleted).Count(&live)
	if live != 1 {
		t.Fatalf("drafts must be untouched on failure, got %d live", live)
	}
}
