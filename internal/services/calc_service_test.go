package services

import (
	"context"
	"fmt"
	"math"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/models"
)

func setupCalcTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Job{}, &models.Page{}, &models.ElevationCalc{}, &models.JobTotals{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{models.TableDraftDetections, models.TableValidatedDetections, models.TableAIDetections} {
		if err := db.Table(table).AutoMigrate(&models.Detection{}); err != nil {
			t.Fatalf("migrate %s: %v", table, err)
		}
	}
	return db
}

func seedCalcFixtures(t *testing.T, db *gorm.DB) (models.Job, models.Page, models.Page) {
	t.Helper()
	job := models.Job{Name: "two elevation house", Stage: models.StageProcessing}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("job: %v", err)
	}
	front := models.Page{JobID: job.ID, PageType: models.PageTypeElevation, ElevationName: "front", ScaleRatio: 0.1, DPI: 150}
	rear := models.Page{JobID: job.ID, PageType: models.PageTypeElevation, ElevationName: "rear", ScaleRatio: 0.1, DPI: 150}
	if err := db.Create(&front).Error; err != nil {
		t.Fatalf("front: %v", err)
	}
	if err := db.Create(&rear).Error; err != nil {
		t.Fatalf("rear: %v", err)
	}
	return job, front, rear
}

func newCalcService(db *gorm.DB) *CalcService {
	return NewCalcService(db, detection.NewResolver(
		detection.NewDraftStore(db), detection.NewValidatedStore(db), detection.NewAIStore(db)))
}

func insertAI(t *testing.T, db *gorm.DB, pageID uint, class string, w, h float64) {
	t.Helper()
	conf := 0.9
	d := models.Detection{PageID: pageID, Class: class, Status: models.StatusAuto, WidthPx: w, HeightPx: h, Confidence: &conf}
	if err := db.Table(models.TableAIDetections).Create(&d).Error; err != nil {
		t.Fatalf("insert ai: %v", err)
	}
}

func TestRunJobCalcEndToEnd(t *testing.T) {
	db := setupCalcTestDB(t)
	job, front, rear := seedCalcFixtures(t, db)
	svc := newCalcService(db)

	insertAI(t, db, front.ID, models.ClassSiding, 400, 100) // 400 SF
	insertAI(t, db, front.ID, models.ClassWindow, 30, 40)   // 12 SF
	insertAI(t, db, rear.ID, models.ClassSiding, 300, 100)  // 300 SF

	res, err := svc.RunJobCalc(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("calc: %v", err)
	}
	if res.Source != detection.SourceAIOriginal {
		t.Fatalf("expected ai_original source, got %s", res.Source)
	}
	if len(res.Calcs) != 2 {
		t.Fatalf("expected 2 elevation calcs, got %d", len(res.Calcs))
	}
	if got := res.Totals.NetSidingSF; math.Abs(got-688) > 1e-9 { // 400-12 + 300
		t.Fatalf("expected net siding 688, got %v", got)
	}
	if math.Abs(res.Totals.SidingSquares-6.88) > 1e-9 {
		t.Fatalf("expected 6.88 squares, got %v", res.Totals.SidingSquares)
	}
	if res.Totals.CalculationVersion != CalculationVersion {
		t.Fatalf("missing calculation version tag")
	}

	var storedCalcs int64
	db.Model(&models.ElevationCalc{}).Where("job_id = ?", job.ID).Count(&storedCalcs)
	if storedCalcs != 2 {
		t.Fatalf("expected 2 stored calcs, got %d", storedCalcs)
	}
}

func TestRunJobCalcRepeatedRunsDoNotDoubleCount(t *testing.T) {
	db := setupCalcTestDB(t)
	job, front, _ := seedCalcFixtures(t, db)
	svc := newCalcService(db)
	insertAI(t, db, front.ID, models.ClassSiding, 400, 100)

	first, err := svc.RunJobCalc(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.RunJobCalc(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Totals.NetSidingSF != second.Totals.NetSidingSF {
		t.Fatalf("totals drifted across identical runs: %v vs %v", first.Totals.NetSidingSF, second.Totals.NetSidingSF)
	}
	var totalsRows int64
	db.Model(&models.JobTotals{}).Where("job_id = ?", job.ID).Count(&totalsRows)
	if totalsRows != 1 {
		t.Fatalf("expected a single totals row, got %d", totalsRows)
	}
}

func TestRunJobCalcReplacesOnReprocess(t *testing.T) {
	db := setupCalcTestDB(t)
	job, front, _ := seedCalcFixtures(t, db)
	svc := newCalcService(db)

	insertAI(t, db, front.ID, models.ClassSiding, 400, 100)
	first, err := svc.RunJobCalc(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if math.Abs(first.Totals.NetSidingSF-400) > 1e-9 {
		t.Fatalf("expected 400, got %v", first.Totals.NetSidingSF)
	}

	// A window appears after review; the rerun replaces, not adds.
	insertAI(t, db, front.ID, models.ClassWindow, 30, 40)
	second, err := svc.RunJobCalc(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if math.Abs(second.Totals.NetSidingSF-388) > 1e-9 {
		t.Fatalf("expected 388 after reprocess, got %v", second.Totals.NetSidingSF)
	}
}

func TestResolveDetectionsBatchSemantics(t *testing.T) {
	db := setupCalcTestDB(t)
	job, front, rear := seedCalcFixtures(t, db)
	svc := newCalcService(db)

	// Drafts only on the front page; rear has validated rows.
	conf := 1.0
	d := models.Detection{PageID: front.ID, Class: models.ClassWindow, Status: models.StatusEdited, WidthPx: 30, HeightPx: 40, Confidence: &conf}
	if err := db.Table(models.TableDraftDetections).Create(&d).Error; err != nil {
		t.Fatalf("draft: %v", err)
	}
	v := models.Detection{PageID: rear.ID, Class: models.ClassDoor, Status: models.StatusVerified, WidthPx: 30, HeightPx: 70, Confidence: &conf}
	if err := db.Table(models.TableValidatedDetections).Create(&v).Error; err != nil {
		t.Fatalf("validated: %v", err)
	}

	res, err := svc.ResolveDetections(context.Background(), job.ID, models.PageTypeElevation)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Source != detection.SourceDraft {
		t.Fatalf("expected draft source for whole batch, got %s", res.Source)
	}
	byName := map[string]int{}
	for _, p := range res.Pages {
		byName[p.Page.ElevationName] = len(p.Detections)
	}
	if byName["front"] != 1 || byName["rear"] != 0 {
		t.Fatalf("batch semantics violated: %v", byName)
	}
}
