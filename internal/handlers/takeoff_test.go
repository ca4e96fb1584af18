package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/config"
	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/models"
	"github.com/facadeworks/takeoff/internal/services"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Job{}, &models.Page{}, &models.ElevationCalc{}, &models.JobTotals{}, &models.Takeoff{}, &models.Section{}, &models.LineItem{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{models.TableDraftDetections, models.TableValidatedDetections, models.TableAIDetections} {
		if err := db.Table(table).AutoMigrate(&models.Detection{}); err != nil {
			t.Fatalf("migrate %s: %v", table, err)
		}
	}
	return db
}

func handlerSettings() config.Settings {
	return config.Settings{
		Version:   2,
		Markup:    config.MarkupSettings{DefaultPercent: 35, LegacyPercent: 15},
		Burden:    config.BurdenSettings{LIRatePercent: 0, UnemploymentPercent: 0},
		Insurance: config.InsuranceSettings{RatePer1000: 24.38},
	}
}

func newTakeoffHandler(db *gorm.DB) *TakeoffHandler {
	resolver := detection.NewResolver(detection.NewDraftStore(db), detection.NewValidatedStore(db), detection.NewAIStore(db))
	calc := services.NewCalcService(db, resolver)
	pricing := services.NewPricingService(handlerSettings())
	return NewTakeoffHandler(db, services.NewTakeoffService(db, pricing), calc)
}

func TestTakeoffCreateSaveExportFlow(t *testing.T) {
	db := setupHandlerTestDB(t)
	job := models.Job{Name: "house", Stage: models.StageExtracted}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("job: %v", err)
	}
	rollup := models.JobTotals{JobID: job.ID, NetSidingSF: 688, SidingSquares: 6.88}
	if err := db.Create(&rollup).Error; err != nil {
		t.Fatalf("totals: %v", err)
	}
	h := newTakeoffHandler(db)

	// Create
	body := `{"job_id":` + strconv.Itoa(int(job.ID)) + `}`
	req := httptest.NewRequest(http.MethodPost, "/takeoffs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var created models.Takeoff
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.MarkupPercent != 35 {
		t.Fatalf("expected seeded markup 35, got %v", created.MarkupPercent)
	}

	// Save line items: 100 SF siding @ 1.20/0.80 with 35% markup.
	saveBody := fmt.Sprintf(`{
		"takeoff_id": %d,
		"version": %d,
		"markup_percent": 35,
		"sections": [{"name":"Siding","items":[
			{"item_type":"material","description":"lap siding","quantity":100,"unit":"SF","material_unit_cost":1.20,"labor_unit_cost":0.80}
		]}]
	}`, created.ID, created.Version)
	saveReq := httptest.NewRequest(http.MethodPost, "/takeoffs/save", strings.NewReader(saveBody))
	saveReq.Header.Set("Content-Type", "application/json")
	saveW := httptest.NewRecorder()
	h.Save(saveW, saveReq)
	if saveW.Code != http.StatusOK {
		t.Fatalf("save expected 200 got %d body=%s", saveW.Code, saveW.Body.String())
	}
	var saved struct {
		Totals services.PricingTotals `json:"totals"`
	}
	if err := json.Unmarshal(saveW.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode save: %v", err)
	}
	if math.Abs(saved.Totals.GrandTotal-270) > 1e-6 {
		t.Fatalf("expected grand total 270, got %v", saved.Totals.GrandTotal)
	}
	if math.Abs(saved.Totals.SidingSquares-6.88) > 1e-9 {
		t.Fatalf("expected measured squares in save totals, got %v", saved.Totals.SidingSquares)
	}

	// Stale save is rejected with 409.
	staleW := httptest.NewRecorder()
	staleReq := httptest.NewRequest(http.MethodPost, "/takeoffs/save", strings.NewReader(saveBody))
	staleReq.Header.Set("Content-Type", "application/json")
	h.Save(staleW, staleReq)
	if staleW.Code != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d", staleW.Code)
	}

	// Export hands back the stored numbers verbatim.
	expReq := httptest.NewRequest(http.MethodGet, "/takeoffs/export?id="+strconv.Itoa(int(created.ID)), nil)
	expW := httptest.NewRecorder()
	h.Export(expW, expReq)
	if expW.Code != http.StatusOK {
		t.Fatalf("export expected 200 got %d", expW.Code)
	}
	var exported map[string]any
	if err := json.Unmarshal(expW.Body.Bytes(), &exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if math.Abs(exported["grand_total"].(float64)-saved.Totals.GrandTotal) > 1e-9 {
		t.Fatalf("export diverged from pipeline: %v vs %v", exported["grand_total"], saved.Totals.GrandTotal)
	}
	if exported["document_id"] == "" {
		t.Fatalf("missing export document id")
	}
	if math.Abs(exported["siding_squares"].(float64)-6.88) > 1e-9 {
		t.Fatalf("expected siding squares 6.88 in export, got %v", exported["siding_squares"])
	}
}

func TestTakeoffCreateRejectsUnextractedJob(t *testing.T) {
	db := setupHandlerTestDB(t)
	job := models.Job{Name: "fresh", Stage: models.StageUploaded}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("job: %v", err)
	}
	h := newTakeoffHandler(db)
	body := `{"job_id":` + strconv.Itoa(int(job.ID)) + `}`
	req := httptest.NewRequest(http.MethodPost, "/takeoffs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestTakeoffListJSON(t *testing.T) {
	db := setupHandlerTestDB(t)
	job := models.Job{Name: "house", Stage: models.StageExtracted}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("job: %v", err)
	}
	if err := db.Create(&models.Takeoff{JobID: job.ID, MarkupPercent: 35, Version: 1, Methodology: models.MethodologyLegacy}).Error; err != nil {
		t.Fatalf("takeoff: %v", err)
	}
	h := newTakeoffHandler(db)
	req := httptest.NewRequest(http.MethodGet, "/takeoffs?job_id="+strconv.Itoa(int(job.ID)), nil)
	w := httptest.NewRecorder()
	h.List(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var list struct {
		Items []models.Takeoff `json:"items"`
		Total int64            `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 || list.Total != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
}
