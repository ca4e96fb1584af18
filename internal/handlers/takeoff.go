package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/httpx"
	"github.com/facadeworks/takeoff/internal/models"
	"github.com/facadeworks/takeoff/internal/services"
)

// TakeoffHandler owns the estimate surface: list/create, the
// save-and-recompute endpoint, and the numeric export contract.
type TakeoffHandler struct {
	DB   *gorm.DB
	Svc  *services.TakeoffService
	Calc *services.CalcService
}

func NewTakeoffHandler(db *gorm.DB, svc *services.TakeoffService, calc *services.CalcService) *TakeoffHandler {
	return &TakeoffHandler{DB: db, Svc: svc, Calc: calc}
}

// List: GET /takeoffs?job_id=...
func (h *TakeoffHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	dbq := h.DB.Model(&models.Takeoff{})
	if jobID, ok := queryID(r, "job_id"); ok {
		dbq = dbq.Where("job_id = ?", jobID)
	}
	var total int64
	dbq.Count(&total)
	var takeoffs []models.Takeoff
	if err := dbq.Preload("Sections.Items").Order("id desc").Limit(limit).Offset(offset).Find(&takeoffs).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_takeoffs", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": takeoffs, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /takeoffs – JSON {"job_id": ...}
func (h *TakeoffHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID uint `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	tk, err := h.Svc.CreateForJob(req.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "job_not_found", nil)
			return
		}
		if errors.Is(err, services.ErrJobNotExtracted) {
			httpx.JSONError(w, http.StatusBadRequest, "job_not_extracted", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_create_takeoff", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, tk)
}

// Save: POST /takeoffs/save – replace line items and recompute totals.
// The request must carry the version the caller loaded; a mismatch is
// a 409 and the caller retries with fresh data.
func (h *TakeoffHandler) Save(w http.ResponseWriter, r *http.Request) {
	type itemReq struct {
		ItemType          string  `json:"item_type"`
		Description       string  `json:"description"`
		Quantity          float64 `json:"quantity"`
		Unit              string  `json:"unit"`
		MaterialUnitCost  float64 `json:"material_unit_cost"`
		LaborUnitCost     float64 `json:"labor_unit_cost"`
		EquipmentUnitCost float64 `json:"equipment_unit_cost"`
		PresentationGroup string  `json:"presentation_group"`
	}
	type sectionReq struct {
		Name  string    `json:"name"`
		Items []itemReq `json:"items"`
	}
	var req struct {
		TakeoffID     uint         `json:"takeoff_id"`
		Version       int          `json:"version"`
		MarkupPercent *float64     `json:"markup_percent"`
		Methodology   string       `json:"methodology"`
		Sections      []sectionReq `json:"sections"`
	}
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(ct, "application/json") {
		httpx.JSONError(w, http.StatusUnsupportedMediaType, "json_required", nil)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if req.TakeoffID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"takeoff_id": "required"})
		return
	}

	in := services.SaveInput{
		TakeoffID:     req.TakeoffID,
		Version:       req.Version,
		MarkupPercent: req.MarkupPercent,
		Methodology:   req.Methodology,
	}
	for _, sec := range req.Sections {
		si := services.SectionInput{Name: sec.Name}
		for _, it := range sec.Items {
			si.Items = append(si.Items, models.LineItem{
				ItemType:          it.ItemType,
				Description:       it.Description,
				Quantity:          it.Quantity,
				Unit:              it.Unit,
				MaterialUnitCost:  it.MaterialUnitCost,
				LaborUnitCost:     it.LaborUnitCost,
				EquipmentUnitCost: it.EquipmentUnitCost,
				PresentationGroup: it.PresentationGroup,
			})
		}
		in.Sections = append(in.Sections, si)
	}

	tk, totals, err := h.Svc.SaveAndRecompute(in, services.PricingOptions{})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStaleTakeoff):
			httpx.JSONError(w, http.StatusConflict, "takeoff_version_stale", nil)
		case errors.Is(err, gorm.ErrRecordNotFound):
			httpx.JSONError(w, http.StatusNotFound, "takeoff_not_found", nil)
		default:
			httpx.JSONError(w, http.StatusInternalServerError, "failed_to_save_takeoff", nil)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"takeoff":          tk,
		"totals":           totals,
		"warnings":         totals.Warnings,
		"defaults_applied": totals.DefaultsApplied,
	})
}

// Export: GET /takeoffs/export?id=... – the numeric contract handed to
// the estimate exporter. The exporter must reproduce these figures
// verbatim; styling is its problem, arithmetic is ours.
func (h *TakeoffHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var tk models.Takeoff
	if err := h.DB.Preload("Sections.Items").First(&tk, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_takeoff", nil)
		return
	}

	var squares float64
	totals, totalsErr := h.Calc.JobTotals(r.Context(), tk.JobID)
	switch {
	case totalsErr == nil:
		squares = totals.SidingSquares
	case errors.Is(totalsErr, gorm.ErrRecordNotFound):
		log.Printf("takeoff export %d: job %d has no totals row, siding_squares=0", tk.ID, tk.JobID)
	default:
		log.Printf("takeoff export %d: totals lookup failed: %v", tk.ID, totalsErr)
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"document_id":      uuid.NewString(),
		"takeoff_id":       tk.ID,
		"job_id":           tk.JobID,
		"methodology":      tk.Methodology,
		"material_cost":    tk.MaterialCost,
		"labor_cost":       tk.LaborCost,
		"overhead_cost":    tk.OverheadCost,
		"subtotal":         tk.Subtotal,
		"markup_percent":   tk.MarkupPercent,
		"markup_amount":    tk.MarkupAmount,
		"insurance_amount": tk.InsuranceAmount,
		"grand_total":      tk.GrandTotal,
		"siding_squares":   squares,
		"sections":         tk.Sections,
	})
}
