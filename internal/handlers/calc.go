package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/httpx"
	"github.com/facadeworks/takeoff/internal/models"
	"github.com/facadeworks/takeoff/internal/services"
)

// CalcHandler runs and serves the measurement rollups.
type CalcHandler struct {
	DB       *gorm.DB
	Calc     *services.CalcService
	Redetect *services.RedetectService
}

func NewCalcHandler(db *gorm.DB, calc *services.CalcService, redetect *services.RedetectService) *CalcHandler {
	return &CalcHandler{DB: db, Calc: calc, Redetect: redetect}
}

// Run: POST /jobs/calc?job_id=... – recompute every elevation rollup
// and the job totals from the live detections.
func (h *CalcHandler) Run(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryID(r, "job_id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_job_id", nil)
		return
	}
	var job models.Job
	if err := h.DB.First(&job, jobID).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "job_not_found", nil)
		return
	}
	res, err := h.Calc.RunJobCalc(r.Context(), jobID)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_calculate", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"detection_source": res.Source,
		"elevation_calcs":  res.Calcs,
		"totals":           res.Totals,
	})
}

// Totals: GET /jobs/totals?job_id=...
func (h *CalcHandler) Totals(w http.ResponseWriter, r *http.Request) {
	jobID, ok := queryID(r, "job_id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_job_id", nil)
		return
	}
	totals, err := h.Calc.JobTotals(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "totals_not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_load_totals", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

// RedetectPage: POST /pages/redetect?page_id=... – re-run the model,
// soft-delete the page's draft set, insert the fresh one.
func (h *CalcHandler) RedetectPage(w http.ResponseWriter, r *http.Request) {
	pageID, ok := queryID(r, "page_id")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_page_id", nil)
		return
	}
	inserted, err := h.Redetect.Run(r.Context(), pageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.JSONError(w, http.StatusNotFound, "page_not_found", nil)
			return
		}
		httpx.JSONError(w, http.StatusBadGateway, "redetect_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"inserted": len(inserted), "detections": inserted})
}
