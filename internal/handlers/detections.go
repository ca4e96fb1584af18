package handlers

import (
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/config"
	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/httpx"
	"github.com/facadeworks/takeoff/internal/models"
	"github.com/facadeworks/takeoff/internal/services"
)

// DetectionHandler serves the resolved annotation set for a job's
// pages, tagged with the winning tier for provenance. Detections below
// the confidence threshold are dimmed or hidden per the settings.
type DetectionHandler struct {
	DB         *gorm.DB
	Calc       *services.CalcService
	Confidence config.ConfidenceSettings
}

func NewDetectionHandler(db *gorm.DB, calc *services.CalcService, conf config.ConfidenceSettings) *DetectionHandler {
	return &DetectionHandler{DB: db, Calc: calc, Confidence: conf}
}

// List: GET /jobs/detections?job_id=...&page_type=elevation
func (h *DetectionHandler) List(w http.ResponseWriter, r *http.Request) {
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
	pageType := r.URL.Query().Get("page_type")
	if pageType == "" {
		pageType = models.PageTypeElevation
	}
	resolved, err := h.Calc.ResolveDetections(r.Context(), jobID, pageType)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_resolve_detections", nil)
		return
	}
	type bandedDetection struct {
		models.Detection
		Band detection.Band `json:"band"`
	}
	pages := make([]map[string]any, 0, len(resolved.Pages))
	for _, p := range resolved.Pages {
		banded := make([]bandedDetection, 0, len(p.Detections))
		for _, d := range p.Detections {
			band := detection.Classify(d.Confidence, h.Confidence.Min, h.Confidence.ShowLow)
			if band == detection.BandHidden {
				continue
			}
			banded = append(banded, bandedDetection{Detection: d, Band: band})
		}
		pages = append(pages, map[string]any{
			"page":       p.Page,
			"detections": banded,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"detection_source": resolved.Source,
		"pages":            pages,
	})
}

func queryID(r *http.Request, key string) (uint, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return uint(n), true
}
