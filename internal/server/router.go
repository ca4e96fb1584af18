package server

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/config"
	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/handlers"
	"github.com/facadeworks/takeoff/internal/httpx"
	"github.com/facadeworks/takeoff/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config, settings config.Settings) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		// Perform a lightweight DB check (SELECT 1) – ignore detailed errors in body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	resolver := detection.NewResolver(
		detection.NewDraftStore(db),
		detection.NewValidatedStore(db),
		detection.NewAIStore(db),
	)
	calcSvc := services.NewCalcService(db, resolver)
	pricingSvc := services.NewPricingService(settings)
	takeoffSvc := services.NewTakeoffService(db, pricingSvc)
	redetectSvc := services.NewRedetectService(db, detection.NewHTTPMLClient(cfg.MLEndpoint))

	// Detection + calc endpoints
	dh := handlers.NewDetectionHandler(db, calcSvc, settings.Confidence)
	ch := handlers.NewCalcHandler(db, calcSvc, redetectSvc)
	mux.Handle("/jobs/detections", method(http.MethodGet, dh.List))
	mux.Handle("/jobs/calc", method(http.MethodPost, ch.Run))
	mux.Handle("/jobs/totals", method(http.MethodGet, ch.Totals))
	mux.Handle("/pages/redetect", method(http.MethodPost, ch.RedetectPage))

	// Takeoff endpoints
	th := handlers.NewTakeoffHandler(db, takeoffSvc, calcSvc)
	mux.Handle("/takeoffs", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			th.List(w, r)
		case http.MethodPost:
			th.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/takeoffs/save", method(http.MethodPost, th.Save))
	mux.Handle("/takeoffs/export", method(http.MethodGet, th.Export))

	// Root placeholder
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, werr := w.Write([]byte("Facade Takeoff API")); werr != nil {
			_ = werr
		}
	})

	return withRecover(withLogging(mux))
}

func method(m string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			w.Header().Set("Allow", m)
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		h(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
