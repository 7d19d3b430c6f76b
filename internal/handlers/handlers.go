package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/config"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/database"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/inventory"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/pricing"
	"github.com/connorodea/upscaled-quicklotz-dashboard-sub001/internal/valuation"
)

const maxBodyBytes = 10 << 20

// Pricer runs the valuation pipeline.
type Pricer interface {
	Run(ctx context.Context, rows []inventory.LineItemRow) (*pricing.Report, error)
	Params() valuation.Params
}

// RowSource supplies line items for GET /api/comps.
type RowSource interface {
	LineItems(ctx context.Context) ([]inventory.LineItemRow, error)
}

// Store persists settings and run history.
type Store interface {
	SaveParams(p valuation.Params) error
	ListRuns(limit int) ([]database.ValuationRun, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pricer     Pricer
	rows       RowSource
	store      Store
	configured bool
	cache      string
}

// Options configures a Handler. Rows and Store may be nil.
type Options struct {
	Pricer     Pricer
	Rows       RowSource
	Store      Store
	Configured bool
	Cache      string
}

// NewHandler creates a new handler
func NewHandler(opts Options) *Handler {
	return &Handler{
		pricer:     opts.Pricer,
		rows:       opts.Rows,
		store:      opts.Store,
		configured: opts.Configured,
		cache:      opts.Cache,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.HealthCheck)
	mux.HandleFunc("/api/comps", h.Comps)
	mux.HandleFunc("/api/settings", h.Settings)
	mux.HandleFunc("/api/runs", h.GetRuns)
}

// JSON response helper
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON: %v", err)
	}
}

// Error response helper
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{"success": false, "error": message})
}

// HealthCheck returns API health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"configured": h.configured,
		"cache":      h.cache,
	})
}

// CompsRequest is the body of POST /api/comps
type CompsRequest struct {
	Rows []inventory.LineItemRow `json:"rows"`
}

// Comps prices line items: posted rows, or the configured source on GET.
func (h *Handler) Comps(w http.ResponseWriter, r *http.Request) {
	var rows []inventory.LineItemRow
	switch r.Method {
	case http.MethodGet:
		if h.rows == nil {
			errorResponse(w, http.StatusServiceUnavailable, "No line item source configured")
			return
		}
		var err error
		rows, err = h.rows.LineItems(r.Context())
		if err != nil {
			log.Printf("LineItems error: %v", err)
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
	case http.MethodPost:
		var req CompsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		rows = req.Rows
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "GET or POST required")
		return
	}

	report, err := h.pricer.Run(r.Context(), rows)
	if err != nil {
		log.Printf("Valuation failed: %v", err)
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

// SettingsRequest is the body of PUT /api/settings. Omitted fields keep
// their current value.
type SettingsRequest struct {
	FeeRate          *float64 `json:"feeRate"`
	WholesaleRate    *float64 `json:"wholesaleRate"`
	RoutingThreshold *float64 `json:"routingThreshold"`
}

// Settings reads or updates valuation parameters
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResponse(w, http.StatusOK, map[string]interface{}{"params": h.pricer.Params()})
	case http.MethodPut:
		if h.store == nil {
			errorResponse(w, http.StatusServiceUnavailable, "Settings store not configured")
			return
		}
		var req SettingsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		p := h.pricer.Params()
		if req.FeeRate != nil {
			p.FeeRate = *req.FeeRate
		}
		if req.WholesaleRate != nil {
			p.WholesaleRate = *req.WholesaleRate
		}
		if req.RoutingThreshold != nil {
			p.RoutingThreshold = *req.RoutingThreshold
		}
		if err := config.ValidateParams(p); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := h.store.SaveParams(p); err != nil {
			log.Printf("SaveParams error: %v", err)
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Printf("Valuation params updated: fee=%v wholesale=%v threshold=%v", p.FeeRate, p.WholesaleRate, p.RoutingThreshold)
		jsonResponse(w, http.StatusOK, map[string]interface{}{"params": p})
	default:
		errorResponse(w, http.StatusMethodNotAllowed, "GET or PUT required")
	}
}

// GetRuns returns valuation run history
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	history := []database.ValuationRun{}
	if h.store != nil {
		runs, err := h.store.ListRuns(limit)
		if err != nil {
			log.Printf("ListRuns error: %v", err)
			errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		if runs != nil {
			history = runs
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"total":   len(history),
	})
}
