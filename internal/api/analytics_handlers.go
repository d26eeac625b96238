package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/service/analytics"
)

// StatusAlreadyReported is returned for a repeated visitor report.
const StatusAlreadyReported = http.StatusAlreadyReported

// AnalyticsAPI handles the tracking snippet's visitor and event endpoints
type AnalyticsAPI struct {
	svc AnalyticsService
}

// NewAnalyticsAPI creates a new analytics API handler
func NewAnalyticsAPI(svc AnalyticsService) *AnalyticsAPI {
	return &AnalyticsAPI{svc: svc}
}

// RegisterRoutes registers analytics routes under /api
func (api *AnalyticsAPI) RegisterRoutes(r chi.Router) {
	r.Post("/visitors", api.ReportVisitor)
	r.Route("/analytics", func(r chi.Router) {
		r.Post("/", api.RecordEvent)
		r.Get("/page-names", api.PageNames)
		r.Get("/buttons", api.Buttons)
	})
}

// decodeLenient is Decode without the unknown-field check. The tracking
// snippet sends fields the server does not store.
func decodeLenient(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes)).Decode(dst); err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// ReportVisitor creates or links a visitor by device UUID.
func (api *AnalyticsAPI) ReportVisitor(w http.ResponseWriter, r *http.Request) {
	var in analytics.VisitorInput
	if !decodeLenient(w, r, &in) {
		return
	}
	v, err := api.svc.ReportVisitor(r.Context(), TenantFrom(r.Context()), in)
	switch {
	case errors.Is(err, analytics.ErrAlreadyReported):
		httputil.JSON(w, StatusAlreadyReported, v)
	case err != nil:
		writeError(w, err)
	default:
		httputil.Created(w, v)
	}
}

func (api *AnalyticsAPI) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var in analytics.EventInput
	if !decodeLenient(w, r, &in) {
		return
	}
	ev, err := api.svc.RecordEvent(r.Context(), TenantFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, ev)
}

func (api *AnalyticsAPI) PageNames(w http.ResponseWriter, r *http.Request) {
	names, err := api.svc.PageNames(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, names)
}

func (api *AnalyticsAPI) Buttons(w http.ResponseWriter, r *http.Request) {
	names, err := api.svc.Buttons(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, names)
}
