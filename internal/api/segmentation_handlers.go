package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/service/segmentation"
)

// SegmentationAPI handles segmentation endpoints
type SegmentationAPI struct {
	svc SegmentationService
}

// NewSegmentationAPI creates a new segmentation API handler
func NewSegmentationAPI(svc SegmentationService) *SegmentationAPI {
	return &SegmentationAPI{svc: svc}
}

// RegisterRoutes registers segmentation routes under /api
func (api *SegmentationAPI) RegisterRoutes(r chi.Router) {
	r.Route("/segmentations", func(r chi.Router) {
		r.Get("/", api.List)
		r.Post("/", api.Create)
		r.Route("/{segmentationID}", func(r chi.Router) {
			r.Get("/", api.Get)
			r.Put("/", api.Update)
			r.Delete("/", api.Delete)
		})
	})
}

// List returns the account's segmentations with their member counts.
func (api *SegmentationAPI) List(w http.ResponseWriter, r *http.Request) {
	segs, err := api.svc.List(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, segs)
}

// Create validates the RQL query eagerly and queues the first sync.
func (api *SegmentationAPI) Create(w http.ResponseWriter, r *http.Request) {
	var in segmentation.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	seg, err := api.svc.Create(r.Context(), TenantFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, seg)
}

func (api *SegmentationAPI) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "segmentationID"), "segmentation id")
	if !ok {
		return
	}
	seg, err := api.svc.Get(r.Context(), TenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, seg)
}

func (api *SegmentationAPI) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "segmentationID"), "segmentation id")
	if !ok {
		return
	}
	var in segmentation.Input
	if !httputil.Decode(w, r, &in) {
		return
	}
	seg, err := api.svc.Update(r.Context(), TenantFrom(r.Context()), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// Delete removes the segmentation; memberships cascade.
func (api *SegmentationAPI) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "segmentationID"), "segmentation id")
	if !ok {
		return
	}
	if err := api.svc.Delete(r.Context(), TenantFrom(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}
