package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/service/campaign"
)

// CampaignAPI handles campaign and message tree endpoints
type CampaignAPI struct {
	svc CampaignService
}

// NewCampaignAPI creates a new campaign API handler
func NewCampaignAPI(svc CampaignService) *CampaignAPI {
	return &CampaignAPI{svc: svc}
}

// RegisterRoutes registers campaign routes under /api
func (api *CampaignAPI) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns", func(r chi.Router) {
		r.Get("/", api.List)
		r.Post("/", api.Create)
		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", api.Get)
			r.Patch("/state", api.SetState)
			r.Get("/messages", api.Messages)
			r.Post("/messages", api.AddMessage)
		})
	})
}

// StateRequest is the body of PATCH /campaigns/{id}/state.
type StateRequest struct {
	State domain.CampaignState `json:"state"`
}

func (api *CampaignAPI) List(w http.ResponseWriter, r *http.Request) {
	list, err := api.svc.List(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, list)
}

func (api *CampaignAPI) Create(w http.ResponseWriter, r *http.Request) {
	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := api.svc.Create(r.Context(), TenantFrom(r.Context()), in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (api *CampaignAPI) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "campaignID"), "campaign id")
	if !ok {
		return
	}
	c, err := api.svc.Get(r.Context(), TenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

// SetState activates ("A") or deactivates ("I") a campaign.
func (api *CampaignAPI) SetState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "campaignID"), "campaign id")
	if !ok {
		return
	}
	var req StateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := api.svc.SetState(r.Context(), TenantFrom(r.Context()), id, req.State)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (api *CampaignAPI) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "campaignID"), "campaign id")
	if !ok {
		return
	}
	msgs, err := api.svc.Messages(r.Context(), TenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, msgs)
}

// AddMessage attaches a node to the campaign tree. A head attachment also
// schedules the segmentation's current members.
func (api *CampaignAPI) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "campaignID"), "campaign id")
	if !ok {
		return
	}
	var in campaign.MessageInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	m, err := api.svc.AddMessage(r.Context(), TenantFrom(r.Context()), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, m)
}
