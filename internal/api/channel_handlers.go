package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/service/channel"
)

// ChannelAPI handles messaging channel credential and template endpoints
type ChannelAPI struct {
	svc ChannelService
}

// NewChannelAPI creates a new channel API handler
func NewChannelAPI(svc ChannelService) *ChannelAPI {
	return &ChannelAPI{svc: svc}
}

// RegisterRoutes registers channel routes under /api
func (api *ChannelAPI) RegisterRoutes(r chi.Router) {
	r.Route("/channel", func(r chi.Router) {
		r.Get("/credentials", api.GetCredentials)
		r.Put("/credentials", api.PutCredentials)
		r.Get("/templates", api.Templates)
	})
}

func (api *ChannelAPI) GetCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := api.svc.Credentials(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, creds)
}

// PutCredentials saves and probes the credentials. Unreachable
// credentials are still stored, disconnected, and answered with a 400
// carrying the masked record.
func (api *ChannelAPI) PutCredentials(w http.ResponseWriter, r *http.Request) {
	var in channel.CredentialsInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	creds, err := api.svc.UpdateCredentials(r.Context(), TenantFrom(r.Context()), in)
	if errors.Is(err, channel.ErrUnreachable) {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "channel_unreachable", err.Error(), creds)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, creds)
}

// Templates returns the cached template list; it never calls the channel.
func (api *ChannelAPI) Templates(w http.ResponseWriter, r *http.Request) {
	list, err := api.svc.Templates(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, list)
}
