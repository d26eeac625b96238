package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// WebhookAPI receives delivery events pushed by the messaging channel.
// The account comes from the path: the channel cannot send headers.
type WebhookAPI struct {
	intake EventIntake
}

// NewWebhookAPI creates a new webhook handler
func NewWebhookAPI(intake EventIntake) *WebhookAPI {
	return &WebhookAPI{intake: intake}
}

// RegisterRoutes registers the webhook outside the tenant middleware.
func (api *WebhookAPI) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/wati/{accountID}", api.Receive)
}

// Receive acknowledges an event once it is durably queued. Duplicates and
// unsupported event types are acknowledged too so the channel stops
// redelivering them.
func (api *WebhookAPI) Receive(w http.ResponseWriter, r *http.Request) {
	tc, err := tenant.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_account", "invalid account id", nil)
		return
	}
	var ev domain.ChannelEvent
	if !decodeLenient(w, r, &ev) {
		return
	}
	outcome, err := api.intake.Accept(r.Context(), tc, ev)
	if err != nil {
		logger.Warn("webhook event rejected", "account_id", tc.String(), "event_type", string(ev.EventType), "error", err.Error())
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": string(outcome)})
}
