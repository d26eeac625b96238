package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/inbound"
	"github.com/zntrlhub/engage/internal/pkg/httputil"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/segmentation"
	"github.com/zntrlhub/engage/internal/service/analytics"
	"github.com/zntrlhub/engage/internal/service/campaign"
	"github.com/zntrlhub/engage/internal/service/channel"
	"github.com/zntrlhub/engage/internal/tenant"
)

// badRequestErrors are validation failures whose message is safe to echo.
var badRequestErrors = []error{
	campaign.ErrNameRequired,
	campaign.ErrInvalidState,
	campaign.ErrTemplateRequired,
	campaign.ErrInvalidDelay,
	campaign.ErrParentRequired,
	campaign.ErrHeadHasParent,
	campaign.ErrInvalidParams,
	campaign.ErrInvalidTrigger,
	campaign.ErrOrphanMessage,
	channel.ErrEndpointRequired,
	channel.ErrAPIKeyRequired,
	analytics.ErrDeviceRequired,
	inbound.ErrInvalidEvent,
}

// writeError maps a service error onto the HTTP error envelope. Anything
// unrecognised becomes a sanitized 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segmentation.ErrInvalidQuery):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_query", err.Error(), nil)
	case errors.Is(err, repository.ErrNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, campaign.ErrMultipleHeads), errors.Is(err, campaign.ErrDuplicateChild):
		httputil.ErrorWithCode(w, http.StatusConflict, "tree_conflict", err.Error(), nil)
	case errors.Is(err, channel.ErrUnreachable):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "channel_unreachable", err.Error(), nil)
	case errors.Is(err, analytics.ErrVisitorNotReported):
		httputil.ErrorWithCode(w, http.StatusNotFound, "visitor_not_reported", err.Error(), nil)
	case errors.Is(err, tenant.ErrMissingTenant):
		httputil.ErrorWithCode(w, http.StatusUnauthorized, "missing_account", err.Error(), nil)
	case errors.Is(err, tenant.ErrForeignEntity):
		httputil.ErrorWithCode(w, http.StatusNotFound, "not_found", "resource not found", nil)
	case isBadRequest(err):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
	default:
		httputil.InternalError(w, err)
	}
}

func isBadRequest(err error) bool {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// pathID parses a UUID URL parameter, writing a 400 when it is malformed.
func pathID(w http.ResponseWriter, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_id", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
