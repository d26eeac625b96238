package channel

import (
	"errors"

	"github.com/zntrlhub/engage/internal/repository"
)

// Sentinel errors for the channel service layer.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrEndpointRequired = errors.New("api endpoint is required")
	ErrAPIKeyRequired   = errors.New("api key is required")
	ErrUnreachable      = errors.New("channel endpoint unreachable with these credentials")
	ErrTooManyPages     = errors.New("template listing did not terminate")
)
