package campaign

import (
	"errors"

	engine "github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/repository"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrNameRequired     = errors.New("campaign name is required")
	ErrInvalidState     = errors.New("invalid campaign state")
	ErrTemplateRequired = errors.New("message template is required")
	ErrInvalidDelay     = errors.New("message delay must not be negative")
	ErrParentRequired   = errors.New("non-head message needs a parent")
	ErrHeadHasParent    = errors.New("head message cannot have a parent")
	ErrInvalidParams    = errors.New("invalid message params")

	ErrMultipleHeads  = engine.ErrMultipleHeads
	ErrDuplicateChild = engine.ErrDuplicateChild
	ErrOrphanMessage  = engine.ErrOrphanMessage
	ErrInvalidTrigger = engine.ErrInvalidTrigger
)
