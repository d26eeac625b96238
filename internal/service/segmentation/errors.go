package segmentation

import (
	"errors"

	"github.com/zntrlhub/engage/internal/repository"
	engine "github.com/zntrlhub/engage/internal/segmentation"
)

var (
	ErrNotFound     = repository.ErrNotFound
	ErrInvalidQuery = engine.ErrInvalidQuery
	ErrNameRequired = errors.New("segmentation name is required")
)
