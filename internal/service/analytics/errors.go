package analytics

import (
	"errors"

	"github.com/zntrlhub/engage/internal/repository"
)

// Sentinel errors for the analytics service layer.
var (
	ErrNotFound           = repository.ErrNotFound
	ErrDeviceRequired     = errors.New("device_uuid is required")
	ErrAlreadyReported    = errors.New("visitor already reported")
	ErrVisitorNotReported = errors.New("visitor is not reported")
)
