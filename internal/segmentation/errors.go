package segmentation

import "github.com/zntrlhub/engage/internal/rql"

// ErrInvalidQuery is returned when a filter cannot be parsed or refers to
// fields and values the event store does not have. It is the same sentinel
// the rql parser wraps, so errors.Is works across both layers.
var ErrInvalidQuery = rql.ErrInvalidQuery
