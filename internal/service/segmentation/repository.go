package segmentation

import (
	"context"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Repository defines the data access contract for segmentations.
// Every read and write is scoped to the tenant's account.
type Repository interface {
	CreateSegmentation(ctx context.Context, s *domain.Segmentation) error
	// UpdateSegmentation rewrites name and query of s.ID under s.AccountID.
	UpdateSegmentation(ctx context.Context, s *domain.Segmentation) error
	// GetSegmentation returns ErrNotFound if the row is missing or foreign.
	GetSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error)
	ListSegmentations(ctx context.Context, tc tenant.Context) ([]domain.Segmentation, error)
	// DeleteSegmentation also removes memberships by cascade.
	DeleteSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) error
}

// SyncEnqueuer queues a membership sync. *jobs.Client implements it.
type SyncEnqueuer interface {
	EnqueueReconcile(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) error
}

// Input holds the writable fields of a segmentation.
type Input struct {
	Name  string `json:"name"`
	Query string `json:"rql_query"`
}
