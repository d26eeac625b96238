package segmentation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	engine "github.com/zntrlhub/engage/internal/segmentation"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Service implements segmentation business logic.
type Service struct {
	repo Repository
	sync SyncEnqueuer
}

// NewService creates a segmentation service.
func NewService(repo Repository, sync SyncEnqueuer) *Service {
	return &Service{repo: repo, sync: sync}
}

func (in Input) validate() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Query = strings.TrimSpace(in.Query)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if err := engine.Validate(in.Query); err != nil {
		return in, err
	}
	return in, nil
}

// Create validates the query, stores the segmentation and queues its
// first sync.
func (s *Service) Create(ctx context.Context, tc tenant.Context, in Input) (domain.Segmentation, error) {
	if err := tc.Validate(); err != nil {
		return domain.Segmentation{}, err
	}
	in, err := in.validate()
	if err != nil {
		return domain.Segmentation{}, err
	}

	seg := domain.Segmentation{ID: uuid.New(), AccountID: tc.AccountID, Name: in.Name, Query: in.Query}
	if err := s.repo.CreateSegmentation(ctx, &seg); err != nil {
		return domain.Segmentation{}, err
	}
	s.queueSync(ctx, tc, seg.ID)
	return seg, nil
}

// Update rewrites name and query and queues a sync against the new query.
func (s *Service) Update(ctx context.Context, tc tenant.Context, id uuid.UUID, in Input) (domain.Segmentation, error) {
	if err := tc.Validate(); err != nil {
		return domain.Segmentation{}, err
	}
	in, err := in.validate()
	if err != nil {
		return domain.Segmentation{}, err
	}

	seg := domain.Segmentation{ID: id, AccountID: tc.AccountID, Name: in.Name, Query: in.Query}
	if err := s.repo.UpdateSegmentation(ctx, &seg); err != nil {
		return domain.Segmentation{}, err
	}
	s.queueSync(ctx, tc, seg.ID)
	return seg, nil
}

// queueSync is best effort: the periodic reconciler picks the segmentation
// up on its next tick if this enqueue fails.
func (s *Service) queueSync(ctx context.Context, tc tenant.Context, id uuid.UUID) {
	if err := s.sync.EnqueueReconcile(ctx, tc, id); err != nil {
		logger.Warn("queue segmentation sync failed", "segmentation_id", id.String(), "error", err.Error())
	}
}

// Get returns one segmentation with its visitor count.
func (s *Service) Get(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error) {
	return s.repo.GetSegmentation(ctx, tc, id)
}

// List returns the tenant's segmentations, newest first.
func (s *Service) List(ctx context.Context, tc tenant.Context) ([]domain.Segmentation, error) {
	segs, err := s.repo.ListSegmentations(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("list segmentations: %w", err)
	}
	return segs, nil
}

// Delete removes the segmentation and its memberships.
func (s *Service) Delete(ctx context.Context, tc tenant.Context, id uuid.UUID) error {
	return s.repo.DeleteSegmentation(ctx, tc, id)
}
