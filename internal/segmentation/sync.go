package segmentation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// AudienceResolver is satisfied by *Resolver.
type AudienceResolver interface {
	Resolve(ctx context.Context, tc tenant.Context, query string) ([]uuid.UUID, error)
}

// MembershipStore persists segment memberships. InsertMemberships must be
// get-or-create under concurrency: rows that already exist are skipped
// atomically and only newly inserted rows are returned.
type MembershipStore interface {
	InsertMemberships(ctx context.Context, segmentationID uuid.UUID, visitorIDs []uuid.UUID) ([]domain.SegmentMembership, error)
}

// Syncer reconciles a segmentation's persisted membership with its
// current audience.
type Syncer struct {
	resolver AudienceResolver
	members  MembershipStore
}

// NewSyncer creates a Syncer.
func NewSyncer(resolver AudienceResolver, members MembershipStore) *Syncer {
	return &Syncer{resolver: resolver, members: members}
}

// Sync resolves seg and records any visitor not yet a member. It returns
// exactly the memberships created by this call, so running it twice over
// unchanged events yields an empty delta the second time. Visitors that no
// longer match keep their membership.
func (s *Syncer) Sync(ctx context.Context, tc tenant.Context, seg domain.Segmentation) ([]domain.SegmentMembership, error) {
	if !tc.Owns(seg.AccountID) {
		return nil, fmt.Errorf("sync segmentation %s: %w", seg.ID, tenant.ErrForeignEntity)
	}

	matched, err := s.resolver.Resolve(ctx, tc, seg.Query)
	if err != nil {
		return nil, fmt.Errorf("sync segmentation %s: %w", seg.ID, err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	created, err := s.members.InsertMemberships(ctx, seg.ID, matched)
	if err != nil {
		return nil, fmt.Errorf("sync segmentation %s: insert memberships: %w", seg.ID, err)
	}

	logger.Debug("segmentation synced",
		"account_id", tc.AccountID,
		"segmentation_id", seg.ID,
		"query_hash", HashQuery(tc.AccountID, seg.Query)[:12],
		"matched", len(matched),
		"new_members", len(created))
	return created, nil
}
