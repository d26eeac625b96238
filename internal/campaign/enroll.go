package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

// SegmentationReader loads a segmentation under a tenant.
type SegmentationReader interface {
	GetSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error)
}

// ActiveCampaignLister lists the active campaigns attached to a
// segmentation.
type ActiveCampaignLister interface {
	ListActiveBySegmentation(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) ([]domain.Campaign, error)
}

// MemberSyncer brings a segmentation's membership up to date and returns
// the new rows. *segmentation.Syncer implements it.
type MemberSyncer interface {
	Sync(ctx context.Context, tc tenant.Context, seg domain.Segmentation) ([]domain.SegmentMembership, error)
}

// MemberLister reads a segmentation's members and tracks which of them
// have been enrolled into its campaigns.
type MemberLister interface {
	ListVisitorIDs(ctx context.Context, segmentationID uuid.UUID) ([]uuid.UUID, error)
	ListUnenrolled(ctx context.Context, segmentationID uuid.UUID) ([]uuid.UUID, error)
	MarkEnrolled(ctx context.Context, segmentationID uuid.UUID, visitorIDs []uuid.UUID) error
}

// Enroller moves newly matched visitors into the campaigns of their
// segmentation.
type Enroller struct {
	segmentations SegmentationReader
	campaigns     ActiveCampaignLister
	syncer        MemberSyncer
	members       MemberLister
	scheduler     *Scheduler
}

func NewEnroller(segs SegmentationReader, campaigns ActiveCampaignLister, syncer MemberSyncer, members MemberLister, scheduler *Scheduler) *Enroller {
	return &Enroller{
		segmentations: segs,
		campaigns:     campaigns,
		syncer:        syncer,
		members:       members,
		scheduler:     scheduler,
	}
}

// Reconcile syncs one segmentation and schedules the head message of each
// active campaign for members not yet enrolled. Members are marked
// enrolled only after every campaign scheduled them, so a failed run leaves
// them for the retry; sends that did go out are deduplicated by the queue.
// It returns the total number of sends enqueued.
func (e *Enroller) Reconcile(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) (int, error) {
	seg, err := e.segmentations.GetSegmentation(ctx, tc, segmentationID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("segmentation deleted before reconcile", "segmentation_id", segmentationID.String())
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load segmentation: %w", err)
	}

	added, err := e.syncer.Sync(ctx, tc, seg)
	if err != nil {
		return 0, err
	}
	pending, err := e.members.ListUnenrolled(ctx, seg.ID)
	if err != nil {
		return 0, fmt.Errorf("list unenrolled members: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	campaigns, err := e.campaigns.ListActiveBySegmentation(ctx, tc, seg.ID)
	if err != nil {
		return 0, fmt.Errorf("list campaigns: %w", err)
	}
	total := 0
	for _, c := range campaigns {
		n, err := e.scheduler.ScheduleInitialMessage(ctx, tc, c, pending)
		total += n
		if err != nil {
			return total, fmt.Errorf("schedule campaign %s: %w", c.ID, err)
		}
	}
	if err := e.members.MarkEnrolled(ctx, seg.ID, pending); err != nil {
		return total, fmt.Errorf("mark enrolled: %w", err)
	}
	logger.Info("segmentation reconciled",
		"segmentation_id", seg.ID.String(), "new_members", len(added), "enrolled", len(pending),
		"campaigns", len(campaigns), "sends", total)
	return total, nil
}

// Bootstrap schedules the head message for every existing member of the
// campaign's segmentation. It runs when a head is attached to a campaign
// whose segmentation already has members, since those visitors will never
// appear in a sync delta again.
func (e *Enroller) Bootstrap(ctx context.Context, tc tenant.Context, c domain.Campaign) (int, error) {
	if !c.IsActive() {
		return 0, nil
	}
	visitors, err := e.members.ListVisitorIDs(ctx, c.SegmentationID)
	if err != nil {
		return 0, fmt.Errorf("list members: %w", err)
	}
	return e.scheduler.ScheduleInitialMessage(ctx, tc, c, visitors)
}

// Handle runs a reconcile_segmentation job.
func (e *Enroller) Handle(ctx context.Context, tc tenant.Context, job jobs.Job) error {
	var p jobs.ReconcileSegmentation
	if err := job.Decode(&p); err != nil {
		return err
	}
	_, err := e.Reconcile(ctx, tc, p.SegmentationID)
	return err
}
