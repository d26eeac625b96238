package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// MessageStore reads a campaign's message nodes.
type MessageStore interface {
	ListByCampaign(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error)
}

// SendEnqueuer schedules one message for one visitor. *jobs.Client
// implements it and returns jobs.ErrDuplicate for a pair it already
// scheduled.
type SendEnqueuer interface {
	EnqueueSend(ctx context.Context, tc tenant.Context, messageID, visitorID uuid.UUID, delay time.Duration) error
}

// Scheduler turns campaign tree positions into delayed send jobs.
type Scheduler struct {
	messages MessageStore
	sends    SendEnqueuer
}

func NewScheduler(messages MessageStore, sends SendEnqueuer) *Scheduler {
	return &Scheduler{messages: messages, sends: sends}
}

// Tree loads and indexes the campaign's messages.
func (s *Scheduler) Tree(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) (*MessageTree, error) {
	msgs, err := s.messages.ListByCampaign(ctx, tc, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load messages for campaign %s: %w", campaignID, err)
	}
	return Build(msgs)
}

// ScheduleInitialMessage enqueues the head message for each visitor. A
// campaign without a head is skipped silently. It returns the number of
// sends enqueued; visitors who already had the head queued are not counted.
func (s *Scheduler) ScheduleInitialMessage(ctx context.Context, tc tenant.Context, c domain.Campaign, visitorIDs []uuid.UUID) (int, error) {
	if !tc.Owns(c.AccountID) {
		return 0, tenant.ErrForeignEntity
	}
	if len(visitorIDs) == 0 {
		return 0, nil
	}
	tree, err := s.Tree(ctx, tc, c.ID)
	if err != nil {
		return 0, err
	}
	head, err := tree.Head()
	if errors.Is(err, ErrNoHeadMessage) {
		logger.Debug("campaign has no head message", "campaign_id", c.ID.String())
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, v := range visitorIDs {
		queued, err := s.enqueue(ctx, tc, head, v)
		if err != nil {
			return n, err
		}
		if queued {
			n++
		}
	}
	logger.Info("scheduled head message",
		"campaign_id", c.ID.String(), "message_id", head.ID.String(), "visitors", n)
	return n, nil
}

// ScheduleChildren enqueues the children of msg that fire on event for one
// visitor. It returns the number of sends enqueued.
func (s *Scheduler) ScheduleChildren(ctx context.Context, tc tenant.Context, msg domain.Message, event domain.TriggerEvent, visitorID uuid.UUID) (int, error) {
	tree, err := s.Tree(ctx, tc, msg.CampaignID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, child := range tree.DescendantsFor(msg.ID, event) {
		queued, err := s.enqueue(ctx, tc, child, visitorID)
		if err != nil {
			return n, err
		}
		if queued {
			n++
		}
	}
	return n, nil
}

// enqueue reports false for a send that was already scheduled, which is
// what a redelivered channel event or a retried reconcile produces.
func (s *Scheduler) enqueue(ctx context.Context, tc tenant.Context, msg domain.Message, visitorID uuid.UUID) (bool, error) {
	err := s.sends.EnqueueSend(ctx, tc, msg.ID, visitorID, msg.Delay())
	if errors.Is(err, jobs.ErrDuplicate) {
		logger.Debug("send already scheduled", "message_id", msg.ID.String(), "visitor_id", visitorID.String())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
