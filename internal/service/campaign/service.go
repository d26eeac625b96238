package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	engine "github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo      Repository
	segs      SegmentationLookup
	bootstrap Bootstrapper
	params    *engine.ParamRenderer
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, segs SegmentationLookup, bootstrap Bootstrapper) *Service {
	return &Service{repo: repo, segs: segs, bootstrap: bootstrap, params: engine.NewParamRenderer()}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error) {
	return s.repo.GetCampaign(ctx, tc, id)
}

// List returns the tenant's campaigns.
func (s *Service) List(ctx context.Context, tc tenant.Context) ([]domain.Campaign, error) {
	return s.repo.ListCampaigns(ctx, tc)
}

// Create validates and persists a new campaign. State defaults to active.
func (s *Service) Create(ctx context.Context, tc tenant.Context, input CreateInput) (domain.Campaign, error) {
	if err := tc.Validate(); err != nil {
		return domain.Campaign{}, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Campaign{}, ErrNameRequired
	}
	state := input.State
	if state == "" {
		state = domain.CampaignActive
	}
	if !state.Valid() {
		return domain.Campaign{}, ErrInvalidState
	}
	if _, err := s.segs.GetSegmentation(ctx, tc, input.SegmentationID); err != nil {
		return domain.Campaign{}, fmt.Errorf("segmentation %s: %w", input.SegmentationID, err)
	}

	c := domain.Campaign{
		ID:             uuid.New(),
		AccountID:      tc.AccountID,
		SegmentationID: input.SegmentationID,
		Name:           name,
		State:          state,
	}
	if err := s.repo.CreateCampaign(ctx, &c); err != nil {
		return domain.Campaign{}, err
	}
	return c, nil
}

// SetState activates or deactivates a campaign. Sends already queued for
// a deactivated campaign are dropped when they come due.
func (s *Service) SetState(ctx context.Context, tc tenant.Context, id uuid.UUID, state domain.CampaignState) (domain.Campaign, error) {
	if !state.Valid() {
		return domain.Campaign{}, ErrInvalidState
	}
	if err := s.repo.UpdateCampaignState(ctx, tc, id, state); err != nil {
		return domain.Campaign{}, err
	}
	logger.Info("campaign state changed", "campaign_id", id.String(), "state", string(state))
	return s.repo.GetCampaign(ctx, tc, id)
}

// Messages returns the campaign's message nodes after checking they still
// form a valid tree.
func (s *Service) Messages(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.repo.GetCampaign(ctx, tc, campaignID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListByCampaign(ctx, tc, campaignID)
	if err != nil {
		return nil, err
	}
	if _, err := engine.Build(msgs); err != nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	return msgs, nil
}

// AddMessage attaches a node to the campaign tree. Attaching the head of
// an active campaign immediately schedules it for the segmentation's
// existing members.
func (s *Service) AddMessage(ctx context.Context, tc tenant.Context, campaignID uuid.UUID, in MessageInput) (domain.Message, error) {
	c, err := s.repo.GetCampaign(ctx, tc, campaignID)
	if err != nil {
		return domain.Message{}, err
	}

	m := domain.Message{
		ID:           uuid.New(),
		CampaignID:   c.ID,
		ParentID:     in.ParentID,
		Trigger:      in.Trigger,
		DelayMinutes: domain.DefaultDelayMinutes,
		Template:     strings.TrimSpace(in.Template),
		Params:       in.Params,
	}
	if in.DelayMinutes != nil {
		m.DelayMinutes = *in.DelayMinutes
	}
	if err := s.checkMessage(ctx, tc, m); err != nil {
		return domain.Message{}, err
	}

	if err := s.repo.CreateMessage(ctx, &m); err != nil {
		return domain.Message{}, err
	}

	if m.IsHead() {
		n, err := s.bootstrap.Bootstrap(ctx, tc, c)
		if err != nil {
			logger.Error("bootstrap head message failed",
				"campaign_id", c.ID.String(), "message_id", m.ID.String(), "error", err.Error())
		} else if n > 0 {
			logger.Info("head message bootstrapped", "campaign_id", c.ID.String(), "sends", n)
		}
	}
	return m, nil
}

// checkMessage enforces the tree invariants before the insert. The
// repository's unique indexes catch the races this check cannot.
func (s *Service) checkMessage(ctx context.Context, tc tenant.Context, m domain.Message) error {
	if m.Template == "" {
		return ErrTemplateRequired
	}
	if m.DelayMinutes < 0 {
		return ErrInvalidDelay
	}
	if !m.Trigger.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTrigger, m.Trigger)
	}
	if err := s.params.Check(m.Params); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	siblings, err := s.repo.ListByCampaign(ctx, tc, m.CampaignID)
	if err != nil {
		return err
	}
	tree, err := engine.Build(siblings)
	if err != nil {
		return err
	}

	if m.Trigger == domain.TriggerHead {
		if m.ParentID != nil {
			return ErrHeadHasParent
		}
		if _, err := tree.Head(); !errors.Is(err, engine.ErrNoHeadMessage) {
			return ErrMultipleHeads
		}
		return nil
	}

	if m.ParentID == nil {
		return ErrParentRequired
	}
	if _, ok := tree.Message(*m.ParentID); !ok {
		return ErrOrphanMessage
	}
	if _, taken := tree.ChildFor(*m.ParentID, m.Trigger); taken {
		return ErrDuplicateChild
	}
	return nil
}
