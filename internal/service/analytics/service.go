package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Service implements visitor reporting and event ingest.
type Service struct {
	repo Repository
}

// NewService creates an analytics service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ReportVisitor registers a device with the tenant. A device seen before
// under another account is linked rather than duplicated. Reporting a
// device already linked to the tenant returns the visitor together with
// ErrAlreadyReported.
func (s *Service) ReportVisitor(ctx context.Context, tc tenant.Context, in VisitorInput) (domain.Visitor, error) {
	if err := tc.Validate(); err != nil {
		return domain.Visitor{}, err
	}
	if in.DeviceUUID == uuid.Nil {
		return domain.Visitor{}, ErrDeviceRequired
	}

	v, err := s.repo.FindVisitorByDevice(ctx, in.DeviceUUID)
	if errors.Is(err, ErrNotFound) {
		v = domain.Visitor{
			ID:             uuid.New(),
			DeviceUUID:     in.DeviceUUID,
			Name:           strings.TrimSpace(in.Name),
			WhatsAppNumber: strings.TrimSpace(in.WhatsAppNumber),
		}
		if err := s.repo.CreateVisitor(ctx, tc, &v); err != nil {
			return domain.Visitor{}, err
		}
		logger.Info("visitor reported", "account_id", tc.String(), "visitor_id", v.ID.String())
		return v, nil
	}
	if err != nil {
		return domain.Visitor{}, err
	}

	linked, err := s.repo.LinkVisitor(ctx, tc, v.ID)
	if err != nil {
		return domain.Visitor{}, err
	}
	if !linked {
		return v, ErrAlreadyReported
	}
	logger.Info("visitor linked", "account_id", tc.String(), "visitor_id", v.ID.String())
	return v, nil
}

// RecordEvent appends a behavioral event for a device already reported to
// the tenant.
func (s *Service) RecordEvent(ctx context.Context, tc tenant.Context, in EventInput) (domain.BehavioralEvent, error) {
	if err := tc.Validate(); err != nil {
		return domain.BehavioralEvent{}, err
	}
	if in.DeviceUUID == uuid.Nil {
		return domain.BehavioralEvent{}, ErrDeviceRequired
	}

	v, err := s.repo.FindVisitorByDevice(ctx, in.DeviceUUID)
	if errors.Is(err, ErrNotFound) {
		return domain.BehavioralEvent{}, ErrVisitorNotReported
	}
	if err != nil {
		return domain.BehavioralEvent{}, err
	}
	linked, err := s.repo.IsVisitorLinked(ctx, tc, v.ID)
	if err != nil {
		return domain.BehavioralEvent{}, fmt.Errorf("check visitor link: %w", err)
	}
	if !linked {
		return domain.BehavioralEvent{}, ErrVisitorNotReported
	}

	e := domain.BehavioralEvent{
		ID:            uuid.New(),
		AccountID:     tc.AccountID,
		VisitorID:     v.ID,
		Browser:       in.Browser,
		Device:        in.Device,
		PageName:      strings.TrimSpace(in.PageName),
		PageURL:       in.PageURL,
		ButtonClicked: strings.TrimSpace(in.ButtonClicked),
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		Location:      in.Location,
		Timezone:      in.Timezone,
		TimeStayed:    in.TimeStayed,
	}
	if err := s.repo.InsertEvent(ctx, &e); err != nil {
		return domain.BehavioralEvent{}, err
	}
	return e, nil
}

// PageNames lists the distinct page names seen for the tenant.
func (s *Service) PageNames(ctx context.Context, tc tenant.Context) ([]string, error) {
	return s.repo.DistinctPageNames(ctx, tc)
}

// Buttons lists the distinct clicked buttons seen for the tenant.
func (s *Service) Buttons(ctx context.Context, tc tenant.Context) ([]string, error) {
	return s.repo.DistinctButtons(ctx, tc)
}
