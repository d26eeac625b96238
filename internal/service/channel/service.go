package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gateway "github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// MaxTemplatePages bounds a refresh against a channel that never returns
// an empty page.
const MaxTemplatePages = 200

// Service implements credential and template management.
type Service struct {
	repo    Repository
	gateway gateway.Gateway
	refresh RefreshEnqueuer
}

// NewService creates a channel service.
func NewService(repo Repository, gw gateway.Gateway, refresh RefreshEnqueuer) *Service {
	return &Service{repo: repo, gateway: gw, refresh: refresh}
}

// Credentials returns the account's credentials with the key masked.
func (s *Service) Credentials(ctx context.Context, tc tenant.Context) (domain.ChannelCredentials, error) {
	creds, err := s.repo.GetCredentials(ctx, tc)
	if err != nil {
		return domain.ChannelCredentials{}, err
	}
	return creds.Masked(), nil
}

// UpdateCredentials stores the credentials together with the result of a
// connectivity probe. Unreachable credentials are still saved, marked
// disconnected, and reported with ErrUnreachable. Reachable ones queue a
// full template refresh.
func (s *Service) UpdateCredentials(ctx context.Context, tc tenant.Context, in CredentialsInput) (domain.ChannelCredentials, error) {
	if err := tc.Validate(); err != nil {
		return domain.ChannelCredentials{}, err
	}
	endpoint := strings.TrimRight(strings.TrimSpace(in.Endpoint), "/")
	key := strings.TrimSpace(in.APIKey)
	if endpoint == "" {
		return domain.ChannelCredentials{}, ErrEndpointRequired
	}
	if key == "" {
		return domain.ChannelCredentials{}, ErrAPIKeyRequired
	}

	creds := domain.ChannelCredentials{AccountID: tc.AccountID, Endpoint: endpoint, APIKey: key}
	creds.Connected = s.gateway.Probe(ctx, creds)
	if err := s.repo.SaveCredentials(ctx, &creds); err != nil {
		return domain.ChannelCredentials{}, err
	}
	if !creds.Connected {
		logger.Warn("channel credentials unreachable", "account_id", tc.String(), "endpoint", endpoint)
		return creds.Masked(), ErrUnreachable
	}

	if err := s.refresh.EnqueueTemplateRefresh(ctx, tc); err != nil {
		logger.Warn("queue template refresh failed", "account_id", tc.String(), "error", err.Error())
	}
	logger.Info("channel connected", "account_id", tc.String(), "endpoint", endpoint)
	return creds.Masked(), nil
}

// Templates returns the cached templates.
func (s *Service) Templates(ctx context.Context, tc tenant.Context) ([]domain.Template, error) {
	return s.repo.ListTemplates(ctx, tc)
}

// RefreshTemplates pulls every page from the channel and replaces the
// cache in one step. A disconnected account is skipped. It returns the
// number of templates stored.
func (s *Service) RefreshTemplates(ctx context.Context, tc tenant.Context) (int, error) {
	creds, err := s.repo.GetCredentials(ctx, tc)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load credentials: %w", err)
	}
	if !creds.Connected {
		logger.Debug("skipping template refresh", "account_id", tc.String(), "error", gateway.ErrGatewayUnavailable.Error())
		return 0, nil
	}

	var all []domain.Template
	for page := 1; ; page++ {
		if page > MaxTemplatePages {
			return 0, jobs.Permanent(ErrTooManyPages)
		}
		batch, err := s.gateway.Templates(ctx, creds, page)
		if err != nil {
			return 0, fmt.Errorf("fetch templates page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, t := range batch {
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
			t.AccountID = tc.AccountID
			all = append(all, t)
		}
	}

	if err := s.repo.ReplaceTemplates(ctx, tc, all); err != nil {
		return 0, err
	}
	logger.Info("templates refreshed", "account_id", tc.String(), "count", len(all))
	return len(all), nil
}

// Handle runs a refresh_templates job.
func (s *Service) Handle(ctx context.Context, tc tenant.Context, job jobs.Job) error {
	var p jobs.RefreshTemplates
	if err := job.Decode(&p); err != nil {
		return err
	}
	_, err := s.RefreshTemplates(ctx, tc)
	return err
}
