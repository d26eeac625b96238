package channel

import (
	"context"

	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Repository stores credentials and cached templates.
type Repository interface {
	// GetCredentials returns ErrNotFound when the account never connected.
	GetCredentials(ctx context.Context, tc tenant.Context) (domain.ChannelCredentials, error)
	SaveCredentials(ctx context.Context, c *domain.ChannelCredentials) error
	// ReplaceTemplates swaps the whole cache atomically.
	ReplaceTemplates(ctx context.Context, tc tenant.Context, templates []domain.Template) error
	ListTemplates(ctx context.Context, tc tenant.Context) ([]domain.Template, error)
}

// RefreshEnqueuer queues a template refresh. *jobs.Client implements it.
type RefreshEnqueuer interface {
	EnqueueTemplateRefresh(ctx context.Context, tc tenant.Context) error
}

// CredentialsInput holds the writable credential fields.
type CredentialsInput struct {
	Endpoint string `json:"api_endpoint"`
	APIKey   string `json:"api_key"`
}
