// Package delivery links channel-assigned message ids back to campaign
// sends and advances the campaign tree when status events arrive.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

// ErrDuplicateCorrelation is returned when the external id is already
// recorded for the account.
var ErrDuplicateCorrelation = errors.New("delivery: correlation already recorded")

// CorrelationStore persists correlations. Insert must report a unique
// violation on (account_id, external_id) as ErrDuplicateCorrelation; Find
// returns repository.ErrNotFound for unknown ids.
type CorrelationStore interface {
	InsertCorrelation(ctx context.Context, c domain.DeliveryCorrelation) error
	FindCorrelation(ctx context.Context, accountID uuid.UUID, externalID string) (domain.DeliveryCorrelation, error)
}

type Correlator struct {
	store CorrelationStore
	now   func() time.Time
}

func NewCorrelator(store CorrelationStore) *Correlator {
	return &Correlator{store: store, now: time.Now}
}

// Record stores the mapping externalID -> (messageID, visitorID).
func (c *Correlator) Record(ctx context.Context, tc tenant.Context, externalID string, messageID, visitorID uuid.UUID) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return fmt.Errorf("record correlation: empty external id")
	}
	return c.store.InsertCorrelation(ctx, domain.DeliveryCorrelation{
		ID:         uuid.New(),
		AccountID:  tc.AccountID,
		ExternalID: externalID,
		MessageID:  messageID,
		VisitorID:  visitorID,
		CreatedAt:  c.now().UTC(),
	})
}

// Resolve looks up the send that produced externalID. ok is false when the
// id was never recorded for this account.
func (c *Correlator) Resolve(ctx context.Context, tc tenant.Context, externalID string) (domain.DeliveryCorrelation, bool, error) {
	if err := tc.Validate(); err != nil {
		return domain.DeliveryCorrelation{}, false, err
	}
	corr, err := c.store.FindCorrelation(ctx, tc.AccountID, strings.TrimSpace(externalID))
	if errors.Is(err, repository.ErrNotFound) {
		return domain.DeliveryCorrelation{}, false, nil
	}
	if err != nil {
		return domain.DeliveryCorrelation{}, false, fmt.Errorf("resolve correlation: %w", err)
	}
	return corr, true, nil
}
