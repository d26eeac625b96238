package delivery_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

type memCorrelations struct {
	mu   sync.Mutex
	rows map[string]domain.DeliveryCorrelation
}

func newMemCorrelations() *memCorrelations {
	return &memCorrelations{rows: map[string]domain.DeliveryCorrelation{}}
}

func (m *memCorrelations) InsertCorrelation(_ context.Context, c domain.DeliveryCorrelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := c.AccountID.String() + "/" + c.ExternalID
	if _, ok := m.rows[key]; ok {
		return delivery.ErrDuplicateCorrelation
	}
	m.rows[key] = c
	return nil
}

func (m *memCorrelations) FindCorrelation(_ context.Context, accountID uuid.UUID, externalID string) (domain.DeliveryCorrelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[accountID.String()+"/"+externalID]
	if !ok {
		return domain.DeliveryCorrelation{}, repository.ErrNotFound
	}
	return c, nil
}

func TestCorrelator_RecordAndResolve(t *testing.T) {
	c := delivery.NewCorrelator(newMemCorrelations())
	tc := tenant.New(uuid.New())
	msgID, visitorID := uuid.New(), uuid.New()

	require.NoError(t, c.Record(context.Background(), tc, "wamid.1", msgID, visitorID))

	got, ok, err := c.Resolve(context.Background(), tc, "wamid.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msgID, got.MessageID)
	assert.Equal(t, visitorID, got.VisitorID)
	assert.Equal(t, tc.AccountID, got.AccountID)
}

func TestCorrelator_Duplicate(t *testing.T) {
	c := delivery.NewCorrelator(newMemCorrelations())
	tc := tenant.New(uuid.New())

	require.NoError(t, c.Record(context.Background(), tc, "wamid.1", uuid.New(), uuid.New()))
	err := c.Record(context.Background(), tc, "wamid.1", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, delivery.ErrDuplicateCorrelation)

	// The same external id under another account is a different row.
	assert.NoError(t, c.Record(context.Background(), tenant.New(uuid.New()), "wamid.1", uuid.New(), uuid.New()))
}

func TestCorrelator_UnknownAndForeign(t *testing.T) {
	c := delivery.NewCorrelator(newMemCorrelations())
	owner := tenant.New(uuid.New())
	require.NoError(t, c.Record(context.Background(), owner, "wamid.9", uuid.New(), uuid.New()))

	_, ok, err := c.Resolve(context.Background(), owner, "wamid.unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Resolve(context.Background(), tenant.New(uuid.New()), "wamid.9")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorrelator_Validation(t *testing.T) {
	c := delivery.NewCorrelator(newMemCorrelations())
	assert.ErrorIs(t, c.Record(context.Background(), tenant.Context{}, "x", uuid.New(), uuid.New()), tenant.ErrMissingTenant)
	assert.Error(t, c.Record(context.Background(), tenant.New(uuid.New()), "  ", uuid.New(), uuid.New()))
}
