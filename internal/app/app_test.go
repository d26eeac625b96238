package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/config"
	"github.com/zntrlhub/engage/internal/jobs"
)

func TestRegistryCoversEveryKind(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := New(config.Default(), db, nil)
	kinds := a.Registry().Kinds()
	assert.ElementsMatch(t, []jobs.Kind{
		jobs.KindSendMessage,
		jobs.KindChannelEvent,
		jobs.KindReconcileSegmentation,
		jobs.KindRefreshTemplates,
	}, kinds)

	svc := a.Services()
	assert.NotNil(t, svc.Segmentations)
	assert.NotNil(t, svc.Campaigns)
	assert.NotNil(t, svc.Channel)
	assert.NotNil(t, svc.Analytics)
	assert.NotNil(t, svc.Inbound)
	assert.NotNil(t, svc.Health)
}

func TestOpenRedis(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	client, err = OpenRedis(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()

	_, err = OpenRedis(context.Background(), config.RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

func TestOpenDBRequiresURL(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{})
	assert.Error(t, err)
}
