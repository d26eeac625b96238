// Package app wires repositories, services and job handlers together for
// the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zntrlhub/engage/internal/api"
	engine "github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/channel/wati"
	"github.com/zntrlhub/engage/internal/config"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/inbound"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/repository/postgres"
	"github.com/zntrlhub/engage/internal/segmentation"
	"github.com/zntrlhub/engage/internal/service/analytics"
	campaignsvc "github.com/zntrlhub/engage/internal/service/campaign"
	channelsvc "github.com/zntrlhub/engage/internal/service/channel"
	segmentationsvc "github.com/zntrlhub/engage/internal/service/segmentation"
	"github.com/zntrlhub/engage/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// App holds the wired object graph.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Store *jobs.Store
	Jobs  *jobs.Client

	Segmentations *segmentationsvc.Service
	Campaigns     *campaignsvc.Service
	Channel       *channelsvc.Service
	Analytics     *analytics.Service
	Intake        *inbound.Intake

	Enroller   *engine.Enroller
	Sender     *engine.SendHandler
	Dispatcher *delivery.Dispatcher

	segRepo     *postgres.SegmentationRepo
	channelRepo *postgres.ChannelRepo
}

// ConfigureLogging applies the logging section.
func ConfigureLogging(cfg config.LoggingConfig) {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.ShouldRedactPII())
}

// OpenDB connects to Postgres and verifies the connection.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis returns nil when no Redis URL is configured.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New builds the object graph. rdb may be nil.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	segRepo := postgres.NewSegmentationRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	channelRepo := postgres.NewChannelRepo(db)
	visitorRepo := postgres.NewVisitorRepo(db)
	correlationRepo := postgres.NewCorrelationRepo(db)

	store := jobs.NewStore(db)
	client := jobs.NewClient(store)
	gateway := wati.NewClient(wati.WithReadRetries(cfg.Gateway.ReadRetries))

	scheduler := engine.NewScheduler(campaignRepo, client)
	syncer := segmentation.NewSyncer(segmentation.NewResolver(segRepo), segRepo)
	enroller := engine.NewEnroller(segRepo, campaignRepo, syncer, segRepo, scheduler)
	correlator := delivery.NewCorrelator(correlationRepo)

	return &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Store:  store,
		Jobs:   client,

		Segmentations: segmentationsvc.NewService(segRepo, client),
		Campaigns:     campaignsvc.NewService(campaignRepo, segRepo, enroller),
		Channel:       channelsvc.NewService(channelRepo, gateway, client),
		Analytics:     analytics.NewService(visitorRepo),
		Intake:        inbound.NewIntake(rdb, client, cfg.Inbound.DedupTTL()),

		Enroller: enroller,
		Sender: engine.NewSendHandler(engine.SendDeps{
			Credentials:  channelRepo,
			Campaigns:    campaignRepo,
			Messages:     campaignRepo,
			Members:      segRepo,
			Visitors:     visitorRepo,
			Gateway:      gateway,
			Correlations: correlator,
		}),
		Dispatcher: delivery.NewDispatcher(correlator, campaignRepo, scheduler),

		segRepo:     segRepo,
		channelRepo: channelRepo,
	}
}

// Services returns the HTTP layer's dependencies.
func (a *App) Services() api.Services {
	return api.Services{
		Segmentations: a.Segmentations,
		Campaigns:     a.Campaigns,
		Channel:       a.Channel,
		Analytics:     a.Analytics,
		Inbound:       a.Intake,
		Health:        api.NewHealthChecker(a.DB, a.Redis),
	}
}

// Registry maps every job kind to its handler.
func (a *App) Registry() *jobs.Registry {
	return jobs.NewRegistry().
		Register(jobs.KindSendMessage, a.Sender).
		Register(jobs.KindChannelEvent, a.Dispatcher).
		Register(jobs.KindReconcileSegmentation, a.Enroller).
		Register(jobs.KindRefreshTemplates, a.Channel)
}

// Pool builds the job pool from the worker section.
func (a *App) Pool() *worker.Pool {
	w := a.Config.Worker
	return worker.NewPool(a.Store, a.Registry(), worker.PoolConfig{
		Workers:      w.Concurrency,
		PollInterval: w.PollInterval(),
		BatchSize:    w.BatchSize,
		JobTimeout:   w.JobTimeout(),
	})
}

// Reconciler builds the periodic segmentation and template reconciler.
func (a *App) Reconciler() *worker.Reconciler {
	r := worker.NewReconciler(a.DB, a.segRepo, a.channelRepo, a.Jobs)
	if a.Redis != nil {
		r.SetRedisClient(a.Redis)
	}
	r.SetInterval(a.Config.Reconciler.Interval())
	return r
}

// QueueRecovery builds the stale job recovery worker.
func (a *App) QueueRecovery() *worker.QueueRecoveryWorker {
	w := a.Config.Worker
	return worker.NewQueueRecoveryWorker(a.Store, w.RecoveryInterval(), w.StaleAfter(), w.RetainCompleted())
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
