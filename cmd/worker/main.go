package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/zntrlhub/engage/internal/app"
	"github.com/zntrlhub/engage/internal/config"
	"github.com/zntrlhub/engage/internal/inbound"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	log.Println("Starting engage worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.ConfigureLogging(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := app.OpenDB(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	rdb, err := app.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	if rdb == nil {
		log.Println("Redis not configured: reconciler uses postgres advisory locks")
	}

	a := app.New(cfg, db, rdb)
	defer a.Close()

	pool := a.Pool()
	if err := pool.Start(); err != nil {
		log.Fatalf("Failed to start job pool: %v", err)
	}

	queueRecovery := a.QueueRecovery()
	go queueRecovery.Start(ctx)

	var reconciler interface{ Stop() }
	if cfg.Reconciler.Enabled {
		r := a.Reconciler()
		if err := r.Start(); err != nil {
			log.Fatalf("Failed to start reconciler: %v", err)
		}
		reconciler = r
	} else {
		log.Println("Reconciler disabled")
	}

	var consumer *inbound.Consumer
	if cfg.Inbound.SQSEnabled() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Inbound.AWSRegion))
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		consumer = inbound.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Inbound.SQSQueueURL, a.Intake)
		consumer.Start(ctx)
		log.Printf("SQS event consumer started for %s", cfg.Inbound.SQSQueueURL)
	}

	log.Println("Worker running...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	if consumer != nil {
		consumer.Stop()
	}
	if reconciler != nil {
		reconciler.Stop()
	}
	pool.Stop()
	cancel()
	log.Println("Worker stopped")
}
