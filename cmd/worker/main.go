package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/prospect-pipeline/internal/audit"
	"github.com/ignite/prospect-pipeline/internal/config"
	"github.com/ignite/prospect-pipeline/internal/delivery"
	"github.com/ignite/prospect-pipeline/internal/events"
	"github.com/ignite/prospect-pipeline/internal/generation"
	"github.com/ignite/prospect-pipeline/internal/pkg/distlock"
	"github.com/ignite/prospect-pipeline/internal/repository/postgres"
	"github.com/ignite/prospect-pipeline/internal/stage"
	"github.com/ignite/prospect-pipeline/internal/templates"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Println("Starting prospect-pipeline worker...")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.Events.QueueURL == "" {
		log.Fatal("EVENTS_QUEUE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("ping database: %v", err)
	}
	cancel()
	log.Println("Connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Events.Region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	store := postgres.NewStore(db)
	settings := postgres.NewSettingsRepo(db)

	var archive *audit.Archive
	if cfg.Archive.Bucket != "" {
		archive = audit.NewArchive(s3.NewFromConfig(awsCfg), cfg.Archive.Bucket)
	}
	auditLogger := audit.NewLogger(store.Memory, archive)

	sqsClient := sqs.NewFromConfig(awsCfg)
	bus := events.NewPublisher(sqsClient, cfg.Events.QueueURL)

	var gen generation.Generator = generation.NewBedrockGenerator(
		bedrockruntime.NewFromConfig(awsCfg), cfg.Generation.ModelID)
	gen = generation.NewRateLimitedGenerator(gen, redisClient, cfg.Generation.RatePerMinute)

	dispatcher := delivery.NewSESDispatcher(
		sesv2.NewFromConfig(awsCfg), cfg.Delivery.FromName, cfg.Delivery.FromEmail)

	locks := func(key string, ttl time.Duration) distlock.Lock {
		return distlock.NewRedisLock(redisClient, key, ttl)
	}

	research := stage.NewResearchStage(store, gen, bus, auditLogger)
	sequencing := stage.NewSequencingStage(store, gen, templates.NewRenderer(), bus, auditLogger)
	deployment := stage.NewDeploymentStage(store, dispatcher, locks,
		delivery.NewWebhookNotifier(nil), settings, auditLogger)

	consumer := events.NewConsumer(sqsClient, cfg.Events.QueueURL)
	consumer.Handle(events.LeadReadyForDeployment, research.Handle)
	consumer.Handle(events.LeadResearchComplete, sequencing.Handle)
	consumer.Handle(events.LeadSequenceReady, deployment.Handle)

	ctx, cancelRun := context.WithCancel(context.Background())
	consumer.Start(ctx)
	log.Println("Consumer started; processing pipeline events")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down...", sig)

	cancelRun()
	consumer.Stop()
	log.Println("Worker stopped")
}
