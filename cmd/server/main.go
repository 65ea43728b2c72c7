package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/prospect-pipeline/internal/api"
	"github.com/ignite/prospect-pipeline/internal/audit"
	"github.com/ignite/prospect-pipeline/internal/config"
	"github.com/ignite/prospect-pipeline/internal/events"
	"github.com/ignite/prospect-pipeline/internal/repository/postgres"
	"github.com/ignite/prospect-pipeline/internal/service/pipeline"
	"github.com/ignite/prospect-pipeline/internal/service/sequence"
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
	log.Println("Starting prospect-pipeline API server...")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
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
	brands := postgres.NewBrandRepo(db)

	var archive *audit.Archive
	var s3Client *s3.Client
	if cfg.Archive.Bucket != "" {
		s3Client = s3.NewFromConfig(awsCfg)
		archive = audit.NewArchive(s3Client, cfg.Archive.Bucket)
		log.Printf("Memory archive enabled (bucket %s)", cfg.Archive.Bucket)
	}
	auditLogger := audit.NewLogger(store.Memory, archive)

	if cfg.Events.QueueURL == "" {
		log.Println("WARNING: no event queue configured; re-runs and mark-ready will fail")
	}
	var bus events.Bus = events.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Events.QueueURL)

	pipelineSvc := pipeline.NewService(store, bus, auditLogger)
	sequenceSvc := sequence.NewService(store.Sequences, bus, auditLogger)

	handlers := api.NewHandlers(pipelineSvc, sequenceSvc, store.Memory, brands, settings)
	health := api.NewHealthChecker(db, redisClient, s3Client, cfg.Archive.Bucket)
	server := api.NewServer(handlers, health, cfg.Server.DevMode)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("API server listening on %s", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("Server stopped")
}
