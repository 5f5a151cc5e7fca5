package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/giftree/giftree/internal/config"
	"github.com/giftree/giftree/internal/notification"
	"github.com/giftree/giftree/pkg/database"
	"github.com/giftree/giftree/pkg/jsonutil"
	"github.com/giftree/giftree/pkg/messaging"
	"github.com/giftree/giftree/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger("scheduler")

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	// Run migration explicitly
	schema, err := os.ReadFile("internal/notification/schema.sql")
	if err != nil {
		log.Printf("Failed to read schema file: %v", err)
	} else if _, err := db.Exec(string(schema)); err != nil {
		log.Printf("Failed to run migration: %v", err)
	} else {
		log.Println("Schema migration executed successfully")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	mqConfig := messaging.DefaultConfig()
	mqConfig.URL = cfg.RabbitMQURL
	mqClient, err := messaging.NewRabbitMQClient(mqConfig)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqClient.Close()

	if err := mqClient.DeclareTopology(notificationTopology()); err != nil {
		log.Fatalf("Failed to declare broker topology: %v", err)
	}

	// Initialize Tracer
	shutdown, err := observability.InitTracer(context.Background(), observability.Config{
		ServiceName:    "scheduler",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		log.Printf("Failed to init tracer: %v", err)
	} else {
		defer shutdown(context.Background())
	}

	repo := notification.NewRepository(db)
	publisher := notification.NewAMQPPublisher(mqClient)
	emitter := notification.NewEmitter(publisher, logger, cfg.EmitterWorkers, cfg.EmitterBacklog)
	defer emitter.Close()

	guard := notification.NewRedisDayGuard(redisClient)
	scanner := notification.NewScanner(repo, emitter, guard, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err = c.AddFunc(cfg.ScanCron, func() {
		if err := scanner.Run(ctx); err != nil {
			if errors.Is(err, notification.ErrScanAlreadyRan) || errors.Is(err, notification.ErrScanInProgress) {
				return // already logged
			}
			logger.Error("expiry scan failed", "error", err)
		}
	})
	if err != nil {
		log.Fatalf("Invalid scan cron expression %q: %v", cfg.ScanCron, err)
	}
	c.Start()
	defer c.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "active",
			"service": "scheduler",
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("Scheduler ops server starting on %s", cfg.OpsAddr)
		if err := http.ListenAndServe(cfg.OpsAddr, otelhttp.NewHandler(mux, "scheduler-ops")); err != nil {
			log.Fatalf("Ops server failed: %v", err)
		}
	}()

	log.Printf("Expiry scan scheduled at %q", cfg.ScanCron)
	<-ctx.Done()
	log.Println("Scheduler shutting down")
}

func notificationTopology() messaging.Topology {
	return messaging.Topology{
		Exchange:   notification.Exchange,
		Queue:      notification.Queue,
		RoutingKey: notification.RoutingKey,
		DLX:        notification.DeadLetterExchange,
		DLQ:        notification.DeadLetterQueue,
		DLXRouting: notification.DeadLetterRoutingKey,
	}
}
