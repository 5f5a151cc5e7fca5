package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/giftree/giftree/internal/config"
	"github.com/giftree/giftree/internal/notification"
	"github.com/giftree/giftree/internal/push"
	"github.com/giftree/giftree/pkg/jsonutil"
	"github.com/giftree/giftree/pkg/messaging"
	"github.com/giftree/giftree/pkg/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.NewLogger("notifications")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := push.NewFCM(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Fatalf("Failed to initialize push gateway: %v", err)
	}

	mqConfig := messaging.DefaultConfig()
	mqConfig.URL = cfg.RabbitMQURL
	mqConfig.PrefetchCount = cfg.ConsumerPrefetch
	mqClient, err := messaging.NewRabbitMQClient(mqConfig)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqClient.Close()

	err = mqClient.DeclareTopology(messaging.Topology{
		Exchange:   notification.Exchange,
		Queue:      notification.Queue,
		RoutingKey: notification.RoutingKey,
		DLX:        notification.DeadLetterExchange,
		DLQ:        notification.DeadLetterQueue,
		DLXRouting: notification.DeadLetterRoutingKey,
	})
	if err != nil {
		log.Fatalf("Failed to declare broker topology: %v", err)
	}

	// Initialize Tracer
	shutdown, err := observability.InitTracer(context.Background(), observability.Config{
		ServiceName:    "notifications",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.OTLPEndpoint,
		Environment:    cfg.Environment,
	})
	if err != nil {
		log.Printf("Failed to init tracer: %v", err)
	} else {
		defer shutdown(context.Background())
	}

	consumer := notification.NewConsumer(gateway, logger,
		time.Duration(cfg.PushTimeoutSeconds)*time.Second)

	go func() {
		log.Println("Notifications service started. Waiting for events...")
		if err := mqClient.ConsumeWithContext(ctx, notification.Queue, consumer.Handle); err != nil {
			log.Printf("Consumer stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "active"
		if !mqClient.IsHealthy() {
			status = "degraded"
		}
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  status,
			"service": "notifications",
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("Notifications ops server starting on %s", cfg.OpsAddr)
		if err := http.ListenAndServe(cfg.OpsAddr, otelhttp.NewHandler(mux, "notifications-ops")); err != nil {
			log.Fatalf("Ops server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Notifications service shutting down")
}
