package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"seller-portal/internal/auth"
	"seller-portal/internal/config"
	"seller-portal/internal/invoice"
	"seller-portal/internal/jobs"
	"seller-portal/internal/kafka"
	"seller-portal/internal/logger"
	"seller-portal/internal/order"
	"seller-portal/internal/order/db"
	"seller-portal/internal/order/order_api"
	"seller-portal/internal/settings"
	"seller-portal/internal/sse"
	"seller-portal/internal/utils"
	"seller-portal/internal/workflow"
)

func deadlinePolicy(cfg config.WorkflowConfig, log *logger.Logger) workflow.DeadlinePolicy {
	if cfg.DeadlinePolicy == "business_hours" {
		log.Info("WORKFLOW", fmt.Sprintf("Admin deadline counts %s of business hours %02d:00-%02d:00 %s",
			cfg.PlanWindow, cfg.BusinessStart, cfg.BusinessEnd, cfg.TimeZone))
		return workflow.NewBusinessHoursPolicy(cfg.PlanWindow, cfg.BusinessStart, cfg.BusinessEnd, cfg.BusinessDays, cfg.TimeZone)
	}
	log.Info("WORKFLOW", fmt.Sprintf("Admin deadline is a flat %s after acceptance", cfg.PlanWindow))
	return workflow.FlatPolicy{Window: cfg.PlanWindow}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, "seller-portal")
	defer log.Close()
	log.SetLevel(cfg.Log.Level)
	log.Info("APP", "Starting Seller Portal initialization")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.OpenAndMigrate(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		client, err := auth.InitializeRedis(cfg.Redis, log)
		if err != nil {
			log.Warn("REDIS", "Continuing without Redis: token cache and settings invalidation disabled")
		} else {
			redisClient = client
			defer redisClient.Close()
		}
	}

	verifier, err := auth.NewVerifier(ctx, cfg.Auth, redisClient, log)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to set up token verification: %v", err))
	}

	hub := sse.NewHub()
	publishers := order.Publishers{hub}

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.WorkflowEvents, cfg.Kafka.Topics.OrderIngested}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.WorkflowEvents, log)
		defer producer.Close()
		publishers = append(publishers, producer)
		log.Info("KAFKA", fmt.Sprintf("Publishing workflow events to %s", cfg.Kafka.Topics.WorkflowEvents))
	} else {
		log.Warn("KAFKA", "Kafka disabled, workflow events stay in-process")
	}

	engine := workflow.NewEngine(cfg.Workflow.AcceptWindow, deadlinePolicy(cfg.Workflow, log), cfg.Invoice.BaseURL)
	orderService := order.NewOrderService(store, engine, publishers, invoice.NewRenderer(cfg.Invoice.QRCode), log)

	if cfg.Kafka.Enabled && cfg.Kafka.ConsumeIngestion {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.OrderIngested, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx, kafka.IngestionHandler(orderService.IngestOrder)); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Ingestion consumer stopped: %v", err))
			}
		}()
	}

	if cfg.Jobs.OverdueAlerts {
		var dedup jobs.Deduper = jobs.NewMemoryDeduper()
		if redisClient != nil {
			dedup = &jobs.RedisDeduper{Client: redisClient, Prefix: "sellerportal:alerts:overdue:"}
		}
		job := jobs.NewOverdueAlertJob(orderService, dedup, cfg.Jobs.OverdueSchedule, log)
		if redisClient != nil {
			job.Lock = &jobs.RedisLock{Client: redisClient, Prefix: "sellerportal:locks:"}
		}
		if err := job.Start(); err != nil {
			log.Error("JOBS", fmt.Sprintf("Overdue alerts disabled: %v", err))
		} else {
			defer job.Stop()
		}
	}

	var notifier settings.Notifier
	if redisClient != nil {
		notifier = &settings.RedisNotifier{Client: redisClient}
	}
	publication := settings.NewPublicationSettings(&settings.Store{Bun: store.Bun}, cfg.Settings.CacheTTL, notifier, log)
	if redisClient != nil {
		if _, err := settings.Watch(ctx, redisClient, log, publication.Invalidate); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Settings invalidation disabled: %v", err))
		}
	}

	orderHandler := order_api.NewHandler(orderService, hub, log)
	settingsHandler := settings.NewHandler(publication, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.MethodNotAllowed(utils.MethodNotAllowed)
	r.NotFound(utils.NotFound)
	r.Use(utils.RequestLogger(log))

	// --- Public Routes ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	// --- Protected Routes ---
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))
		orderHandler.RegisterRoutes(r)
		settingsHandler.RegisterRoutes(r)
	})
	log.Info("ROUTER", "Order and admin routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		// cancelling ctx ends open event streams on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Seller Portal running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Seller Portal shutdown complete")
	}
}
