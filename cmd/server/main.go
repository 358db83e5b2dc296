// Package main is the entry point for the settlement engine API server.
// It initializes all dependencies, wires the payment state machine, payout
// fan-out, refund workflow and webhook ingestion, schedules the release
// sweep, and starts the HTTP server.
package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"paylock/internal/clock"
	"paylock/internal/config"
	"paylock/internal/events"
	"paylock/internal/gateway"
	"paylock/internal/handlers"
	"paylock/internal/repositories"
	"paylock/internal/services/payment"
	"paylock/internal/services/payout"
	"paylock/internal/services/refund"
	"paylock/internal/services/sweep"
	"paylock/internal/services/webhook"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	maxIdleConns, _ := strconv.Atoi(config.GetEnv("DB_MAX_IDLE_CONNS", "10"))
	maxOpenConns, _ := strconv.Atoi(config.GetEnv("DB_MAX_OPEN_CONNS", "100"))
	connMaxLifetime, _ := time.ParseDuration(config.GetEnv("DB_CONN_MAX_LIFETIME", "1h"))
	connMaxIdleTime, _ := time.ParseDuration(config.GetEnv("DB_CONN_MAX_IDLE_TIME", "30m"))
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Connected to database")

	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("Failed to close redis connection: %v", err)
			}
		}
	}()

	// Wiring
	clk := clock.New()
	runner := repositories.NewRunner(repositories.DB)
	paymentRepo := repositories.NewPaymentRepository(repositories.DB)
	payoutRepo := repositories.NewPayoutRepository(repositories.DB)
	refundRepo := repositories.NewRefundRepository(repositories.DB)
	eventRepo := repositories.NewWebhookEventRepository(repositories.DB)
	itemRepo := repositories.NewOrderItemRepository(repositories.DB)

	stripeGW := gateway.NewStripeGateway(config.GetEnv("STRIPE_SECRET_KEY", ""))

	bus := events.NewBus()
	analytics := events.NewAnalyticsCollector(
		config.GetIntEnv("ANALYTICS_QUEUE_SIZE", 1024),
		config.GetIntEnv("ANALYTICS_WORKERS", 2),
	)
	analytics.Attach(bus)
	defer analytics.Close()

	paymentSvc := payment.NewService(payment.Config{
		Runner:     runner,
		Payments:   paymentRepo,
		Payouts:    payoutRepo,
		OrderItems: itemRepo,
		Cache:      repositories.CacheService,
		Clock:      clk,
		Bus:        bus,
		HoldPeriod: config.HoldPeriod(),
		FeeBps:     config.PlatformFeeBps(),
	})

	payoutSvc := payout.NewService(payout.Config{
		Runner:   runner,
		Payments: paymentRepo,
		Payouts:  payoutRepo,
		Gateway:  stripeGW,
		Clock:    clk,
		Bus:      bus,
	})

	refundSvc := refund.NewService(refund.Config{
		Runner:   runner,
		Payments: paymentRepo,
		Refunds:  refundRepo,
		Gateway:  stripeGW,
		Clock:    clk,
		Bus:      bus,
	})

	webhookSvc := webhook.NewService(webhook.Config{
		Events:   eventRepo,
		Payments: paymentSvc,
		Payouts:  payoutSvc,
		Refunds:  refundSvc,
		Clock:    clk,
		Secret:   config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
	})

	sweepSvc := sweep.NewService(sweep.Config{
		Payments:   paymentRepo,
		Releaser:   paymentSvc,
		Submitter:  payoutSvc,
		Clock:      clk,
		BatchSize:  config.GetIntEnv("SWEEP_BATCH_SIZE", 100),
		StaleAfter: config.GetDurationEnv("SWEEP_STALE_AFTER", 5*time.Minute),
	})

	// Periodic release sweep. Overlapping runs are safe by construction,
	// so no singleton guard is needed.
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(config.GetDurationEnv("SWEEP_INTERVAL", 10*time.Minute)),
		gocron.NewTask(func() {
			if _, err := sweepSvc.Run(context.Background()); err != nil {
				log.Printf("scheduled sweep failed: %v", err)
			}
		}),
	)
	if err != nil {
		log.Fatalf("Failed to schedule release sweep: %v", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Printf("Failed to shut down scheduler: %v", err)
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use("/api/payments/:id/refunds", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	handlers.SetupRoutes(app,
		handlers.NewWebhookHandler(webhookSvc),
		handlers.NewPaymentHandler(paymentSvc, payoutSvc),
		handlers.NewRefundHandler(refundSvc),
		handlers.NewPayoutHandler(payoutSvc),
	)

	log.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
