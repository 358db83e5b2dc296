// Package main runs one release sweep pass and exits, for external cron or
// operator use. It shares the exact code path of the in-process scheduler,
// so running it alongside a live server is safe.
package main

import (
	"context"
	"log"
	"time"

	"paylock/internal/clock"
	"paylock/internal/config"
	"paylock/internal/gateway"
	"paylock/internal/repositories"
	"paylock/internal/services/payment"
	"paylock/internal/services/payout"
	"paylock/internal/services/sweep"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	clk := clock.New()
	runner := repositories.NewRunner(repositories.DB)
	paymentRepo := repositories.NewPaymentRepository(repositories.DB)
	payoutRepo := repositories.NewPayoutRepository(repositories.DB)
	itemRepo := repositories.NewOrderItemRepository(repositories.DB)

	stripeGW := gateway.NewStripeGateway(config.GetEnv("STRIPE_SECRET_KEY", ""))

	paymentSvc := payment.NewService(payment.Config{
		Runner:     runner,
		Payments:   paymentRepo,
		Payouts:    payoutRepo,
		OrderItems: itemRepo,
		Cache:      repositories.CacheService,
		Clock:      clk,
		HoldPeriod: config.HoldPeriod(),
		FeeBps:     config.PlatformFeeBps(),
	})
	payoutSvc := payout.NewService(payout.Config{
		Runner:   runner,
		Payments: paymentRepo,
		Payouts:  payoutRepo,
		Gateway:  stripeGW,
		Clock:    clk,
	})
	sweepSvc := sweep.NewService(sweep.Config{
		Payments:   paymentRepo,
		Releaser:   paymentSvc,
		Submitter:  payoutSvc,
		Clock:      clk,
		BatchSize:  config.GetIntEnv("SWEEP_BATCH_SIZE", 100),
		StaleAfter: config.GetDurationEnv("SWEEP_STALE_AFTER", 5*time.Minute),
	})

	stats, err := sweepSvc.Run(context.Background())
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	log.Printf("Sweep finished: released=%d skipped=%d failed=%d recovered=%d",
		stats.Released, stats.Skipped, stats.Failed, stats.Recovered)
}
