// Package sweep discovers payments whose hold has matured and releases
// them. The candidate query runs unlocked; each candidate is re-checked
// under its row lock inside the release transition, so overlapping sweeps,
// a second instance, or a racing admin release are all safe and produce at
// most one release per payment.
package sweep

import (
	"context"
	"log"
	"time"

	"paylock/internal/clock"
	"paylock/internal/repositories"
	"paylock/internal/services/payment"
)

// Releaser is the release transition entry point.
type Releaser interface {
	Release(ctx context.Context, paymentID uint, opts payment.ReleaseOptions) (*payment.ReleaseResult, error)
}

// Submitter hands committed payouts to the transfer gateway.
type Submitter interface {
	SubmitForPayment(ctx context.Context, paymentID uint) error
	RecoverStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Stats summarizes one sweep run.
type Stats struct {
	Candidates int
	Released   int
	Skipped    int
	Failed     int
	Recovered  int
}

type Config struct {
	Payments   repositories.PaymentRepository
	Releaser   Releaser
	Submitter  Submitter
	Clock      clock.Clock
	BatchSize  int
	StaleAfter time.Duration
}

type Service struct {
	payments   repositories.PaymentRepository
	releaser   Releaser
	submitter  Submitter
	clock      clock.Clock
	batchSize  int
	staleAfter time.Duration
}

func NewService(cfg Config) *Service {
	if cfg.Payments == nil {
		panic("payment repository is required")
	}
	if cfg.Releaser == nil {
		panic("releaser is required")
	}
	if cfg.Submitter == nil {
		panic("submitter is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	return &Service{
		payments:   cfg.Payments,
		releaser:   cfg.Releaser,
		submitter:  cfg.Submitter,
		clock:      cfg.Clock,
		batchSize:  cfg.BatchSize,
		staleAfter: cfg.StaleAfter,
	}
}

// Run executes one sweep pass. Each candidate is released independently so
// one failure never blocks the rest, and gateway submission only starts
// after the release transaction committed. A follow-up pass resubmits
// payouts stranded pending by an earlier crash.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	candidates, err := s.payments.FindReleasable(ctx, s.clock.Now(), s.batchSize)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(candidates)

	for _, p := range candidates {
		res, err := s.releaser.Release(ctx, p.ID, payment.ReleaseOptions{})
		if err != nil {
			log.Printf("sweep: release of payment %d failed: %v", p.ID, err)
			stats.Failed++
			continue
		}
		if res.AlreadyReleased {
			stats.Skipped++
			continue
		}
		stats.Released++
		if err := s.submitter.SubmitForPayment(ctx, p.ID); err != nil {
			// Payouts stay pending and are picked up by the
			// recovery pass.
			log.Printf("sweep: payout submission for payment %d failed: %v", p.ID, err)
		}
	}

	recovered, err := s.submitter.RecoverStale(ctx, s.staleAfter, s.batchSize)
	if err != nil {
		log.Printf("sweep: pending payout recovery failed: %v", err)
	}
	stats.Recovered = recovered

	log.Printf("sweep: candidates=%d released=%d skipped=%d failed=%d recovered=%d",
		stats.Candidates, stats.Released, stats.Skipped, stats.Failed, stats.Recovered)
	return stats, nil
}
