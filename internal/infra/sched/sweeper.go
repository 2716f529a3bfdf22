package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/metrics"
	"course-platform/internal/usecase"
)

// Sweeper periodically scans for stale pending purchases and drives them
// through the reconciliation engine with provider-verification evidence only.
// It never forces: age alone is not proof of payment. Purchases past the long
// threshold get extra re-query attempts before being left pending; anything
// that keeps failing ends up with an operator (there is no dead-letter queue,
// the next sweep is the retry).
type Sweeper struct {
	reconcile usecase.ReconcileUseCase
	purchases repository.PurchaseRepository

	interval  time.Duration // how often to scan
	grace     time.Duration // how old a pending purchase must be to sweep
	longAfter time.Duration // age that earns persistent re-query attempts
	batch     int

	log    *zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(
	reconcile usecase.ReconcileUseCase,
	purchases repository.PurchaseRepository,
	interval, grace, longAfter time.Duration,
	batch int,
	logger *zerolog.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 10 * time.Minute
	}
	if longAfter <= grace {
		longAfter = 24 * time.Hour
	}
	if batch <= 0 {
		batch = 200
	}
	return &Sweeper{
		reconcile: reconcile,
		purchases: purchases,
		interval:  interval,
		grace:     grace,
		longAfter: longAfter,
		batch:     batch,
		log:       logger,
		done:      make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. Calling Start more
// than once has no effect.
func (s *Sweeper) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel
	go s.loop()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("sweeper started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("sweeper stopping")
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(s.ctx, s.interval)
			s.Sweep(runCtx)
			cancel()
		}
	}
}

// Stop cancels the loop and waits for it to finish. Idempotent.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}

// Sweep runs one pass. Exposed so tests and the serve loop share the logic.
// Each purchase is handled in isolation: one failure never aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.grace)
	pending, err := s.purchases.ListPendingOlderThan(ctx, repository.NoTX, cutoff, s.batch)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Error().Err(err).Msg("sweeper: list pending failed")
		return
	}

	metrics.AddSweeperExamined(len(pending))
	for _, p := range pending {
		if err := s.sweepOne(ctx, p.ID, time.Since(p.CreatedAt)); err != nil {
			metrics.IncSweeperPurchaseError()
			s.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("sweeper: purchase not reconciled")
		}
		if ctx.Err() != nil {
			return
		}
	}
	metrics.IncSweeperRun()
}

func (s *Sweeper) sweepOne(ctx context.Context, purchaseID string, age time.Duration) error {
	out, err := s.reconcile.Reconcile(ctx, "sweeper", purchaseID, usecase.Evidence{})
	if err == nil {
		if out == usecase.OutcomeConfirmed {
			s.log.Info().Str("purchase_id", purchaseID).Msg("sweeper: purchase reconciled")
		}
		return nil
	}

	// Verification errors on very old purchases get a few persistent
	// retries before this pass gives up on them.
	if errors.Is(err, domain.ErrVerificationFailed) && age > s.longAfter {
		for attempt := 0; attempt < 3; attempt++ {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
			if _, err = s.reconcile.Reconcile(ctx, "sweeper", purchaseID, usecase.Evidence{}); err == nil {
				return nil
			}
		}
	}
	return err
}
