package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"course-platform/internal/usecase"
)

// Recheck fires one near-term verification shortly after each checkout
// session is created, to catch fast webhook failures before the periodic
// sweep would. Only the purchase ID crosses the async boundary; the engine
// reloads the record when the timer fires.
type Recheck struct {
	reconcile usecase.ReconcileUseCase
	delay     time.Duration
	log       *zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewRecheck(reconcile usecase.ReconcileUseCase, delay time.Duration, logger *zerolog.Logger) *Recheck {
	if delay <= 0 {
		delay = 2 * time.Minute
	}
	return &Recheck{
		reconcile: reconcile,
		delay:     delay,
		log:       logger,
		timers:    make(map[string]*time.Timer),
	}
}

// Schedule arms a one-shot verify for the purchase. Scheduling the same
// purchase twice resets its timer.
func (r *Recheck) Schedule(purchaseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if t, ok := r.timers[purchaseID]; ok {
		t.Stop()
	}
	r.timers[purchaseID] = time.AfterFunc(r.delay, func() { r.fire(purchaseID) })
}

func (r *Recheck) fire(purchaseID string) {
	r.mu.Lock()
	delete(r.timers, purchaseID)
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.reconcile.Reconcile(ctx, "recheck", purchaseID, usecase.Evidence{}); err != nil {
		// The sweep will try again; this path is best-effort.
		r.log.Warn().Err(err).Str("purchase_id", purchaseID).Msg("post-checkout recheck failed")
	}
}

// Stop disarms all scheduled rechecks. Used for clean shutdown and test
// isolation. Idempotent.
func (r *Recheck) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
