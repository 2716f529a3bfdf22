// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/adapter"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
	"course-platform/internal/infra/metrics"
)

// Outcome classifies one reconcile attempt.
type Outcome string

const (
	// OutcomeAlreadyTerminal: the purchase was terminal before (or became
	// terminal under) this call; no side effects were applied here.
	OutcomeAlreadyTerminal Outcome = "already_terminal"
	// OutcomeConfirmed: this call applied the succeeded transition and its
	// enrollment side effect.
	OutcomeConfirmed Outcome = "confirmed"
	// OutcomeUnconfirmed: the purchase stays pending. When the accompanying
	// error wraps domain.ErrVerificationFailed the provider could not be
	// asked; a nil error means the provider answered "not paid yet".
	OutcomeUnconfirmed Outcome = "unconfirmed"
)

// Evidence is what a caller brings to a reconcile attempt, in priority
// order: a signature-verified provider event needs no re-query; Force is the
// operator override that bypasses the provider entirely; with neither, the
// engine queries the provider live.
type Evidence struct {
	Event *model.CompletionEvent
	Force bool
}

type ReconcileUseCase interface {
	// Reconcile drives one purchase toward its true payment state. Safe to
	// call concurrently and redundantly from webhook, sweeper and admin
	// paths; duplicate confirmations collapse into OutcomeAlreadyTerminal.
	Reconcile(ctx context.Context, source, purchaseID string, ev Evidence) (Outcome, error)
}

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type reconcileUC struct {
	purchases repository.PurchaseRepository
	provider  adapter.CheckoutProvider
	projector EnrollmentUseCase
	locker    Locker
	queryTTL  time.Duration
	log       *zerolog.Logger
}

// Locker mirrors infra/redis.Locker without importing it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

func NewReconcileUseCase(
	purchases repository.PurchaseRepository,
	provider adapter.CheckoutProvider,
	projector EnrollmentUseCase,
	locker Locker,
	queryTimeout time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &reconcileUC{
		purchases: purchases,
		provider:  provider,
		projector: projector,
		locker:    locker,
		queryTTL:  queryTimeout,
		log:       logger,
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, source, purchaseID string, ev Evidence) (Outcome, error) {
	ctx = logging.WithPurchaseID(ctx, purchaseID)
	start := time.Now()
	out, err := u.reconcile(ctx, purchaseID, ev)
	if err != nil {
		metrics.IncReconcile(source, "error")
	} else {
		metrics.IncReconcile(source, string(out))
	}
	metrics.ObserveReconcile(string(out), time.Since(start).Seconds())
	return out, err
}

func (u *reconcileUC) reconcile(ctx context.Context, purchaseID string, ev Evidence) (Outcome, error) {
	// Always reload by ID: callers may hold a stale copy from before an
	// async boundary.
	p, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	if p.Status.Terminal() {
		return OutcomeAlreadyTerminal, nil
	}

	// Best-effort lock. Losing it is fine: the status CAS below and the
	// idempotent projector keep a concurrent double-confirm harmless.
	if u.locker != nil {
		if token, lockErr := u.locker.TryLock(ctx, "reconcile:"+p.ID, 30*time.Second); lockErr == nil {
			defer func() { _ = u.locker.Unlock(ctx, "reconcile:"+p.ID, token) }()
		} else {
			logging.With(ctx, u.log).Debug().Err(lockErr).Msg("reconcile lock not acquired; proceeding on CAS")
		}
	}

	confirmed, expired, total, refID, err := u.evaluate(ctx, p, ev)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	if expired {
		// Terminal unpaid state: the session will never pay.
		if _, err := u.purchases.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PurchaseStatusFailed, nil, nil, nil); err != nil {
			return OutcomeUnconfirmed, err
		}
		metrics.IncPurchase(string(model.PurchaseStatusFailed))
		logging.With(ctx, u.log).Info().Msg("purchase marked failed (session expired)")
		return OutcomeAlreadyTerminal, nil
	}
	if !confirmed {
		return OutcomeUnconfirmed, nil
	}
	return u.finalize(ctx, p, total, refID)
}

// evaluate resolves the evidence into a confirmation decision.
func (u *reconcileUC) evaluate(ctx context.Context, p *model.Purchase, ev Evidence) (confirmed, expired bool, total int64, refID string, err error) {
	switch {
	case ev.Event != nil:
		if ev.Event.Kind == model.EventSessionExpired {
			return false, true, 0, "", nil
		}
		if ev.Event.Paid {
			return true, false, ev.Event.AmountTotal, ev.Event.RefID, nil
		}
		// Completed-but-unpaid (async payment still settling): stay pending.
		return false, false, 0, "", nil

	case ev.Force:
		// Operator override: no authoritative total, recorded amount stands.
		return true, false, 0, "", nil

	default:
		if p.SessionID == "" {
			return false, false, 0, "", fmt.Errorf("purchase %s has no session ID: %w", p.ID, domain.ErrVerificationFailed)
		}
		qctx, cancel := context.WithTimeout(ctx, u.queryTTL)
		defer cancel()
		st, qerr := u.provider.GetSession(qctx, p.SessionID)
		if qerr != nil {
			// Could not ask the provider. This must never read as
			// "provider says not paid".
			metrics.IncVerificationError()
			return false, false, 0, "", fmt.Errorf("%w: %v", domain.ErrVerificationFailed, qerr)
		}
		if st.Paid {
			return true, false, st.AmountTotal, st.RefID, nil
		}
		if st.Expired {
			return false, true, 0, "", nil
		}
		return false, false, 0, "", nil
	}
}

// finalize applies the succeeded transition: correct the amount from the
// provider's authoritative total, project enrollment, then CAS the status.
//
// Enrollment runs before the status write. A crash between the two leaves a
// pending purchase with enrollment applied; the next reconcile attempt
// re-projects (a no-op, the projector is idempotent) and lands the CAS. The
// two steps are therefore at-least-once, never at-most-once.
func (u *reconcileUC) finalize(ctx context.Context, p *model.Purchase, total int64, refID string) (Outcome, error) {
	log := logging.With(ctx, u.log)

	if total > 0 && total != p.Amount {
		log.Info().Int64("recorded", p.Amount).Int64("authoritative", total).Msg("correcting purchase amount from provider total")
		p.Amount = total
	}
	if refID != "" {
		p.RefID = refID
	}

	if err := u.projector.Apply(ctx, p); err != nil {
		return OutcomeUnconfirmed, fmt.Errorf("apply enrollment for purchase %s: %w", p.ID, err)
	}

	now := time.Now()
	var refPtr *string
	if p.RefID != "" {
		refPtr = &p.RefID
	}
	ok, err := u.purchases.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PurchaseStatusSucceeded, &p.Amount, refPtr, &now)
	if err != nil {
		// A confirmed payment that could not be persisted: the next sweep
		// retries, but make this loud.
		metrics.IncPersistFailure()
		log.Error().Err(err).Msg("persist failed after confirmed transition decision")
		return OutcomeUnconfirmed, errors.Join(domain.ErrOperationFailed, err)
	}
	if !ok {
		// Another path landed the terminal status first.
		return OutcomeAlreadyTerminal, nil
	}

	metrics.IncPurchase(string(model.PurchaseStatusSucceeded))
	metrics.AddPurchaseRevenue(p.Currency, p.Amount)
	log.Info().Str("course_id", p.CourseID).Int64("amount", p.Amount).Msg("purchase succeeded")
	return OutcomeConfirmed, nil
}
