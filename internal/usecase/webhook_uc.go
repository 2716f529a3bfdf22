// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
	"course-platform/internal/infra/metrics"
)

type WebhookUseCase interface {
	// HandleEvent resolves a verified provider event to a purchase and
	// reconciles it. Returns domain.ErrWebhookUnresolved when no purchase
	// can be matched; the transport layer still acknowledges such events.
	HandleEvent(ctx context.Context, ev *model.CompletionEvent) (Outcome, error)
}

var _ WebhookUseCase = (*webhookUC)(nil)

type webhookUC struct {
	purchases repository.PurchaseRepository
	reconcile ReconcileUseCase
	log       *zerolog.Logger
}

func NewWebhookUseCase(purchases repository.PurchaseRepository, reconcile ReconcileUseCase, logger *zerolog.Logger) *webhookUC {
	return &webhookUC{purchases: purchases, reconcile: reconcile, log: logger}
}

func (u *webhookUC) HandleEvent(ctx context.Context, ev *model.CompletionEvent) (Outcome, error) {
	p, strategy, err := u.resolve(ctx, ev)
	if err != nil {
		return OutcomeUnconfirmed, err
	}
	metrics.IncWebhookMatch(strategy)

	log := logging.With(ctx, u.log).With().Str("purchase_id", p.ID).Str("session_id", ev.SessionID).Str("match", strategy).Logger()

	if strategy != matchExact {
		// The stored external ID was wrong or truncated; the event carries
		// the authoritative one.
		if err := u.purchases.UpdateSessionID(ctx, repository.NoTX, p.ID, ev.SessionID); err != nil {
			return OutcomeUnconfirmed, err
		}
		log.Warn().Msg("purchase session ID corrected from webhook event")
	}
	if strategy == matchLatestPending {
		log.Warn().Msg("purchase resolved via latest-pending heuristic; verify attribution")
	}

	return u.reconcile.Reconcile(ctx, "webhook", p.ID, Evidence{Event: ev})
}

const (
	matchExact         = "exact"
	matchAffix         = "affix"
	matchMetadata      = "metadata"
	matchLatestPending = "latest_pending"
)

// resolve walks the lookup cascade: exact session ID, truncation-tolerant
// affix match, session metadata (purchase ID, then course+user+pending), and
// finally the newest pending purchase as a logged last resort.
func (u *webhookUC) resolve(ctx context.Context, ev *model.CompletionEvent) (*model.Purchase, string, error) {
	p, err := u.purchases.FindBySessionID(ctx, repository.NoTX, ev.SessionID)
	if err == nil {
		return p, matchExact, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	p, err = u.purchases.FindBySessionAffix(ctx, repository.NoTX, ev.SessionID)
	if err == nil {
		return p, matchAffix, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", err
	}

	if ev.PurchaseID != "" {
		p, err = u.purchases.FindByID(ctx, repository.NoTX, ev.PurchaseID)
		if err == nil {
			return p, matchMetadata, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}
	if ev.UserID != "" && ev.CourseID != "" {
		p, err = u.purchases.FindPendingByUserAndCourse(ctx, repository.NoTX, ev.UserID, ev.CourseID)
		if err == nil {
			return p, matchMetadata, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	// Degraded path: can misattribute under concurrent checkouts. Only
	// reached when the event carried no usable metadata at all.
	if ev.UserID == "" && ev.CourseID == "" && ev.PurchaseID == "" {
		p, err = u.purchases.FindLatestPending(ctx, repository.NoTX)
		if err == nil {
			return p, matchLatestPending, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}

	return nil, "", domain.ErrWebhookUnresolved
}
