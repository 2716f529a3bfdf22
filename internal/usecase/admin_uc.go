// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
)

// Capability states what this deployment allows operators to do. It is
// decided once at construction (from the deployment environment) instead of
// consulting ambient flags at call time.
type Capability struct {
	// AllowForceAll permits the blanket force over all pending purchases.
	// Single-purchase force is always available.
	AllowForceAll bool
}

// FixAllReport summarizes a bulk remediation pass.
type FixAllReport struct {
	Examined int
	Fixed    int
	Errors   int
}

type AdminUseCase interface {
	ListPurchases(ctx context.Context, f repository.PurchaseFilter) ([]*model.Purchase, error)
	// FixPurchase reconciles one purchase; force bypasses provider
	// verification and is a manual remediation tool, not a routine path.
	FixPurchase(ctx context.Context, purchaseID string, force bool) (Outcome, error)
	// FixAllPending reconciles every pending purchase older than the floor.
	// With force set it requires the AllowForceAll capability.
	FixAllPending(ctx context.Context, olderThan time.Duration, force bool) (*FixAllReport, error)
}

var _ AdminUseCase = (*adminUC)(nil)

type adminUC struct {
	purchases repository.PurchaseRepository
	reconcile ReconcileUseCase
	cap       Capability
	log       *zerolog.Logger
}

func NewAdminUseCase(purchases repository.PurchaseRepository, reconcile ReconcileUseCase, cap Capability, logger *zerolog.Logger) *adminUC {
	return &adminUC{purchases: purchases, reconcile: reconcile, cap: cap, log: logger}
}

func (u *adminUC) ListPurchases(ctx context.Context, f repository.PurchaseFilter) ([]*model.Purchase, error) {
	list, err := u.purchases.List(ctx, repository.NoTX, f)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return list, nil
}

func (u *adminUC) FixPurchase(ctx context.Context, purchaseID string, force bool) (Outcome, error) {
	if force {
		logging.With(ctx, u.log).Warn().Str("purchase_id", purchaseID).Msg("operator force-fixing purchase without provider confirmation")
	}
	return u.reconcile.Reconcile(ctx, "admin", purchaseID, Evidence{Force: force})
}

func (u *adminUC) FixAllPending(ctx context.Context, olderThan time.Duration, force bool) (*FixAllReport, error) {
	if force && !u.cap.AllowForceAll {
		return nil, domain.ErrForbidden
	}

	cutoff := time.Now().Add(-olderThan)
	pending, err := u.purchases.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 0)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	report := &FixAllReport{Examined: len(pending)}
	for _, p := range pending {
		out, rerr := u.reconcile.Reconcile(ctx, "admin", p.ID, Evidence{Force: force})
		if rerr != nil {
			report.Errors++
			logging.With(ctx, u.log).Error().Err(rerr).Str("purchase_id", p.ID).Msg("fix-all: reconcile failed")
			continue
		}
		if out == OutcomeConfirmed {
			report.Fixed++
		}
	}
	logging.With(ctx, u.log).Info().
		Int("examined", report.Examined).
		Int("fixed", report.Fixed).
		Int("errors", report.Errors).
		Bool("force", force).
		Msg("fix-all pass complete")
	return report, nil
}
