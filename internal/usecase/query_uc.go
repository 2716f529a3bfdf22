// File: internal/usecase/query_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/adapter"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
)

// ReverifyThrottle bounds how often a pending purchase is lazily re-verified
// when listed; the redis package provides the real one.
type ReverifyThrottle interface {
	Allow(ctx context.Context, purchaseID string) bool
}

type QueryUseCase interface {
	// CourseDetail returns the course plus whether the user holds a
	// succeeded purchase for it.
	CourseDetail(ctx context.Context, courseID, userID string) (*model.Course, bool, error)
	// SucceededPurchases lists the user's succeeded purchases, each
	// enriched with the completion percentage from the progress collaborator.
	SucceededPurchases(ctx context.Context, userID string) ([]*model.PurchaseProgress, error)
	// PendingPurchases lists the user's pending purchases, lazily
	// re-verifying each (throttled) before returning current state.
	PendingPurchases(ctx context.Context, userID string) ([]*model.Purchase, error)
	// InstructorSales aggregates succeeded purchases per course for one
	// instructor: counts, revenue, purchaser list.
	InstructorSales(ctx context.Context, instructorID string) ([]*model.CourseSales, error)
}

var _ QueryUseCase = (*queryUC)(nil)

type queryUC struct {
	purchases repository.PurchaseRepository
	courses   repository.CourseRepository
	enroll    EnrollmentUseCase
	progress  adapter.ProgressTracker
	reconcile ReconcileUseCase
	throttle  ReverifyThrottle
	log       *zerolog.Logger
}

func NewQueryUseCase(
	purchases repository.PurchaseRepository,
	courses repository.CourseRepository,
	enroll EnrollmentUseCase,
	progress adapter.ProgressTracker,
	reconcile ReconcileUseCase,
	throttle ReverifyThrottle,
	logger *zerolog.Logger,
) *queryUC {
	return &queryUC{
		purchases: purchases,
		courses:   courses,
		enroll:    enroll,
		progress:  progress,
		reconcile: reconcile,
		throttle:  throttle,
		log:       logger,
	}
}

func (u *queryUC) CourseDetail(ctx context.Context, courseID, userID string) (*model.Course, bool, error) {
	course, err := u.courses.FindByID(ctx, repository.NoTX, courseID)
	if err != nil {
		return nil, false, err
	}
	purchased := false
	if userID != "" {
		purchased, err = u.enroll.IsEnrolled(ctx, userID, courseID)
		if err != nil {
			return nil, false, err
		}
	}
	return course, purchased, nil
}

func (u *queryUC) SucceededPurchases(ctx context.Context, userID string) ([]*model.PurchaseProgress, error) {
	list, err := u.purchases.ListByUserAndStatus(ctx, repository.NoTX, userID, model.PurchaseStatusSucceeded)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	out := make([]*model.PurchaseProgress, 0, len(list))
	for _, p := range list {
		pp := &model.PurchaseProgress{Purchase: p}
		// Progress is decoration; its collaborator failing must not hide
		// the purchase itself.
		pct, perr := u.progress.CompletionPercent(ctx, userID, p.CourseID)
		if perr != nil {
			logging.With(ctx, u.log).Warn().Err(perr).Str("purchase_id", p.ID).Msg("progress lookup failed")
		} else {
			pp.Progress = pct
		}
		out = append(out, pp)
	}
	return out, nil
}

func (u *queryUC) PendingPurchases(ctx context.Context, userID string) ([]*model.Purchase, error) {
	list, err := u.purchases.ListByUserAndStatus(ctx, repository.NoTX, userID, model.PurchaseStatusPending)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	out := make([]*model.Purchase, 0, len(list))
	for _, p := range list {
		if u.throttle == nil || u.throttle.Allow(ctx, p.ID) {
			if _, rerr := u.reconcile.Reconcile(ctx, "query", p.ID, Evidence{}); rerr != nil {
				logging.With(ctx, u.log).Warn().Err(rerr).Str("purchase_id", p.ID).Msg("lazy re-verify failed")
			}
			// Reload: the re-verify may have landed a terminal status.
			if cur, ferr := u.purchases.FindByID(ctx, repository.NoTX, p.ID); ferr == nil {
				p = cur
			}
		}
		if p.Status == model.PurchaseStatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (u *queryUC) InstructorSales(ctx context.Context, instructorID string) ([]*model.CourseSales, error) {
	return u.purchases.SalesByInstructor(ctx, repository.NoTX, instructorID)
}
