// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/adapter"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
)

type CheckoutUseCase interface {
	// Initiate opens a provider checkout session, persists the purchase as
	// pending at the catalog price, and returns the redirect URL.
	Initiate(ctx context.Context, userID, courseID string) (*model.Purchase, string, error)
}

var _ CheckoutUseCase = (*checkoutUC)(nil)

// RecheckScheduler is the near-term post-checkout verify hook; the sched
// package provides the real one.
type RecheckScheduler interface {
	Schedule(purchaseID string)
}

type checkoutUC struct {
	purchases repository.PurchaseRepository
	courses   repository.CourseRepository
	users     repository.UserRepository
	provider  adapter.CheckoutProvider
	recheck   RecheckScheduler
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	purchases repository.PurchaseRepository,
	courses repository.CourseRepository,
	users repository.UserRepository,
	provider adapter.CheckoutProvider,
	recheck RecheckScheduler,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{purchases: purchases, courses: courses, users: users, provider: provider, recheck: recheck, log: logger}
}

func (u *checkoutUC) Initiate(ctx context.Context, userID, courseID string) (*model.Purchase, string, error) {
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, "", err
	}
	course, err := u.courses.FindByID(ctx, repository.NoTX, courseID)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	p := &model.Purchase{
		ID:        ulid.Make().String(),
		UserID:    userID,
		CourseID:  courseID,
		Amount:    course.Price, // catalog price at this moment; corrected on confirmation
		Currency:  course.Currency,
		Status:    model.PurchaseStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sessionID, redirectURL, err := u.provider.CreateSession(ctx, adapter.CreateSessionInput{
		PurchaseID: p.ID,
		UserID:     userID,
		Course:     course,
	})
	if err != nil {
		return nil, "", err
	}
	p.SessionID = sessionID

	if err := u.purchases.Save(ctx, repository.NoTX, p); err != nil {
		return nil, "", err
	}

	if u.recheck != nil {
		// Catches fast webhook failures; fires with the purchase ID only,
		// the record is reloaded at execution time.
		u.recheck.Schedule(p.ID)
	}

	logging.With(ctx, u.log).Info().
		Str("purchase_id", p.ID).
		Str("course_id", courseID).
		Int64("amount", p.Amount).
		Msg("checkout session created")
	return p, redirectURL, nil
}
