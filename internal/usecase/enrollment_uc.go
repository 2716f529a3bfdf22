// File: internal/usecase/enrollment_uc.go
package usecase

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/infra/logging"
)

// EnrollmentUseCase projects the side effect of a successful purchase:
// membership in the user's enrolled set and the course's student set.
// Apply is idempotent by construction (set-union semantics in the store),
// which is what lets the reconciliation engine run at-least-once.
type EnrollmentUseCase interface {
	Apply(ctx context.Context, p *model.Purchase) error
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

var _ EnrollmentUseCase = (*enrollmentUC)(nil)

type enrollmentUC struct {
	enrollments repository.EnrollmentRepository
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewEnrollmentUseCase(enrollments repository.EnrollmentRepository, tm repository.TransactionManager, logger *zerolog.Logger) *enrollmentUC {
	return &enrollmentUC{enrollments: enrollments, tm: tm, log: logger}
}

func (u *enrollmentUC) Apply(ctx context.Context, p *model.Purchase) error {
	// Membership is written on both sides (user row and course row); a
	// transaction keeps the two arrays from drifting apart.
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.enrollments.AddEnrollment(ctx, tx, p.UserID, p.CourseID)
	})
	if err != nil {
		return err
	}
	logging.With(ctx, u.log).Debug().
		Str("user_id", p.UserID).
		Str("course_id", p.CourseID).
		Msg("enrollment projected")
	return nil
}

func (u *enrollmentUC) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return u.enrollments.IsEnrolled(ctx, repository.NoTX, userID, courseID)
}
