package repository

import (
	"context"

	"course-platform/internal/domain/model"
)

type CourseRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.Course, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, qx Tx, id string) (*model.User, error)
}

// EnrollmentRepository owns the symmetric user<->course membership sets.
// AddEnrollment uses set-insert semantics: calling it again for the same
// pair is a no-op.
type EnrollmentRepository interface {
	AddEnrollment(ctx context.Context, qx Tx, userID, courseID string) error
	IsEnrolled(ctx context.Context, qx Tx, userID, courseID string) (bool, error)
}
