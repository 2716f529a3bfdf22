package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-platform/internal/domain"
	"course-platform/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

// enrollmentRepo maintains the symmetric user<->course membership arrays.
// Both updates guard with NOT (... = ANY(...)), so a second call for the
// same pair changes nothing.
type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

func (r *enrollmentRepo) AddEnrollment(ctx context.Context, qx repository.Tx, userID, courseID string) error {
	if userID == "" || courseID == "" {
		return domain.ErrInvalidArgument
	}
	const qUser = `
UPDATE users
   SET enrolled_courses = array_append(enrolled_courses, $2)
 WHERE id = $1 AND NOT ($2 = ANY(enrolled_courses));`
	const qCourse = `
UPDATE courses
   SET enrolled_students = array_append(enrolled_students, $1)
 WHERE id = $2 AND NOT ($1 = ANY(enrolled_students));`

	if _, err := execSQL(ctx, r.pool, qx, qUser, userID, courseID); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if _, err := execSQL(ctx, r.pool, qx, qCourse, userID, courseID); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *enrollmentRepo) IsEnrolled(ctx context.Context, qx repository.Tx, userID, courseID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1 AND $2 = ANY(enrolled_courses));`
	row, err := pickRow(ctx, r.pool, qx, q, userID, courseID)
	if err != nil {
		return false, err
	}
	var enrolled bool
	if err := row.Scan(&enrolled); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return enrolled, nil
}
