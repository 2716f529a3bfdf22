package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
)

var _ repository.CourseRepository = (*courseRepo)(nil)

type courseRepo struct{ pool *pgxpool.Pool }

func NewCourseRepo(pool *pgxpool.Pool) *courseRepo {
	return &courseRepo{pool: pool}
}

func (r *courseRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Course, error) {
	const q = `SELECT id, title, price, currency, instructor_id, enrolled_students, created_at, updated_at FROM courses WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	c := &model.Course{}
	if err := row.Scan(&c.ID, &c.Title, &c.Price, &c.Currency, &c.InstructorID, &c.EnrolledStudents, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return c, nil
}
