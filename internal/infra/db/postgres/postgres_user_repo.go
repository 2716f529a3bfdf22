package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT id, email, name, enrolled_courses, registered_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.EnrolledCourses, &u.RegisteredAt); err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}
