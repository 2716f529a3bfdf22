package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseCols = `id, user_id, course_id, session_id, amount, currency, ref_id, status, created_at, updated_at, paid_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	p := &model.Purchase{}
	if err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.SessionID, &p.Amount, &p.Currency, &p.RefID, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *purchaseRepo) Save(ctx context.Context, qx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (` + purchaseCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  session_id=$4, amount=$5, currency=$6, ref_id=$7, status=$8, updated_at=$10, paid_at=$11;`

	_, err := execSQL(ctx, r.pool, qx, q, p.ID, p.UserID, p.CourseID, p.SessionID, p.Amount, p.Currency, p.RefID, p.Status, p.CreatedAt, p.UpdatedAt, p.PaidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *purchaseRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Purchase, error) {
	q := `SELECT ` + purchaseCols + ` FROM purchases WHERE id=$1`
	if _, ok := qx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, qx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindBySessionID(ctx context.Context, qx repository.Tx, sessionID string) (*model.Purchase, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	const q = `SELECT ` + purchaseCols + ` FROM purchases WHERE session_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

// FindBySessionAffix tolerates truncated session IDs on either side: the
// stored value may be a prefix of the authoritative one or vice versa.
// Pending rows are preferred, newest first.
func (r *purchaseRepo) FindBySessionAffix(ctx context.Context, qx repository.Tx, sessionID string) (*model.Purchase, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	const q = `
SELECT ` + purchaseCols + ` FROM purchases
WHERE session_id <> '' AND ($1 LIKE session_id || '%' OR session_id LIKE $1 || '%')
ORDER BY (status = 'pending') DESC, id DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindPendingByUserAndCourse(ctx context.Context, qx repository.Tx, userID, courseID string) (*model.Purchase, error) {
	const q = `
SELECT ` + purchaseCols + ` FROM purchases
WHERE user_id=$1 AND course_id=$2 AND status='pending'
ORDER BY id DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q, userID, courseID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) FindLatestPending(ctx context.Context, qx repository.Tx) (*model.Purchase, error) {
	// ULIDs sort by creation time, so MAX(id) is the newest pending row.
	const q = `SELECT ` + purchaseCols + ` FROM purchases WHERE status='pending' ORDER BY id DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, qx, q)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *purchaseRepo) UpdateSessionID(ctx context.Context, qx repository.Tx, id, sessionID string) error {
	const q = `UPDATE purchases SET session_id=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, qx, q, id, sessionID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// UpdateStatusIfPending atomically transitions status only when the current
// status is still 'pending'. Amount and refID overwrite only when non-nil.
func (r *purchaseRepo) UpdateStatusIfPending(
	ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time,
) (bool, error) {
	const q = `
    UPDATE purchases
       SET status = $2,
           amount = COALESCE($3, amount),
           ref_id = COALESCE($4, ref_id),
           paid_at = COALESCE($5, paid_at),
           updated_at = NOW()
     WHERE id = $1
       AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, qx, q, id, string(status), amount, refID, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *purchaseRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + purchaseCols + ` FROM purchases WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, qx, q, olderThan, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *purchaseRepo) ListByUserAndStatus(ctx context.Context, qx repository.Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error) {
	const q = `SELECT ` + purchaseCols + ` FROM purchases WHERE user_id=$1 AND status=$2 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, qx, q, userID, string(status))
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *purchaseRepo) List(ctx context.Context, qx repository.Tx, f repository.PurchaseFilter) ([]*model.Purchase, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + purchaseCols + ` FROM purchases
WHERE ($1 = '' OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
ORDER BY created_at DESC
LIMIT $3;`
	var olderThan *time.Time
	if !f.OlderThan.IsZero() {
		olderThan = &f.OlderThan
	}
	rows, err := queryRows(ctx, r.pool, qx, q, string(f.Status), olderThan, limit)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (r *purchaseRepo) SalesByInstructor(ctx context.Context, qx repository.Tx, instructorID string) ([]*model.CourseSales, error) {
	const q = `
SELECT c.id, c.title,
       COUNT(p.id),
       COALESCE(SUM(p.amount), 0),
       COALESCE(ARRAY_AGG(p.user_id) FILTER (WHERE p.id IS NOT NULL), '{}')
  FROM courses c
  LEFT JOIN purchases p ON p.course_id = c.id AND p.status = 'succeeded'
 WHERE c.instructor_id = $1
 GROUP BY c.id, c.title
 ORDER BY c.title;`
	rows, err := queryRows(ctx, r.pool, qx, q, instructorID)
	if err != nil {
		return nil, wrapListErr(err)
	}
	defer rows.Close()

	var out []*model.CourseSales
	for rows.Next() {
		s := new(model.CourseSales)
		if err := rows.Scan(&s.CourseID, &s.Title, &s.Count, &s.Revenue, &s.Purchasers); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, nil
}

func collectPurchases(rows pgx.Rows) ([]*model.Purchase, error) {
	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func wrapListErr(err error) error {
	switch err {
	case pgx.ErrNoRows:
		return domain.ErrNotFound
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	default:
		return domain.ErrOperationFailed
	}
}
