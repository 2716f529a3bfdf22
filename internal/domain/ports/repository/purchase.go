package repository

import (
	"context"
	"time"

	"course-platform/internal/domain/model"
)

// PurchaseFilter narrows admin listings.
type PurchaseFilter struct {
	Status    model.PurchaseStatus // empty = any
	OlderThan time.Time            // zero = any age
	Limit     int
}

type PurchaseRepository interface {
	Save(ctx context.Context, qx Tx, p *model.Purchase) error
	FindByID(ctx context.Context, qx Tx, id string) (*model.Purchase, error)

	// Session lookup cascade. FindBySessionID is the exact match;
	// FindBySessionAffix matches records whose stored session ID is a
	// truncation of the given one or vice versa.
	FindBySessionID(ctx context.Context, qx Tx, sessionID string) (*model.Purchase, error)
	FindBySessionAffix(ctx context.Context, qx Tx, sessionID string) (*model.Purchase, error)
	FindPendingByUserAndCourse(ctx context.Context, qx Tx, userID, courseID string) (*model.Purchase, error)
	FindLatestPending(ctx context.Context, qx Tx) (*model.Purchase, error)

	// UpdateSessionID corrects the stored external session ID after a
	// fallback match resolved the authoritative one.
	UpdateSessionID(ctx context.Context, qx Tx, id, sessionID string) error

	// UpdateStatusIfPending atomically transitions status only when the
	// current status is still 'pending'. Returns false when another path
	// already landed a terminal status.
	UpdateStatusIfPending(ctx context.Context, qx Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time) (bool, error)

	ListPendingOlderThan(ctx context.Context, qx Tx, olderThan time.Time, limit int) ([]*model.Purchase, error)
	ListByUserAndStatus(ctx context.Context, qx Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error)
	List(ctx context.Context, qx Tx, f PurchaseFilter) ([]*model.Purchase, error)
	SalesByInstructor(ctx context.Context, qx Tx, instructorID string) ([]*model.CourseSales, error)
}
