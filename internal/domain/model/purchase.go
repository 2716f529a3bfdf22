package model

import "time"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"   // checkout session created; awaiting provider confirmation
	PurchaseStatusSucceeded PurchaseStatus = "succeeded" // provider confirmed payment (or operator forced)
	PurchaseStatusFailed    PurchaseStatus = "failed"    // session expired or provider reported a terminal unpaid state
)

// Terminal reports whether no further status transition is allowed.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusSucceeded || s == PurchaseStatusFailed
}

// Purchase records one attempt by one user to buy one course.
type Purchase struct {
	ID       string // ULID; lexicographic order is creation order
	UserID   string // UUID
	CourseID string // UUID
	// SessionID is the provider checkout-session ID. Set once the session is
	// created; may later be corrected to the authoritative value when a
	// webhook event was matched through a fallback strategy.
	SessionID string
	Amount    int64  // minor units; catalog price at creation, corrected from provider total on confirmation
	Currency  string // ISO-ish code, e.g. "usd"
	RefID     string // provider payment reference after confirmation (if any)
	Status    PurchaseStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time // set when succeeded
}

// PurchaseProgress is a succeeded purchase enriched with the user's course
// completion percentage from the progress collaborator.
type PurchaseProgress struct {
	Purchase *Purchase
	Progress float64 // 0..100
}

// CourseSales is one row of the instructor sales aggregation.
type CourseSales struct {
	CourseID   string
	Title      string
	Count      int
	Revenue    int64
	Purchasers []string
}
