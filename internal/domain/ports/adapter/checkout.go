package adapter

import (
	"context"

	"course-platform/internal/domain/model"
)

// CreateSessionInput carries everything the provider needs to open a
// checkout session for one purchase.
type CreateSessionInput struct {
	PurchaseID string
	UserID     string
	Course     *model.Course
}

// CheckoutProvider is the hex port for the external checkout/payment service.
type CheckoutProvider interface {
	Name() string

	// CreateSession opens a checkout session and returns the provider
	// session ID plus the redirect URL for the buyer.
	CreateSession(ctx context.Context, in CreateSessionInput) (sessionID, redirectURL string, err error)

	// GetSession retrieves the authoritative status of a session. A
	// transport or provider failure is an error; "session exists but is
	// unpaid" is not.
	GetSession(ctx context.Context, sessionID string) (*model.SessionStatus, error)

	// VerifyAndParse checks the webhook signature over the raw body and
	// extracts a completion event. An invalid signature or malformed
	// payload is an error. Event types outside the accepted set yield
	// (nil, nil).
	VerifyAndParse(payload []byte, sigHeader string) (*model.CompletionEvent, error)
}

// ProgressTracker is the external collaborator that knows how far a user got
// through a course. Out of scope beyond this interface.
type ProgressTracker interface {
	CompletionPercent(ctx context.Context, userID, courseID string) (float64, error)
}
