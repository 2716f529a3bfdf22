package model

// SessionStatus is the provider's authoritative readback of one checkout
// session.
type SessionStatus struct {
	SessionID   string
	Paid        bool  // provider confirmed payment
	Complete    bool  // session reached a completed state
	Expired     bool  // session is terminally abandoned; it will never pay
	AmountTotal int64 // authoritative total in minor units; 0 when unknown
	RefID       string
}

type EventKind string

const (
	EventSessionCompleted EventKind = "session_completed"
	EventSessionExpired   EventKind = "session_expired"
)

// CompletionEvent is a signature-verified provider push notification. The
// webhook layer produces it; the reconciliation engine treats it as evidence
// that needs no re-verification.
type CompletionEvent struct {
	Kind        EventKind
	SessionID   string
	Paid        bool
	AmountTotal int64
	RefID       string
	// Session metadata we embedded at checkout creation; used for fallback
	// purchase matching when the session ID alone cannot resolve a record.
	CourseID   string
	UserID     string
	PurchaseID string
}
