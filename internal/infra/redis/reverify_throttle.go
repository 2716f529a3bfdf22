package redis

import (
	"context"
	"time"
)

// ReverifyThrottle rate-limits the lazy re-verification done when a user
// lists their pending purchases. One provider round-trip per purchase per
// window; further listings within the window just show stored state.
type ReverifyThrottle struct {
	client *Client
	window time.Duration
}

func NewReverifyThrottle(client *Client, window time.Duration) *ReverifyThrottle {
	if window <= 0 {
		window = time.Minute
	}
	return &ReverifyThrottle{client: client, window: window}
}

// Allow returns true when this purchase has not been re-verified within the
// window. Redis failures allow the check: a missed throttle only costs an
// extra provider query.
func (t *ReverifyThrottle) Allow(ctx context.Context, purchaseID string) bool {
	ok, err := t.client.SetNX(ctx, "reverify:"+purchaseID, 1, t.window)
	if err != nil {
		return true
	}
	return ok
}
