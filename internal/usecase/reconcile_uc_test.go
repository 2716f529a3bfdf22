//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/usecase"
)

type reconcileDeps struct {
	purchases *MockPurchaseRepo
	enroll    *MockEnrollmentRepo
	provider  *MockProvider
	locker    *MockLocker
	uc        usecase.ReconcileUseCase
}

func newReconcileDeps() *reconcileDeps {
	d := &reconcileDeps{
		purchases: NewMockPurchaseRepo(),
		enroll:    NewMockEnrollmentRepo(),
		provider:  &MockProvider{},
		locker:    &MockLocker{},
	}
	enrollUC := usecase.NewEnrollmentUseCase(d.enroll, NewMockTxManager(), newTestLogger())
	d.uc = usecase.NewReconcileUseCase(d.purchases, d.provider, enrollUC, d.locker, 5*time.Second, newTestLogger())
	return d
}

func pendingPurchase(id string) *model.Purchase {
	now := time.Now().Add(-time.Hour)
	return &model.Purchase{
		ID:        id,
		UserID:    "user-1",
		CourseID:  "course-1",
		SessionID: "cs_" + id,
		Amount:    500,
		Currency:  "usd",
		Status:    model.PurchaseStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestReconcile_WebhookEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("paid event confirms, corrects amount and enrolls", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)

		ev := usecase.Evidence{Event: &model.CompletionEvent{
			Kind:        model.EventSessionCompleted,
			SessionID:   p.SessionID,
			Paid:        true,
			AmountTotal: 480, // discounted at the provider; 500 was recorded
			RefID:       "pi_123",
		}}

		out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, ev)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeConfirmed {
			t.Fatalf("expected confirmed, got %s", out)
		}

		got := deps.purchases.get(p.ID)
		if got.Status != model.PurchaseStatusSucceeded {
			t.Errorf("expected status succeeded, got %s", got.Status)
		}
		if got.Amount != 480 {
			t.Errorf("expected amount corrected to 480, got %d", got.Amount)
		}
		if got.RefID != "pi_123" {
			t.Errorf("expected ref ID pi_123, got %q", got.RefID)
		}
		if got.PaidAt == nil {
			t.Error("expected paid_at to be set")
		}
		if ok, _ := deps.enroll.IsEnrolled(ctx, nil, "user-1", "course-1"); !ok {
			t.Error("expected enrollment to be projected")
		}
		if deps.provider.getCalls() != 0 {
			t.Error("verified event must not trigger a live provider query")
		}
	})

	t.Run("paid event with zero total keeps recorded amount", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)

		ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionCompleted, SessionID: p.SessionID, Paid: true}}
		if _, err := deps.uc.Reconcile(ctx, "webhook", p.ID, ev); err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		if got := deps.purchases.get(p.ID); got.Amount != 500 {
			t.Errorf("expected recorded amount 500 to stand, got %d", got.Amount)
		}
	})

	t.Run("completed-but-unpaid event stays pending", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)

		ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionCompleted, SessionID: p.SessionID, Paid: false}}
		out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, ev)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeUnconfirmed {
			t.Fatalf("expected unconfirmed, got %s", out)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusPending {
			t.Errorf("expected status to remain pending, got %s", got.Status)
		}
		if deps.enroll.AddCalls != 0 {
			t.Error("unpaid event must not project enrollment")
		}
	})

	t.Run("expired event marks failed without enrollment", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)

		ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionExpired, SessionID: p.SessionID}}
		out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, ev)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeAlreadyTerminal {
			t.Fatalf("expected already_terminal, got %s", out)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusFailed {
			t.Errorf("expected status failed, got %s", got.Status)
		}
		if deps.enroll.AddCalls != 0 {
			t.Error("expired session must not project enrollment")
		}
	})
}

func TestReconcile_LiveQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("provider says paid", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		deps.provider.GetSessionFunc = func(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
			return &model.SessionStatus{SessionID: sessionID, Paid: true, Complete: true, AmountTotal: 500, RefID: "pi_9"}, nil
		}

		out, err := deps.uc.Reconcile(ctx, "sweeper", p.ID, usecase.Evidence{})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeConfirmed {
			t.Fatalf("expected confirmed, got %s", out)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusSucceeded {
			t.Errorf("expected succeeded, got %s", got.Status)
		}
	})

	t.Run("provider says not paid yet: unconfirmed, no error", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)

		out, err := deps.uc.Reconcile(ctx, "sweeper", p.ID, usecase.Evidence{})
		if err != nil {
			t.Fatalf("an unpaid session is not an error, got: %v", err)
		}
		if out != usecase.OutcomeUnconfirmed {
			t.Fatalf("expected unconfirmed, got %s", out)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusPending {
			t.Errorf("expected status to remain pending, got %s", got.Status)
		}
	})

	t.Run("provider unreachable: unconfirmed with verification error", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		deps.provider.GetSessionFunc = func(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
			return nil, errors.New("connection refused")
		}

		out, err := deps.uc.Reconcile(ctx, "sweeper", p.ID, usecase.Evidence{})
		if out != usecase.OutcomeUnconfirmed {
			t.Fatalf("expected unconfirmed, got %s", out)
		}
		if !errors.Is(err, domain.ErrVerificationFailed) {
			t.Fatalf("expected ErrVerificationFailed, got %v", err)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusPending {
			t.Errorf("a could-not-ask failure must never change status, got %s", got.Status)
		}
	})

	t.Run("provider says expired: marked failed", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		deps.provider.GetSessionFunc = func(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
			return &model.SessionStatus{SessionID: sessionID, Expired: true}, nil
		}

		out, err := deps.uc.Reconcile(ctx, "sweeper", p.ID, usecase.Evidence{})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeAlreadyTerminal {
			t.Fatalf("expected already_terminal, got %s", out)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
	})

	t.Run("purchase without session ID cannot be verified", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		p.SessionID = ""
		deps.purchases.Save(ctx, nil, p)

		_, err := deps.uc.Reconcile(ctx, "sweeper", p.ID, usecase.Evidence{})
		if !errors.Is(err, domain.ErrVerificationFailed) {
			t.Fatalf("expected ErrVerificationFailed, got %v", err)
		}
	})
}

func TestReconcile_Force(t *testing.T) {
	ctx := context.Background()

	deps := newReconcileDeps()
	p := pendingPurchase("p1")
	deps.purchases.Save(ctx, nil, p)

	out, err := deps.uc.Reconcile(ctx, "admin", p.ID, usecase.Evidence{Force: true})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if out != usecase.OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %s", out)
	}
	got := deps.purchases.get(p.ID)
	if got.Status != model.PurchaseStatusSucceeded {
		t.Errorf("expected succeeded, got %s", got.Status)
	}
	if got.Amount != 500 {
		t.Errorf("force has no authoritative total; expected recorded 500, got %d", got.Amount)
	}
	if deps.provider.getCalls() != 0 {
		t.Error("force must bypass the provider entirely")
	}
	if ok, _ := deps.enroll.IsEnrolled(ctx, nil, "user-1", "course-1"); !ok {
		t.Error("expected enrollment to be projected")
	}
}

func TestReconcile_Idempotence(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal purchase short-circuits", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		p.Status = model.PurchaseStatusSucceeded
		deps.purchases.Save(ctx, nil, p)

		out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, usecase.Evidence{Force: true})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeAlreadyTerminal {
			t.Fatalf("expected already_terminal, got %s", out)
		}
		if deps.enroll.AddCalls != 0 {
			t.Error("terminal purchase must not re-project enrollment")
		}
	})

	t.Run("second confirmation collapses to already_terminal", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionCompleted, SessionID: p.SessionID, Paid: true, AmountTotal: 500}}

		if out, _ := deps.uc.Reconcile(ctx, "webhook", p.ID, ev); out != usecase.OutcomeConfirmed {
			t.Fatalf("first attempt: expected confirmed, got %s", out)
		}
		if out, _ := deps.uc.Reconcile(ctx, "webhook", p.ID, ev); out != usecase.OutcomeAlreadyTerminal {
			t.Fatalf("second attempt: expected already_terminal, got %s", out)
		}
	})

	t.Run("CAS lost to a concurrent path", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		deps.purchases.UpdateStatusIfPendingFunc = func(ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time) (bool, error) {
			return false, nil // someone else landed the terminal status
		}

		out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, usecase.Evidence{Force: true})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if out != usecase.OutcomeAlreadyTerminal {
			t.Fatalf("expected already_terminal, got %s", out)
		}
	})

	t.Run("concurrent confirmations transition exactly once", func(t *testing.T) {
		deps := newReconcileDeps()
		p := pendingPurchase("p1")
		deps.purchases.Save(ctx, nil, p)
		ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionCompleted, SessionID: p.SessionID, Paid: true, AmountTotal: 500}}

		const n = 8
		outcomes := make([]usecase.Outcome, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i], _ = deps.uc.Reconcile(ctx, "webhook", p.ID, ev)
			}(i)
		}
		wg.Wait()

		confirmed := 0
		for _, out := range outcomes {
			if out == usecase.OutcomeConfirmed {
				confirmed++
			}
		}
		if confirmed != 1 {
			t.Fatalf("expected exactly one confirmed outcome, got %d", confirmed)
		}
		if got := deps.purchases.get(p.ID); got.Status != model.PurchaseStatusSucceeded {
			t.Errorf("expected succeeded, got %s", got.Status)
		}
	})
}

func TestReconcile_PersistFailureRetries(t *testing.T) {
	ctx := context.Background()

	deps := newReconcileDeps()
	p := pendingPurchase("p1")
	deps.purchases.Save(ctx, nil, p)
	ev := usecase.Evidence{Event: &model.CompletionEvent{Kind: model.EventSessionCompleted, SessionID: p.SessionID, Paid: true, AmountTotal: 500}}

	deps.purchases.UpdateStatusIfPendingFunc = func(ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time) (bool, error) {
		return false, errors.New("connection reset")
	}

	out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, ev)
	if out != usecase.OutcomeUnconfirmed {
		t.Fatalf("expected unconfirmed, got %s", out)
	}
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if deps.enroll.AddCalls != 1 {
		t.Fatalf("enrollment projects before the status write, expected 1 call, got %d", deps.enroll.AddCalls)
	}

	// The store recovers; the next attempt (e.g. from the sweeper) lands the
	// transition and re-projects enrollment harmlessly.
	deps.purchases.UpdateStatusIfPendingFunc = nil
	out, err = deps.uc.Reconcile(ctx, "sweeper", p.ID, ev)
	if err != nil {
		t.Fatalf("expected no error on retry, got: %v", err)
	}
	if out != usecase.OutcomeConfirmed {
		t.Fatalf("expected confirmed on retry, got %s", out)
	}
	if ok, _ := deps.enroll.IsEnrolled(ctx, nil, "user-1", "course-1"); !ok {
		t.Error("expected enrollment after retry")
	}
}

func TestReconcile_LockFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()

	deps := newReconcileDeps()
	p := pendingPurchase("p1")
	deps.purchases.Save(ctx, nil, p)
	deps.locker.TryLockFunc = func(ctx context.Context, key string, ttl time.Duration) (string, error) {
		return "", domain.ErrAlreadyExists
	}

	out, err := deps.uc.Reconcile(ctx, "webhook", p.ID, usecase.Evidence{Force: true})
	if err != nil {
		t.Fatalf("lock contention must not fail the reconcile, got: %v", err)
	}
	if out != usecase.OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %s", out)
	}
}
