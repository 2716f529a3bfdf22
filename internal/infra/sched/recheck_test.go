//go:build !integration

package sched_test

import (
	"testing"
	"time"

	"course-platform/internal/infra/sched"
)

func TestRecheck_FiresOnce(t *testing.T) {
	rec := &mockReconcile{}
	r := sched.NewRecheck(rec, 20*time.Millisecond, newTestLogger())
	defer r.Stop()

	r.Schedule("p1")

	deadline := time.Now().Add(2 * time.Second)
	for rec.callsFor("p1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := rec.callsFor("p1"); got != 1 {
		t.Fatalf("expected exactly one recheck, got %d", got)
	}
	if rec.calls[0].Source != "recheck" {
		t.Errorf("expected source recheck, got %q", rec.calls[0].Source)
	}
	if rec.calls[0].Evidence.Force || rec.calls[0].Evidence.Event != nil {
		t.Errorf("a recheck brings no evidence, got %+v", rec.calls[0].Evidence)
	}
}

func TestRecheck_RescheduleResetsTimer(t *testing.T) {
	rec := &mockReconcile{}
	r := sched.NewRecheck(rec, 50*time.Millisecond, newTestLogger())
	defer r.Stop()

	r.Schedule("p1")
	time.Sleep(20 * time.Millisecond)
	r.Schedule("p1") // resets; the first timer must not also fire

	time.Sleep(200 * time.Millisecond)
	if got := rec.callsFor("p1"); got != 1 {
		t.Fatalf("expected one recheck after the reset, got %d", got)
	}
}

func TestRecheck_StopDisarms(t *testing.T) {
	rec := &mockReconcile{}
	r := sched.NewRecheck(rec, 20*time.Millisecond, newTestLogger())

	r.Schedule("p1")
	r.Stop()
	r.Stop() // idempotent

	time.Sleep(100 * time.Millisecond)
	if got := rec.callsFor("p1"); got != 0 {
		t.Fatalf("expected no recheck after Stop, got %d", got)
	}

	// Scheduling after Stop is a no-op.
	r.Schedule("p2")
	time.Sleep(100 * time.Millisecond)
	if got := rec.callsFor("p2"); got != 0 {
		t.Fatalf("expected no recheck for a post-Stop schedule, got %d", got)
	}
}
