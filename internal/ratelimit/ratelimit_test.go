package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"outreach/internal/limits"
	"outreach/internal/store/ledger"
)

func newTest(t *testing.T, mode limits.Mode) (*Limiter, *ledger.DB) {
	t.Helper()
	db, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l := New(db, mode)
	l.rng = rand.New(rand.NewSource(42))
	return l, db
}

func TestDailyCeilingEnforced(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	// Safe instagram comment ceiling is 8, and comments have no hourly cap.
	for i := 0; i < 8; i++ {
		ok, err := l.CanPerform(ctx, "instagram", limits.ActionComment)
		if err != nil || !ok {
			t.Fatalf("action %d should be allowed: %v %v", i, ok, err)
		}
		if _, err := l.RecordAction(ctx, "instagram", limits.ActionComment, "u", "success", ""); err != nil {
			t.Fatal(err)
		}
		now = now.Add(time.Minute)
	}
	ok, err := l.CanPerform(ctx, "instagram", limits.ActionComment)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("ninth comment should be denied")
	}
}

func TestHourlyCeilingEnforcedBeforeDaily(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	// Safe instagram dm: 10/day but only 2/hour.
	for i := 0; i < 2; i++ {
		ok, _ := l.CanPerform(ctx, "instagram", limits.ActionDM)
		if !ok {
			t.Fatalf("dm %d should be allowed", i)
		}
		if _, err := l.RecordAction(ctx, "instagram", limits.ActionDM, "u", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	if ok, _ := l.CanPerform(ctx, "instagram", limits.ActionDM); ok {
		t.Fatal("third dm within the hour should be denied")
	}
	// An hour later the burst window clears but the daily budget remains.
	now = now.Add(61 * time.Minute)
	if ok, _ := l.CanPerform(ctx, "instagram", limits.ActionDM); !ok {
		t.Fatal("dm should be allowed after the hourly window passes")
	}
}

func TestDayRolloverResetsBudget(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 8; i++ {
		if _, err := l.RecordAction(ctx, "instagram", limits.ActionComment, "u", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	if ok, _ := l.CanPerform(ctx, "instagram", limits.ActionComment); ok {
		t.Fatal("budget should be spent")
	}
	now = now.Add(5 * time.Hour) // crosses UTC midnight
	if ok, _ := l.CanPerform(ctx, "instagram", limits.ActionComment); !ok {
		t.Fatal("budget should reset on the new day")
	}
}

func TestCooldownJitterStaysInBand(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	base := l.Limits("instagram").CooldownAfterDM
	for i := 0; i < 200; i++ {
		d := l.CooldownFor("instagram", limits.ActionDM)
		if d < time.Duration(float64(base)*0.8) || d > time.Duration(float64(base)*1.2) {
			t.Fatalf("cooldown %v outside ±20%% of %v", d, base)
		}
	}
}

func TestCooldownRemaining(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if r := l.CooldownRemaining("instagram", limits.ActionFollow); r != 0 {
		t.Fatalf("no actions yet, remaining = %v", r)
	}
	if _, err := l.RecordAction(ctx, "instagram", limits.ActionFollow, "u", "success", ""); err != nil {
		t.Fatal(err)
	}
	if r := l.CooldownRemaining("instagram", limits.ActionFollow); r != 45*time.Second {
		t.Fatalf("remaining = %v, want 45s", r)
	}
	// Other action types are unaffected by the follow.
	if r := l.CooldownRemaining("instagram", limits.ActionDM); r != 0 {
		t.Fatalf("dm remaining = %v, want 0", r)
	}
	now = now.Add(50 * time.Second)
	if r := l.CooldownRemaining("instagram", limits.ActionFollow); r != 0 {
		t.Fatalf("cooldown should have elapsed, remaining = %v", r)
	}
}

func TestStorageFaultDenies(t *testing.T) {
	db, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Close() // force faults
	l := New(db, limits.ModeSafe)

	ok, err := l.CanPerform(context.Background(), "instagram", limits.ActionView)
	if ok {
		t.Fatal("storage fault must deny")
	}
	if !errors.Is(err, ledger.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}
}

func TestLimitStatusWarnings(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 8; i++ {
		if _, err := l.RecordAction(ctx, "instagram", limits.ActionComment, "u", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	st, err := l.LimitStatus(ctx, "instagram")
	if err != nil {
		t.Fatal(err)
	}
	if st.Remaining[limits.ActionComment] != 0 {
		t.Fatalf("comment remaining = %d", st.Remaining[limits.ActionComment])
	}
	found := false
	for _, w := range st.Warnings {
		if w == "comment: limit reached" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected limit-reached warning, got %v", st.Warnings)
	}
}

func TestBudgetWarningCallback(t *testing.T) {
	l, _ := newTest(t, limits.ModeSafe)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	var gotAction limits.Action
	var gotRemaining = -1
	l.AddWarningCallback(func(platform string, action limits.Action, remaining int) {
		gotAction, gotRemaining = action, remaining
	})
	for i := 0; i < 8; i++ {
		if _, err := l.RecordAction(ctx, "instagram", limits.ActionComment, "u", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	if gotAction != limits.ActionComment || gotRemaining != 0 {
		t.Fatalf("callback got %v %d", gotAction, gotRemaining)
	}
}
