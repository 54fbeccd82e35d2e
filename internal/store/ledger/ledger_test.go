package ledger

import (
	"context"
	"testing"
	"time"

	"outreach/internal/limits"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIncrementBumpsCounterAndHistoryTogether(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := db.Increment(ctx, now, "instagram", limits.ActionDM, "alice", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	c, err := db.DailyCount(ctx, "instagram", limits.ActionDM, now)
	if err != nil {
		t.Fatal(err)
	}
	if c != 3 {
		t.Fatalf("daily count = %d, want 3", c)
	}
	entries, err := db.History(ctx, "instagram", limits.ActionDM, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("history rows = %d, want 3", len(entries))
	}
}

func TestDailyCountBucketsByUTCDay(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	late := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	next := time.Date(2026, 3, 11, 0, 5, 0, 0, time.UTC)

	if _, err := db.Increment(ctx, late, "instagram", limits.ActionView, "a", "success", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Increment(ctx, next, "instagram", limits.ActionView, "b", "success", ""); err != nil {
		t.Fatal(err)
	}
	c, _ := db.DailyCount(ctx, "instagram", limits.ActionView, late)
	if c != 1 {
		t.Fatalf("day one count = %d, want 1", c)
	}
	c, _ = db.DailyCount(ctx, "instagram", limits.ActionView, next)
	if c != 1 {
		t.Fatalf("day two count = %d, want 1", c)
	}
}

func TestHourlyCountSlidingWindow(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Two inside the trailing hour, one outside.
	stamps := []time.Time{now.Add(-30 * time.Minute), now.Add(-10 * time.Minute), now.Add(-90 * time.Minute)}
	for _, ts := range stamps {
		if _, err := db.Increment(ctx, ts, "tiktok", limits.ActionFollow, "x", "success", ""); err != nil {
			t.Fatal(err)
		}
	}
	c, err := db.HourlyCount(ctx, "tiktok", limits.ActionFollow, now)
	if err != nil {
		t.Fatal(err)
	}
	if c != 2 {
		t.Fatalf("hourly count = %d, want 2", c)
	}
}

func TestHasPriorInteraction(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := db.Increment(ctx, now, "instagram", limits.ActionFollow, "carol", "success", ""); err != nil {
		t.Fatal(err)
	}
	ok, err := db.HasPriorInteraction(ctx, "carol", "instagram", limits.ActionFollow)
	if err != nil || !ok {
		t.Fatalf("expected prior follow, got %v %v", ok, err)
	}
	ok, _ = db.HasPriorInteraction(ctx, "carol", "instagram", limits.ActionDM)
	if ok {
		t.Fatal("no dm was recorded")
	}
	// Empty action matches any interaction.
	ok, _ = db.HasPriorInteraction(ctx, "carol", "instagram", "")
	if !ok {
		t.Fatal("any-action check should match the follow")
	}
	ok, _ = db.HasPriorInteraction(ctx, "carol", "tiktok", "")
	if ok {
		t.Fatal("platform mismatch should not match")
	}
}

func TestTargetLifecycle(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	url := "https://instagram.com/dave"
	if err := db.UpsertTarget(ctx, url, "instagram", "dave", now); err != nil {
		t.Fatal(err)
	}
	// Re-upsert keeps the row pending.
	if err := db.UpsertTarget(ctx, url, "instagram", "", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	pending, err := db.PendingTargets(ctx, "instagram", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != url {
		t.Fatalf("pending = %v", pending)
	}
	if err := db.UpdateTargetStatus(ctx, url, "completed", "dm sent", 4200, now.Add(2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	pending, _ = db.PendingTargets(ctx, "instagram", 10)
	if len(pending) != 0 {
		t.Fatalf("completed target still pending: %v", pending)
	}
}

func TestSessionRows(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := db.StartSession(ctx, "session_x", "instagram", now); err != nil {
		t.Fatal(err)
	}
	// Restarting the same session id is a no-op, not an error.
	if err := db.StartSession(ctx, "session_x", "instagram", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := db.EndSession(ctx, "session_x", 5, 7, 1, "finished", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
}
