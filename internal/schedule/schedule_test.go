package schedule

import (
	"testing"
	"time"
)

func TestNextActiveInsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	windows := [][2]int{{9, 12}, {15, 17}}
	if got := NextActive(now, windows); !got.Equal(now) {
		t.Fatalf("inside a window should return now, got %v", got)
	}
}

func TestNextActiveBetweenWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	windows := [][2]int{{9, 12}, {15, 17}}
	want := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	if got := NextActive(now, windows); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextActiveRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	windows := [][2]int{{9, 12}, {15, 17}}
	want := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	if got := NextActive(now, windows); !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNextActiveNoWindows(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	if got := NextActive(now, nil); !got.Equal(now) {
		t.Fatalf("got %v", got)
	}
}

func TestInWindow(t *testing.T) {
	windows := [][2]int{{9, 12}}
	if !InWindow(time.Date(2026, 3, 10, 11, 59, 0, 0, time.UTC), windows) {
		t.Fatal("11:59 should be inside [9,12)")
	}
	if InWindow(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), windows) {
		t.Fatal("12:00 should be outside [9,12)")
	}
}
