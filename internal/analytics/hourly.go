// Package analytics aggregates ledger history into report views.
package analytics

import (
	"sort"
	"time"

	"outreach/internal/store/ledger"
)

// HourlyActions buckets history rows into per-hour counts by action type.
func HourlyActions(entries []ledger.LogEntry) map[time.Time]map[string]int {
	buckets := make(map[time.Time]map[string]int)
	for _, e := range entries {
		ts := e.TS.UTC()
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[string]int)
		}
		buckets[key][string(e.Action)]++
	}
	return buckets
}

// SortedBucketKeys returns the bucket hours in ascending order.
func SortedBucketKeys(m map[time.Time]map[string]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// SuccessRate computes the share of successful rows, 0 when empty.
func SuccessRate(entries []ledger.LogEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	ok := 0
	for _, e := range entries {
		if e.Status == "success" {
			ok++
		}
	}
	return float64(ok) / float64(len(entries))
}
