// Package ratelimit enforces the per-platform action budgets backed by the
// usage ledger: daily ceilings, hourly burst ceilings, and post-action
// cooldowns. Storage faults surface as a deny, never as an allow.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"outreach/internal/limits"
	"outreach/internal/store/ledger"
)

// WarningFunc is notified when a budget is nearly or fully spent.
type WarningFunc func(platform string, action limits.Action, remaining int)

// Limiter translates configured budgets into allow/deny decisions.
type Limiter struct {
	db   *ledger.DB
	mode limits.Mode

	now func() time.Time

	mu         sync.Mutex
	rng        *rand.Rand
	lastAction map[string]time.Time // platform:action -> last performed
	warnFns    []WarningFunc
}

func New(db *ledger.DB, mode limits.Mode) *Limiter {
	return &Limiter{
		db:         db,
		mode:       mode,
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		lastAction: make(map[string]time.Time),
	}
}

// Limits returns the preset budgets for a platform under the session mode.
func (l *Limiter) Limits(platform string) limits.PlatformLimits {
	return limits.ForPlatform(platform, l.mode)
}

// CanPerform reports whether the daily and hourly budgets still allow the
// action. Any ledger fault is returned alongside a deny.
func (l *Limiter) CanPerform(ctx context.Context, platform string, action limits.Action) (bool, error) {
	pl := l.Limits(platform)
	now := l.now()

	daily, err := l.db.DailyCount(ctx, platform, action, now)
	if err != nil {
		return false, err
	}
	if daily >= pl.DailyCeiling(action) {
		return false, nil
	}
	if ceiling, ok := pl.HourlyCeiling(action); ok {
		hourly, err := l.db.HourlyCount(ctx, platform, action, now)
		if err != nil {
			return false, err
		}
		if hourly >= ceiling {
			return false, nil
		}
	}
	return true, nil
}

// RecordAction logs the action to the ledger (counter + history in one
// transaction) and updates the in-memory cooldown tracking.
func (l *Limiter) RecordAction(ctx context.Context, platform string, action limits.Action, username, status, details string) (int64, error) {
	now := l.now()
	id, err := l.db.Increment(ctx, now, platform, action, username, status, details)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.lastAction[platform+":"+string(action)] = now
	l.mu.Unlock()

	l.checkBudgetWarnings(ctx, platform, action)
	return id, nil
}

// CooldownFor returns the configured cooldown for an action with ±20%
// jitter applied. This is the duration the caller sleeps after acting.
func (l *Limiter) CooldownFor(platform string, action limits.Action) time.Duration {
	base := l.Limits(platform).CooldownFor(action)
	l.mu.Lock()
	factor := 0.8 + l.rng.Float64()*0.4
	l.mu.Unlock()
	return time.Duration(float64(base) * factor)
}

// CooldownRemaining returns how long until another action of this type is
// allowed on the platform. Zero when ready or never performed.
func (l *Limiter) CooldownRemaining(platform string, action limits.Action) time.Duration {
	l.mu.Lock()
	last, ok := l.lastAction[platform+":"+string(action)]
	l.mu.Unlock()
	if !ok || last.IsZero() {
		return 0
	}
	cooldown := l.Limits(platform).CooldownFor(action)
	remaining := cooldown - l.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasInteracted reports whether we ever acted on this user before.
// Empty action matches any action type.
func (l *Limiter) HasInteracted(ctx context.Context, username, platform string, action limits.Action) (bool, error) {
	return l.db.HasPriorInteraction(ctx, username, platform, action)
}

var statActions = []limits.Action{
	limits.ActionView, limits.ActionFollow, limits.ActionUnfollow,
	limits.ActionLike, limits.ActionComment, limits.ActionDM,
}

// DailyStats returns today's counts per action type.
func (l *Limiter) DailyStats(ctx context.Context, platform string) (map[limits.Action]int, error) {
	out := make(map[limits.Action]int, len(statActions))
	now := l.now()
	for _, a := range statActions {
		c, err := l.db.DailyCount(ctx, platform, a, now)
		if err != nil {
			return nil, err
		}
		out[a] = c
	}
	return out, nil
}

// Remaining returns how many actions of each type are still allowed today.
func (l *Limiter) Remaining(ctx context.Context, platform string) (map[limits.Action]int, error) {
	stats, err := l.DailyStats(ctx, platform)
	if err != nil {
		return nil, err
	}
	pl := l.Limits(platform)
	out := make(map[limits.Action]int, len(stats))
	for a, c := range stats {
		r := pl.DailyCeiling(a) - c
		if r < 0 {
			r = 0
		}
		out[a] = r
	}
	return out, nil
}

// Status summarizes current budget consumption for reporting.
type Status struct {
	Platform  string
	Daily     map[limits.Action]int
	Remaining map[limits.Action]int
	Warnings  []string
}

// LimitStatus builds a budget status report with warnings for budgets that
// are spent or below 10% remaining.
func (l *Limiter) LimitStatus(ctx context.Context, platform string) (Status, error) {
	stats, err := l.DailyStats(ctx, platform)
	if err != nil {
		return Status{}, err
	}
	remaining, err := l.Remaining(ctx, platform)
	if err != nil {
		return Status{}, err
	}
	s := Status{Platform: platform, Daily: stats, Remaining: remaining}
	pl := l.Limits(platform)
	for _, a := range statActions {
		ceiling := pl.DailyCeiling(a)
		switch {
		case remaining[a] == 0:
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s: limit reached", a))
		case float64(remaining[a]) <= float64(ceiling)*0.1:
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s: only %d remaining", a, remaining[a]))
		}
	}
	return s, nil
}

// AddWarningCallback registers a callback fired when a budget is nearly or
// fully spent after a recorded action.
func (l *Limiter) AddWarningCallback(fn WarningFunc) {
	l.mu.Lock()
	l.warnFns = append(l.warnFns, fn)
	l.mu.Unlock()
}

func (l *Limiter) checkBudgetWarnings(ctx context.Context, platform string, action limits.Action) {
	l.mu.Lock()
	fns := append([]WarningFunc(nil), l.warnFns...)
	l.mu.Unlock()
	if len(fns) == 0 {
		return
	}
	ceiling := l.Limits(platform).DailyCeiling(action)
	count, err := l.db.DailyCount(ctx, platform, action, l.now())
	if err != nil {
		return
	}
	remaining := ceiling - count
	if remaining <= 0 || float64(remaining) <= float64(ceiling)*0.1 {
		for _, fn := range fns {
			fn(platform, action, remaining)
		}
	}
}
