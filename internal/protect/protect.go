// Package protect layers account-level policy on top of the raw rate
// limits: warmup budgets keyed by account age, trust scoring, activity
// windows, warning-triggered pauses, and human-like delay generation.
package protect

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"outreach/internal/limits"
	"outreach/internal/logging"
	"outreach/internal/metrics"
	"outreach/internal/store/ledger"
)

// RiskLevel is a derived, report-only view of account health.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
	RiskBlocked RiskLevel = "blocked"
)

// Gate names the policy check that denied an action.
type Gate string

const (
	GatePause      Gate = "pause"
	GateHumanHours Gate = "human_hours"
	GatePattern    Gate = "activity_window"
	GateDaily      Gate = "daily_limit"
	GateTrust      Gate = "trust_score"
	GateHourly     Gate = "hourly_burst"
	GateCooldown   Gate = "cooldown"
	GateLedger     Gate = "ledger"
)

// Decision is the structured outcome of a safety check. A denial is
// expected control flow, not an error.
type Decision struct {
	OK     bool
	Gate   Gate
	Reason string
}

func deny(gate Gate, format string, args ...any) Decision {
	metrics.IncDenial(string(gate))
	return Decision{OK: false, Gate: gate, Reason: fmt.Sprintf(format, args...)}
}

// Profile is the in-memory health aggregate for one platform account.
// Profiles live for the process lifetime; they are not persisted.
type Profile struct {
	Username     string
	Platform     string
	CreatedAt    time.Time
	TrustScore   float64 // clamped to [0,100]
	TotalActions int
	Warnings     int
	LastWarning  time.Time
	Paused       bool
	PauseUntil   time.Time
}

// Trust score floor below which all actions are denied. Distinct from the
// configurable pause threshold used by callers.
const trustFloor = 20

var minCooldowns = map[limits.Action]time.Duration{
	limits.ActionDM:      120 * time.Second,
	limits.ActionFollow:  60 * time.Second,
	limits.ActionLike:    30 * time.Second,
	limits.ActionComment: 180 * time.Second,
	limits.ActionView:    3 * time.Second,
}

const defaultMinCooldown = 30 * time.Second

var warningPenalties = map[string]float64{
	"rate_limit":          15,
	"action_blocked":      25,
	"suspicious_activity": 30,
	"temporary_ban":       50,
}

const defaultWarningPenalty = 20

type delayRange struct{ lo, hi float64 }

var smartDelays = map[limits.Action]delayRange{
	limits.ActionView:    {3, 8},
	limits.ActionLike:    {5, 15},
	limits.ActionFollow:  {10, 30},
	limits.ActionDM:      {30, 90},
	limits.ActionComment: {20, 60},
}

var defaultSmartDelay = delayRange{5, 15}

type hourWindow struct{ start, end int }

type dailyPattern struct {
	day     string
	windows []hourWindow
}

// Options configures a Protector. The random source is injected so tests
// can pin stochastic gates; nil falls back to a time-seeded source.
type Options struct {
	Aggressive        bool
	EnforceHumanHours bool
	WakeHour          int
	Rand              *rand.Rand
	Now               func() time.Time
}

// Protector gates every action through seven sequential checks and tracks
// per-account trust state.
type Protector struct {
	db         *ledger.DB
	aggressive bool
	humanHours bool
	wakeHour   int
	now        func() time.Time

	mu         sync.Mutex
	rng        *rand.Rand
	profiles   map[string]*Profile
	lastAction map[string]time.Time // platform:action
	patterns   map[string]dailyPattern
}

func New(db *ledger.DB, opts Options) *Protector {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.WakeHour == 0 {
		opts.WakeHour = 6
	}
	return &Protector{
		db:         db,
		aggressive: opts.Aggressive,
		humanHours: opts.EnforceHumanHours,
		wakeHour:   opts.WakeHour,
		now:        opts.Now,
		rng:        opts.Rand,
		profiles:   make(map[string]*Profile),
		lastAction: make(map[string]time.Time),
		patterns:   make(map[string]dailyPattern),
	}
}

func key(platform, username string) string { return platform + ":" + username }

// RegisterAccount starts tracking an account. A zero createdAt means the
// creation date is unknown and the account is treated as brand new.
// Registering an already-tracked account keeps its accumulated state.
func (p *Protector) RegisterAccount(username, platform string, createdAt time.Time) *Profile {
	if createdAt.IsZero() {
		createdAt = p.now()
	}
	p.mu.Lock()
	if existing, ok := p.profiles[key(platform, username)]; ok {
		p.mu.Unlock()
		return existing
	}
	prof := &Profile{
		Username:   username,
		Platform:   platform,
		CreatedAt:  createdAt,
		TrustScore: 100,
	}
	p.profiles[key(platform, username)] = prof
	p.generatePatternLocked(key(platform, username))
	p.mu.Unlock()
	logging.Info("account_registered", map[string]any{"username": username, "platform": platform})
	return prof
}

// AccountAgeDays returns the account's age in whole days, 0 if unregistered.
func (p *Protector) AccountAgeDays(username, platform string) int {
	p.mu.Lock()
	prof := p.profiles[key(platform, username)]
	p.mu.Unlock()
	if prof == nil {
		return 0
	}
	d := int(p.now().Sub(prof.CreatedAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// CurrentLimits resolves the daily ceilings that apply right now: the flat
// aggressive table, or the warmup stage for the account's age.
func (p *Protector) CurrentLimits(username, platform string) map[limits.Action]int {
	if p.aggressive {
		return limits.AggressiveDaily(platform)
	}
	return limits.WarmupDaily(platform, p.AccountAgeDays(username, platform))
}

// IsSafeToAct runs the seven policy gates in order and stops at the first
// denial. The returned decision names the failing gate.
func (p *Protector) IsSafeToAct(ctx context.Context, platform string, action limits.Action, username string) Decision {
	now := p.now()
	k := key(platform, username)

	// Gate 1: pause state is authoritative.
	p.mu.Lock()
	prof := p.profiles[k]
	if prof != nil && prof.Paused {
		if now.Before(prof.PauseUntil) {
			remaining := prof.PauseUntil.Sub(now).Hours()
			p.mu.Unlock()
			return deny(GatePause, "account paused for %.1f more hours", remaining)
		}
		prof.Paused = false
		prof.PauseUntil = time.Time{}
	}
	p.mu.Unlock()

	// Gate 2: owner asleep.
	if p.humanHours && now.Hour() < p.wakeHour {
		return deny(GateHumanHours, "outside active hours (before %d:00)", p.wakeHour)
	}

	// Gate 3: today's randomized activity windows, with a 10% override.
	if !p.matchesDailyPattern(k, now) {
		return deny(GatePattern, "outside today's activity window")
	}

	// Gate 4: daily ceiling from warmup stage or aggressive table.
	daily := p.CurrentLimits(username, platform)
	ceiling, known := daily[action]
	if !known {
		ceiling = limits.GenericDailyCeiling
	}
	if ceiling == 0 {
		return deny(GateDaily, "%s not allowed during warmup", action)
	}
	count, err := p.db.DailyCount(ctx, platform, action, now)
	if err != nil {
		logging.Error("ledger_daily_count", map[string]any{"error": err.Error()})
		return deny(GateLedger, "ledger unavailable, refusing to act")
	}
	if count >= ceiling {
		return deny(GateDaily, "daily %s limit reached (%d/%d)", action, count, ceiling)
	}

	// Gate 5: trust floor.
	if prof != nil && prof.TrustScore < trustFloor {
		return deny(GateTrust, "trust score too low (%.1f) - account at risk", prof.TrustScore)
	}

	// Gate 6: hourly burst ceiling derived from the daily one.
	hourlyCeiling := hourlyLimit(action, ceiling)
	hourly, err := p.db.HourlyCount(ctx, platform, action, now)
	if err != nil {
		logging.Error("ledger_hourly_count", map[string]any{"error": err.Error()})
		return deny(GateLedger, "ledger unavailable, refusing to act")
	}
	if hourly >= hourlyCeiling {
		return deny(GateHourly, "hourly %s limit reached (%d/%d)", action, hourly, hourlyCeiling)
	}

	// Gate 7: minimum spacing between same-type actions.
	p.mu.Lock()
	last, ok := p.lastAction[platform+":"+string(action)]
	p.mu.Unlock()
	if ok {
		min := minCooldowns[action]
		if min == 0 {
			min = defaultMinCooldown
		}
		if elapsed := now.Sub(last); elapsed < min {
			return deny(GateCooldown, "too soon since last %s (%.0fs of %.0fs)", action, elapsed.Seconds(), min.Seconds())
		}
	}

	return Decision{OK: true, Reason: "safe to proceed"}
}

// hourlyLimit spreads a daily budget across the day. DMs are spread thinner.
func hourlyLimit(action limits.Action, dailyCeiling int) int {
	div := 10
	if action == limits.ActionDM {
		div = 15
	}
	h := dailyCeiling / div
	if h < 1 {
		h = 1
	}
	return h
}

// RecordAction updates cooldown tracking and nudges the trust score:
// +0.1 on success, -2 on failure.
func (p *Protector) RecordAction(platform string, action limits.Action, username string, success bool) {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastAction[platform+":"+string(action)] = now
	prof := p.profiles[key(platform, username)]
	if prof == nil {
		return
	}
	prof.TotalActions++
	if success {
		prof.TrustScore = clamp(prof.TrustScore + 0.1)
	} else {
		prof.TrustScore = clamp(prof.TrustScore - 2)
	}
}

// RecordWarning applies the trust penalty for a platform warning and pauses
// the account. Type-specific pauses are checked before the cumulative
// three-warnings pause; that ordering is the documented tie-break.
func (p *Protector) RecordWarning(platform, username, warningType string) {
	metrics.IncWarning(warningType)
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	prof := p.profiles[key(platform, username)]
	if prof == nil {
		return
	}
	prof.Warnings++
	prof.LastWarning = now

	penalty, ok := warningPenalties[warningType]
	if !ok {
		penalty = defaultWarningPenalty
	}
	prof.TrustScore = clamp(prof.TrustScore - penalty)
	logging.Warn("platform_warning", map[string]any{
		"username": username, "platform": platform,
		"type": warningType, "trust": prof.TrustScore,
	})

	switch warningType {
	case "temporary_ban":
		p.pauseLocked(prof, 48*time.Hour)
	case "action_blocked":
		p.pauseLocked(prof, 24*time.Hour)
	case "rate_limit":
		p.pauseLocked(prof, 6*time.Hour)
	default:
		if prof.Warnings >= 3 {
			p.pauseLocked(prof, 12*time.Hour)
		}
	}
}

func (p *Protector) pauseLocked(prof *Profile, d time.Duration) {
	prof.Paused = true
	prof.PauseUntil = p.now().Add(d)
	logging.Warn("account_paused", map[string]any{
		"username": prof.Username, "platform": prof.Platform,
		"hours": d.Hours(),
	})
}

// SmartDelay draws a human-like delay for an action: an action-specific
// base range, a 10% chance of a 30-120s distraction, and an independent 2%
// chance of a 180-600s break. Surcharges are cumulative.
func (p *Protector) SmartDelay(action limits.Action) time.Duration {
	r, ok := smartDelays[action]
	if !ok {
		r = defaultSmartDelay
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	secs := r.lo + p.rng.Float64()*(r.hi-r.lo)
	if p.rng.Float64() < 0.10 {
		secs += 30 + p.rng.Float64()*90
	}
	if p.rng.Float64() < 0.02 {
		secs += 180 + p.rng.Float64()*420
	}
	return time.Duration(secs * float64(time.Second))
}

// RiskLevel derives a report-only health classification from trust score,
// warning recency, and pause state. Not consulted by IsSafeToAct.
func (p *Protector) RiskLevel(platform, username string) RiskLevel {
	now := p.now()
	p.mu.Lock()
	prof := p.profiles[key(platform, username)]
	p.mu.Unlock()
	if prof == nil {
		return RiskCaution
	}
	if prof.Paused && now.Before(prof.PauseUntil) {
		return RiskBlocked
	}
	switch {
	case prof.TrustScore < 20:
		return RiskDanger
	case prof.TrustScore < 40:
		return RiskWarning
	case prof.TrustScore < 60:
		return RiskCaution
	}
	if !prof.LastWarning.IsZero() {
		since := now.Sub(prof.LastWarning)
		switch {
		case since < 24*time.Hour:
			return RiskDanger
		case since < 3*24*time.Hour:
			return RiskWarning
		case since < 7*24*time.Hour:
			return RiskCaution
		}
	}
	return RiskSafe
}

// Report is a point-in-time account status snapshot.
type Report struct {
	Username       string
	Platform       string
	AccountAgeDays int
	WarmupComplete bool
	TrustScore     float64
	Risk           RiskLevel
	Warnings       int
	Paused         bool
	PauseUntil     time.Time
	CurrentLimits  map[limits.Action]int
	TotalActions   int
	Aggressive     bool
}

// StatusReport summarizes an account's protection state, or nil if the
// account was never registered.
func (p *Protector) StatusReport(platform, username string) *Report {
	p.mu.Lock()
	prof := p.profiles[key(platform, username)]
	p.mu.Unlock()
	if prof == nil {
		return nil
	}
	age := p.AccountAgeDays(username, platform)
	return &Report{
		Username:       username,
		Platform:       platform,
		AccountAgeDays: age,
		WarmupComplete: age >= 30,
		TrustScore:     prof.TrustScore,
		Risk:           p.RiskLevel(platform, username),
		Warnings:       prof.Warnings,
		Paused:         prof.Paused,
		PauseUntil:     prof.PauseUntil,
		CurrentLimits:  p.CurrentLimits(username, platform),
		TotalActions:   prof.TotalActions,
		Aggressive:     p.aggressive,
	}
}

// generatePatternLocked rolls 2-4 activity windows of 1-3 hours from the
// 8:00-22:00 range for the current day. Caller holds p.mu.
func (p *Protector) generatePatternLocked(accountKey string) {
	day := ledger.DayKey(p.now())
	numWindows := 2 + p.rng.Intn(3)
	hours := p.rng.Perm(14) // offsets into 8..21
	var windows []hourWindow
	for i := 0; i < numWindows && i < len(hours); i++ {
		start := 8 + hours[i]
		end := start + 1 + p.rng.Intn(3)
		if end > 22 {
			end = 22
		}
		windows = append(windows, hourWindow{start, end})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	p.patterns[accountKey] = dailyPattern{day: day, windows: windows}
	logging.Debug("daily_pattern", map[string]any{"account": accountKey, "windows": len(windows)})
}

// Windows returns today's activity windows as [start,end) hour pairs,
// regenerating them if the day rolled over. Used by status reporting.
func (p *Protector) Windows(platform, username string) [][2]int {
	k := key(platform, username)
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	pat, ok := p.patterns[k]
	if !ok || pat.day != ledger.DayKey(now) {
		p.generatePatternLocked(k)
		pat = p.patterns[k]
	}
	out := make([][2]int, 0, len(pat.windows))
	for _, w := range pat.windows {
		out = append(out, [2]int{w.start, w.end})
	}
	return out
}

// matchesDailyPattern checks the current hour against today's windows. A
// fixed 10% random override lets actions through outside all windows, so
// the gate is deliberately stochastic.
func (p *Protector) matchesDailyPattern(accountKey string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pat, ok := p.patterns[accountKey]
	if !ok || pat.day != ledger.DayKey(now) {
		p.generatePatternLocked(accountKey)
		pat = p.patterns[accountKey]
	}
	hour := now.Hour()
	for _, w := range pat.windows {
		if w.start <= hour && hour < w.end {
			return true
		}
	}
	return p.rng.Float64() < 0.1
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
