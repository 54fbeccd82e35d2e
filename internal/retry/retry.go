// Package retry re-executes risky operations with severity-aware backoff
// and a per-operation circuit breaker.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"outreach/internal/logging"
	"outreach/internal/metrics"
	"outreach/internal/platform"
)

// Config controls backoff behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	// Symmetric jitter fraction applied to every computed delay.
	JitterRange float64
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Factor:      2.0,
		JitterRange: 0.5,
	}
}

// Outcome describes one Execute invocation.
type Outcome struct {
	Success  bool
	Attempts int
	Elapsed  time.Duration
	Errors   []string
	FinalErr error
}

const (
	circuitThreshold = 5
	circuitCooldown  = 5 * time.Minute
	transientDelay   = 500 * time.Millisecond
	rateLimitFactor  = 10
)

// Manager executes operations with retry and tracks per-operation circuit
// state. Safe for concurrent use.
type Manager struct {
	cfg Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	rng       *rand.Rand
	failures  map[string]int
	openUntil map[string]time.Time

	totalOps   int
	successful int
	failed     int
	retries    int
}

func New(cfg Config) *Manager {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		failures:  make(map[string]int),
		openUntil: make(map[string]time.Time),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs op up to MaxAttempts times, classifying each failure to pick
// the backoff schedule. A permanent failure stops immediately. If the named
// circuit is open the operation is rejected without running.
func (m *Manager) Execute(ctx context.Context, name string, op func(ctx context.Context) error) Outcome {
	if m.circuitOpen(name) {
		return Outcome{Success: false, Errors: []string{"circuit breaker open"}}
	}

	out := Outcome{}
	start := m.now()
	m.mu.Lock()
	m.totalOps++
	m.mu.Unlock()

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		err := op(ctx)
		if err == nil {
			out.Success = true
			m.mu.Lock()
			m.successful++
			m.failures[name] = 0
			delete(m.openUntil, name)
			m.mu.Unlock()
			break
		}

		out.Errors = append(out.Errors, fmt.Sprintf("attempt %d: %v", attempt, err))
		out.FinalErr = err
		kind := platform.KindOf(err)
		logging.Warn("retry_attempt_failed", map[string]any{
			"operation": name, "attempt": attempt, "kind": string(kind), "error": err.Error(),
		})

		if kind == platform.KindPermanent {
			break
		}
		if attempt == m.cfg.MaxAttempts {
			m.mu.Lock()
			m.failed++
			m.mu.Unlock()
			m.recordFailure(name)
			break
		}

		m.mu.Lock()
		m.retries++
		m.mu.Unlock()
		metrics.IncRetry(name)

		if err := m.sleep(ctx, m.delayFor(attempt, kind)); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("cancelled: %v", err))
			out.FinalErr = err
			break
		}
	}

	out.Elapsed = m.now().Sub(start)
	return out
}

// delayFor computes the backoff before the next attempt: exponential from a
// severity-specific base, capped, then jittered symmetrically.
func (m *Manager) delayFor(attempt int, kind platform.ErrorKind) time.Duration {
	base := m.cfg.BaseDelay
	switch kind {
	case platform.KindTransient:
		base = transientDelay
	case platform.KindRateLimit:
		base = m.cfg.BaseDelay * rateLimitFactor
	}

	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= m.cfg.Factor
	}
	if max := float64(m.cfg.MaxDelay); d > max {
		d = max
	}

	m.mu.Lock()
	jitter := d * m.cfg.JitterRange * (2*m.rng.Float64() - 1)
	m.mu.Unlock()
	d += jitter
	if d < float64(100*time.Millisecond) {
		d = float64(100 * time.Millisecond)
	}
	return time.Duration(d)
}

func (m *Manager) circuitOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.openUntil[name]
	if !ok {
		return false
	}
	if m.now().Before(until) {
		return true
	}
	// Cooldown elapsed: self-close and reset the tally.
	delete(m.openUntil, name)
	m.failures[name] = 0
	return false
}

func (m *Manager) recordFailure(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name]++
	if m.failures[name] >= circuitThreshold {
		m.openUntil[name] = m.now().Add(circuitCooldown)
		metrics.CircuitOpens.Inc()
		logging.Warn("circuit_opened", map[string]any{"operation": name})
	}
}

// Stats is an aggregate view of retry activity.
type Stats struct {
	TotalOperations int
	Successful      int
	Failed          int
	TotalRetries    int
	OpenCircuits    []string
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		TotalOperations: m.totalOps,
		Successful:      m.successful,
		Failed:          m.failed,
		TotalRetries:    m.retries,
	}
	now := m.now()
	for name, until := range m.openUntil {
		if now.Before(until) {
			s.OpenCircuits = append(s.OpenCircuits, name)
		}
	}
	return s
}
