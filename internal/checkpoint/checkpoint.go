// Package checkpoint keeps a durable, resumable record of per-target
// processing state for one run. Every terminal mark is flushed to disk
// synchronously; a background task flushes on an interval to cover
// in-memory-only mutations.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"outreach/internal/logging"
	"outreach/internal/metrics"
)

// TargetStatus is the small per-target state machine:
// pending -> processing -> completed | failed | skipped.
type TargetStatus string

const (
	StatusPending    TargetStatus = "pending"
	StatusProcessing TargetStatus = "processing"
	StatusCompleted  TargetStatus = "completed"
	StatusFailed     TargetStatus = "failed"
	StatusSkipped    TargetStatus = "skipped"
)

// TargetState tracks one target within a session.
type TargetState struct {
	URL         string         `json:"url"`
	Status      TargetStatus   `json:"status"`
	Attempts    int            `json:"attempts"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SessionStatus is the lifecycle of a whole run.
type SessionStatus string

const (
	SessionRunning     SessionStatus = "running"
	SessionPaused      SessionStatus = "paused"
	SessionCompleted   SessionStatus = "completed"
	SessionInterrupted SessionStatus = "interrupted"
	SessionCrashed     SessionStatus = "crashed"
	SessionResumed     SessionStatus = "resumed"
)

// SessionState is the full persisted record of a run.
type SessionState struct {
	SessionID string        `json:"session_id"`
	Platform  string        `json:"platform"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Status    SessionStatus `json:"status"`

	TotalTargets int `json:"total_targets"`
	Processed    int `json:"processed"`
	Successful   int `json:"successful"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`

	CurrentTarget string `json:"current_target,omitempty"`

	Targets map[string]*TargetState `json:"targets"`
	Notes   []string                `json:"notes,omitempty"`
}

// NewSessionID derives a human-readable session id from the clock with a
// short random suffix to de-collide rapid restarts.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// Manager owns one session's checkpoint file. The main loop mutates state
// through its methods; a background goroutine only reads and serializes.
// All access goes through the mutex.
type Manager struct {
	dir  string
	file string
	now  func() time.Time

	mu    sync.Mutex
	state *SessionState

	// Serializes marshal+write+rename cycles: the interval flusher and the
	// synchronous terminal marks share one tmp path.
	saveMu sync.Mutex

	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// New opens or creates the checkpoint for sessionID. An existing file is
// loaded and the session marked resumed; otherwise a fresh running session
// is created. flushInterval <= 0 disables the background flusher.
func New(sessionID, plat, dir string, flushInterval time.Duration) (*Manager, error) {
	if dir == "" {
		dir = "checkpoints"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint dir: %w", err)
	}
	m := &Manager{
		dir:           dir,
		now:           time.Now,
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if sessionID == "" {
		sessionID = NewSessionID(m.now())
	}
	m.file = filepath.Join(dir, sessionID+".json")

	if b, err := os.ReadFile(m.file); err == nil {
		var st SessionState
		if err := json.Unmarshal(b, &st); err != nil {
			return nil, fmt.Errorf("corrupt checkpoint %s: %w", m.file, err)
		}
		st.Status = SessionResumed
		m.state = &st
		logging.Info("checkpoint_loaded", map[string]any{
			"session": sessionID, "processed": st.Processed, "total": st.TotalTargets,
		})
	} else {
		now := m.now()
		m.state = &SessionState{
			SessionID: sessionID,
			Platform:  plat,
			CreatedAt: now,
			UpdatedAt: now,
			Status:    SessionRunning,
			Targets:   make(map[string]*TargetState),
		}
		logging.Info("checkpoint_created", map[string]any{"session": sessionID})
	}

	if flushInterval > 0 {
		go m.flushLoop()
	} else {
		close(m.done)
	}
	return m, nil
}

func (m *Manager) flushLoop() {
	defer close(m.done)
	t := time.NewTicker(m.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			if err := m.Save(); err != nil {
				logging.Error("checkpoint_flush", map[string]any{"error": err.Error()})
			}
		}
	}
}

// SessionID returns the session identifier.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SessionID
}

// Status returns the current session status.
func (m *Manager) Status() SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Status
}

// SetTargets merge-inserts URLs as pending. Existing entries are never
// overwritten, so re-registration across resumes is idempotent.
func (m *Manager) SetTargets(urls []string) error {
	m.mu.Lock()
	for _, u := range urls {
		if _, ok := m.state.Targets[u]; !ok {
			m.state.Targets[u] = &TargetState{URL: u, Status: StatusPending}
		}
	}
	m.state.TotalTargets = len(m.state.Targets)
	m.touchLocked()
	m.mu.Unlock()
	return m.Save()
}

// MarkProcessing records that work on a target has begun. Not flushed
// synchronously; the interval flusher covers it.
func (m *Manager) MarkProcessing(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.Targets[url]
	if !ok {
		t = &TargetState{URL: url}
		m.state.Targets[url] = t
		m.state.TotalTargets = len(m.state.Targets)
	}
	now := m.now()
	t.Status = StatusProcessing
	t.StartedAt = &now
	t.Attempts++
	m.state.CurrentTarget = url
	m.touchLocked()
}

// MarkCompleted records a successful terminal state and flushes.
func (m *Manager) MarkCompleted(url string, result map[string]any) error {
	return m.finish(url, StatusCompleted, result, "")
}

// MarkFailed records a failed terminal state and flushes.
func (m *Manager) MarkFailed(url, errMsg string) error {
	return m.finish(url, StatusFailed, nil, errMsg)
}

// MarkSkipped records a skipped terminal state and flushes.
func (m *Manager) MarkSkipped(url, reason string) error {
	return m.finish(url, StatusSkipped, nil, reason)
}

func (m *Manager) finish(url string, status TargetStatus, result map[string]any, errMsg string) error {
	m.mu.Lock()
	t, ok := m.state.Targets[url]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown target %q", url)
	}
	now := m.now()
	t.Status = status
	t.CompletedAt = &now
	t.Result = result
	t.Error = errMsg

	m.state.Processed++
	switch status {
	case StatusCompleted:
		m.state.Successful++
	case StatusFailed:
		m.state.Failed++
	case StatusSkipped:
		m.state.Skipped++
	}
	m.state.CurrentTarget = ""
	m.touchLocked()
	m.mu.Unlock()
	return m.Save()
}

// Pending returns targets still needing work, in stable order. A target
// stuck in processing (crash leftover) counts as pending and will be
// reprocessed, so action handlers must be idempotent.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for u, t := range m.state.Targets {
		if t.Status == StatusPending || t.Status == StatusProcessing {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// Completed returns targets that finished successfully.
func (m *Manager) Completed() []string { return m.byStatus(StatusCompleted) }

// FailedTargets returns targets that terminally failed.
func (m *Manager) FailedTargets() []string { return m.byStatus(StatusFailed) }

func (m *Manager) byStatus(s TargetStatus) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for u, t := range m.state.Targets {
		if t.Status == s {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// IsProcessed reports whether a target reached a terminal status.
func (m *Manager) IsProcessed(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.Targets[url]
	if !ok {
		return false
	}
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Target returns a copy of one target's state.
func (m *Manager) Target(url string) (TargetState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.state.Targets[url]
	if !ok {
		return TargetState{}, false
	}
	return *t, true
}

// AddNote appends a timestamped note to the session log.
func (m *Manager) AddNote(note string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Notes = append(m.state.Notes, m.now().Format("15:04:05")+" "+note)
	m.touchLocked()
}

// Pause marks the session paused and flushes.
func (m *Manager) Pause(note string) error {
	m.setStatus(SessionPaused)
	if note != "" {
		m.AddNote("paused: " + note)
	}
	return m.Save()
}

// ResumeRunning marks a resumed/paused session as running again.
func (m *Manager) ResumeRunning() error {
	m.setStatus(SessionRunning)
	m.AddNote("resumed")
	return m.Save()
}

// Complete marks the session finished and flushes.
func (m *Manager) Complete(note string) error {
	m.setStatus(SessionCompleted)
	if note != "" {
		m.AddNote(note)
	}
	return m.Save()
}

// MarkCrashed records an uncaught run failure and flushes.
func (m *Manager) MarkCrashed(err error) error {
	m.setStatus(SessionCrashed)
	if err != nil {
		m.AddNote("crashed: " + err.Error())
	}
	return m.Save()
}

func (m *Manager) setStatus(s SessionStatus) {
	m.mu.Lock()
	m.state.Status = s
	m.touchLocked()
	m.mu.Unlock()
}

func (m *Manager) touchLocked() { m.state.UpdatedAt = m.now() }

// Save serializes the full session state and writes it durably via a temp
// file rename.
func (m *Manager) Save() error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	m.mu.Lock()
	b, err := json.MarshalIndent(m.state, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tmp := m.file + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.file); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	metrics.CheckpointFlushes.Inc()
	return nil
}

// Close stops the background flusher and performs the final flush. A
// session still running is marked interrupted, never silently completed.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done
		m.mu.Lock()
		if m.state.Status == SessionRunning || m.state.Status == SessionResumed {
			m.state.Status = SessionInterrupted
		}
		m.touchLocked()
		m.mu.Unlock()
		err = m.Save()
		logging.Info("checkpoint_closed", map[string]any{"session": m.SessionID(), "status": string(m.Status())})
	})
	return err
}

// Progress is a point-in-time summary of the run.
type Progress struct {
	SessionID     string
	Status        SessionStatus
	Total         int
	Processed     int
	Successful    int
	Failed        int
	Skipped       int
	Remaining     int
	Percent       float64
	CurrentTarget string
}

func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Progress{
		SessionID:     m.state.SessionID,
		Status:        m.state.Status,
		Total:         m.state.TotalTargets,
		Processed:     m.state.Processed,
		Successful:    m.state.Successful,
		Failed:        m.state.Failed,
		Skipped:       m.state.Skipped,
		CurrentTarget: m.state.CurrentTarget,
	}
	p.Remaining = p.Total - p.Processed
	if p.Total > 0 {
		p.Percent = float64(p.Processed) / float64(p.Total) * 100
	}
	return p
}
