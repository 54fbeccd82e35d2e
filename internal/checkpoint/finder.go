package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Summary is the lightweight listing view of one checkpoint file.
type Summary struct {
	SessionID string
	Platform  string
	Status    SessionStatus
	Total     int
	Processed int
	Updated   string
}

// Finder inspects a checkpoint directory without opening managers.
type Finder struct{ Dir string }

// List returns summaries for every checkpoint file, newest first.
// Unreadable files are skipped.
func (f Finder) List() ([]Summary, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(f.Dir, e.Name()))
		if err != nil {
			continue
		}
		var st SessionState
		if err := json.Unmarshal(b, &st); err != nil {
			continue
		}
		out = append(out, Summary{
			SessionID: st.SessionID,
			Platform:  st.Platform,
			Status:    st.Status,
			Total:     st.TotalTargets,
			Processed: st.Processed,
			Updated:   st.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated > out[j].Updated })
	return out, nil
}

// FindResumable returns the most recent session for the platform that still
// has unfinished work: interrupted, paused, or crashed with targets left.
func (f Finder) FindResumable(platform string) (string, bool) {
	sums, err := f.List()
	if err != nil {
		return "", false
	}
	for _, s := range sums {
		if platform != "" && s.Platform != platform {
			continue
		}
		switch s.Status {
		case SessionInterrupted, SessionPaused, SessionCrashed, SessionRunning, SessionResumed:
			if s.Processed < s.Total || s.Total == 0 {
				return s.SessionID, true
			}
		}
	}
	return "", false
}
