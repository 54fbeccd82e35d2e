package platform

import (
	"context"
	"sync"

	"outreach/internal/util"
)

// MockExecutor simulates the browser adapter for dry runs and tests.
// Outcomes can be scripted per target URL; unscripted targets succeed with
// a synthetic profile.
type MockExecutor struct {
	mu       sync.Mutex
	current  string
	Profiles map[string]ProfileInfo
	Fail     map[string]error // keyed by url, returned from Open
	DMFail   map[string]error // keyed by username, returned from SendDM
	Sent     []string         // usernames DMs were sent to, in order
	Followed []string
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Profiles: make(map[string]ProfileInfo),
		Fail:     make(map[string]error),
		DMFail:   make(map[string]error),
	}
}

func (m *MockExecutor) Open(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[url]; err != nil {
		return err
	}
	m.current = url
	return nil
}

func (m *MockExecutor) ViewProfile(context.Context) (ProfileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Profiles[m.current]; ok {
		return p, nil
	}
	return ProfileInfo{Username: util.ExtractUsername(m.current), Followers: 5000}, nil
}

func (m *MockExecutor) Follow(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Followed = append(m.Followed, util.ExtractUsername(m.current))
	return nil
}

func (m *MockExecutor) Like(context.Context) error { return nil }

func (m *MockExecutor) SendDM(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := util.ExtractUsername(m.current)
	if err := m.DMFail[user]; err != nil {
		return err
	}
	m.Sent = append(m.Sent, user)
	return nil
}
