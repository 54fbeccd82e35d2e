package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfTypedError(t *testing.T) {
	err := NewError(KindTemporary, "view_profile", "timeout")
	if KindOf(err) != KindTemporary {
		t.Fatalf("kind = %v", KindOf(err))
	}
	// Classification survives wrapping.
	wrapped := fmt.Errorf("processing target: %w", err)
	if KindOf(wrapped) != KindTemporary {
		t.Fatalf("wrapped kind = %v", KindOf(wrapped))
	}
}

func TestKindOfPhraseFallback(t *testing.T) {
	if KindOf(errors.New("HTTP 429: Too Many Requests")) != KindRateLimit {
		t.Fatal("rate limit phrase not classified")
	}
	if KindOf(errors.New("something odd happened")) != KindUnknown {
		t.Fatal("unclassifiable error should be unknown")
	}
	if KindOf(nil) != KindUnknown {
		t.Fatal("nil error should be unknown")
	}
}

func TestErrorString(t *testing.T) {
	e := NewError(KindPermanent, "follow", "invalid selector")
	if got := e.Error(); got != "follow: permanent: invalid selector" {
		t.Fatalf("got %q", got)
	}
	e = NewError(KindTransient, "", "stale element")
	if got := e.Error(); got != "transient: stale element" {
		t.Fatalf("got %q", got)
	}
}

func TestDetectWarning(t *testing.T) {
	cases := map[string]string{
		"We restrict certain activity to protect our community": "action_blocked",
		"Your account has been temporarily banned":              "temporary_ban",
		"We detected suspicious activity on your account":       "suspicious_activity",
		"Please try again later":                                "rate_limit",
	}
	for text, want := range cases {
		got, ok := DetectWarning(text)
		if !ok || got != want {
			t.Fatalf("DetectWarning(%q) = %q %v, want %q", text, got, ok, want)
		}
	}
	if _, ok := DetectWarning("welcome back!"); ok {
		t.Fatal("benign text flagged")
	}
}

func TestMockExecutorScripting(t *testing.T) {
	m := NewMockExecutor()
	ctx := context.Background()

	m.Profiles["https://instagram.com/alice"] = ProfileInfo{Username: "alice", Followers: 9000}
	m.Fail["https://instagram.com/broken"] = NewError(KindPermanent, "open", "404")
	m.DMFail["bob"] = NewError(KindTemporary, "send_dm", "timeout")

	if err := m.Open(ctx, "https://instagram.com/broken"); err == nil {
		t.Fatal("scripted open failure ignored")
	}
	if err := m.Open(ctx, "https://instagram.com/alice"); err != nil {
		t.Fatal(err)
	}
	p, err := m.ViewProfile(ctx)
	if err != nil || p.Username != "alice" || p.Followers != 9000 {
		t.Fatalf("profile = %+v %v", p, err)
	}
	if err := m.SendDM(ctx, "hi"); err != nil {
		t.Fatal(err)
	}

	if err := m.Open(ctx, "https://instagram.com/bob"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendDM(ctx, "hi"); err == nil {
		t.Fatal("scripted dm failure ignored")
	}
	if len(m.Sent) != 1 || m.Sent[0] != "alice" {
		t.Fatalf("sent = %v", m.Sent)
	}
	// Unscripted target gets a synthetic profile from the URL.
	_ = m.Open(ctx, "https://instagram.com/carol")
	p, _ = m.ViewProfile(ctx)
	if p.Username != "carol" || p.Followers == 0 {
		t.Fatalf("synthetic profile = %+v", p)
	}
}
