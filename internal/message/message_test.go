package message

import (
	"math/rand"
	"strings"
	"testing"

	"outreach/internal/platform"
)

func TestPersonalize(t *testing.T) {
	p := platform.ProfileInfo{Username: "alice", Followers: 4200, Bio: "travel blogger"}
	got := Personalize("Hey {name}! You have {followers} followers.", p)
	if got != "Hey alice! You have 4200 followers." {
		t.Fatalf("got %q", got)
	}
}

func TestPersonalizeFallbacks(t *testing.T) {
	got := Personalize("Hey {name}!", platform.ProfileInfo{})
	if got != "Hey there!" {
		t.Fatalf("empty username fallback, got %q", got)
	}
	// Unknown placeholders stay visible instead of breaking the send.
	got = Personalize("I noticed {observation}.", platform.ProfileInfo{Username: "bob"})
	if !strings.Contains(got, "{observation}") {
		t.Fatalf("unknown placeholder should remain, got %q", got)
	}
}

func TestPersonalizeNormalizesBio(t *testing.T) {
	p := platform.ProfileInfo{Username: "a", Bio: "surf\n\ncoach  &\ttravel"}
	if got := Personalize("{bio}", p); got != "surf coach & travel" {
		t.Fatalf("bio = %q", got)
	}
}

func TestPersonalizeTruncatesBio(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := Personalize("{bio}", platform.ProfileInfo{Username: "a", Bio: long})
	if len(got) != 50 {
		t.Fatalf("bio should truncate to 50, got %d", len(got))
	}
}

func TestPickByCategory(t *testing.T) {
	s := NewStore(rand.New(rand.NewSource(3)))
	for i := 0; i < 50; i++ {
		tpl, ok := s.Pick("cold_outreach")
		if !ok || tpl.Category != "cold_outreach" {
			t.Fatalf("pick returned %+v %v", tpl, ok)
		}
	}
	// Unknown category falls back to the full pool rather than failing.
	if _, ok := s.Pick("nonexistent"); !ok {
		t.Fatal("fallback pick failed")
	}
}

func TestByNameAndAdd(t *testing.T) {
	s := NewStore(nil)
	if _, ok := s.ByName("friendly_intro"); !ok {
		t.Fatal("built-in template missing")
	}
	s.Add(Template{Name: "custom", Text: "Yo {name}", Category: "engagement"})
	tpl, ok := s.ByName("custom")
	if !ok || tpl.Text != "Yo {name}" {
		t.Fatalf("custom template = %+v %v", tpl, ok)
	}
}

func TestOpeningUsesBioKeywords(t *testing.T) {
	p := platform.ProfileInfo{Username: "carol", Bio: "Travel addict"}
	rng := rand.New(rand.NewSource(1))
	seen := false
	for i := 0; i < 100; i++ {
		if strings.Contains(Opening(rng, p), "travel content") {
			seen = true
			break
		}
	}
	if !seen {
		t.Fatal("travel opener never selected")
	}
	if got := Opening(nil, platform.ProfileInfo{}); !strings.Contains(got, "there") {
		t.Fatalf("anonymous opener = %q", got)
	}
}
