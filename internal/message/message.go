// Package message holds DM templates and personalization. Templates carry
// {placeholder} slots filled from the viewed profile; unknown placeholders
// are left visible rather than erroring mid-run.
package message

import (
	"math/rand"
	"strconv"
	"strings"

	"outreach/internal/platform"
	"outreach/internal/util"
)

// Template is one reusable DM with placeholder slots.
type Template struct {
	Name     string `yaml:"name"`
	Text     string `yaml:"text"`
	Category string `yaml:"category"`
}

// Built-in templates by category: cold_outreach for first contact,
// engagement for warm targets, follow_up for second touches.
var defaultTemplates = []Template{
	{
		Name:     "friendly_intro",
		Text:     "Hey {name}! I came across your profile and really loved your content. Would love to connect!",
		Category: "cold_outreach",
	},
	{
		Name:     "collaboration",
		Text:     "Hi {name}! I'm {my_name} and I think our content styles would complement each other. Open to a collab?",
		Category: "cold_outreach",
	},
	{
		Name:     "question",
		Text:     "Hey {name}! Quick question - I noticed {observation}. How did you achieve that?",
		Category: "engagement",
	},
	{
		Name:     "compliment",
		Text:     "Hi {name}! Just wanted to say your {content_type} is amazing. Keep up the great work!",
		Category: "engagement",
	},
	{
		Name:     "follow_up",
		Text:     "Hey {name}, following up on my previous message. Would love to hear your thoughts!",
		Category: "follow_up",
	},
}

// Store selects templates by name or category.
type Store struct {
	templates []Template
	rng       *rand.Rand
}

// NewStore returns a store seeded with the built-in templates.
func NewStore(rng *rand.Rand) *Store {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Store{templates: append([]Template(nil), defaultTemplates...), rng: rng}
}

// Add registers a custom template.
func (s *Store) Add(t Template) { s.templates = append(s.templates, t) }

// ByName returns the named template.
func (s *Store) ByName(name string) (Template, bool) {
	for _, t := range s.templates {
		if t.Name == name {
			return t, true
		}
	}
	return Template{}, false
}

// Pick returns a random template from the category, or from the whole set
// when the category is empty or has no matches.
func (s *Store) Pick(category string) (Template, bool) {
	if len(s.templates) == 0 {
		return Template{}, false
	}
	var pool []Template
	if category != "" {
		for _, t := range s.templates {
			if t.Category == category {
				pool = append(pool, t)
			}
		}
	}
	if len(pool) == 0 {
		pool = s.templates
	}
	return pool[s.rng.Intn(len(pool))], true
}

// Personalize fills a template's placeholders from the profile. Missing
// fields fall back to neutral text so a partially scraped profile still
// yields a sendable message.
func Personalize(text string, p platform.ProfileInfo) string {
	name := p.Username
	if name == "" {
		name = "there"
	}
	// Scraped bios carry newlines and padding that would leak into the DM.
	bio := util.NormalizeWhitespace(p.Bio)
	if len(bio) > 50 {
		bio = bio[:50]
	}
	r := strings.NewReplacer(
		"{name}", name,
		"{followers}", strconv.Itoa(p.Followers),
		"{bio}", bio,
	)
	return r.Replace(text)
}

// Opening generates a short personalized opener, biased by bio keywords.
func Opening(rng *rand.Rand, p platform.ProfileInfo) string {
	name := p.Username
	if name == "" {
		name = "there"
	}
	openings := []string{
		"Hey " + name + "!",
		"Hi " + name + ", hope you're having a great day!",
		"Hello " + name + "!",
	}
	bio := strings.ToLower(p.Bio)
	switch {
	case strings.Contains(bio, "photographer"):
		openings = append(openings, "Hey "+name+", your photography is incredible!")
	case strings.Contains(bio, "artist"):
		openings = append(openings, "Hi "+name+", I love your artistic style!")
	case strings.Contains(bio, "travel"):
		openings = append(openings, "Hey "+name+", your travel content is amazing!")
	}
	if rng == nil {
		return openings[0]
	}
	return openings[rng.Intn(len(openings))]
}
