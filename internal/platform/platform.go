// Package platform defines the contracts the decision engine expects from
// the browser/platform adapter layer. The core never inspects DOM details;
// it consumes action outcomes, profile records, and typed error kinds.
package platform

import (
	"context"
	"errors"
	"fmt"

	"outreach/internal/util"
)

// ErrorKind is the closed set of failure classes the adapter layer reports.
// Retry strategy keys off this enum, not off adapter-internal error types.
type ErrorKind string

const (
	// KindTransient covers blips like a stale element or intercepted click;
	// an immediate retry usually succeeds.
	KindTransient ErrorKind = "transient"
	// KindTemporary covers timeouts, connection drops, and missing elements.
	KindTemporary ErrorKind = "temporary"
	// KindRateLimit means the platform pushed back on volume.
	KindRateLimit ErrorKind = "rate_limit"
	// KindPermanent covers dead sessions and invalid selectors; retrying
	// cannot help.
	KindPermanent ErrorKind = "permanent"
	KindUnknown   ErrorKind = "unknown"
)

// Error is a classified adapter failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

// NewError builds a classified adapter error.
func NewError(kind ErrorKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Phrases in platform responses that signal rate limiting even when the
// adapter could not classify the failure itself.
var rateLimitPhrases = []string{
	"rate limit",
	"too many requests",
	"action blocked",
	"try again later",
	"temporarily blocked",
}

// KindOf classifies an arbitrary error: a typed *Error wins, then message
// phrase matching for rate limits, then unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if util.ContainsAnyCaseInsensitive(err.Error(), rateLimitPhrases) {
		return KindRateLimit
	}
	return KindUnknown
}

// Warning banner phrases mapped to the protector's warning types. A page
// can load "successfully" and still carry one of these.
var warningSignals = []struct {
	phrases []string
	kind    string
}{
	{[]string{"temporarily banned", "account suspended", "temporary ban"}, "temporary_ban"},
	{[]string{"action blocked", "we restrict certain activity"}, "action_blocked"},
	{[]string{"suspicious activity", "unusual activity"}, "suspicious_activity"},
	{[]string{"rate limit", "too many requests", "try again later"}, "rate_limit"},
}

// DetectWarning scans response text for known platform warning banners and
// returns the warning type when one matches.
func DetectWarning(text string) (string, bool) {
	for _, sig := range warningSignals {
		if util.ContainsAnyCaseInsensitive(text, sig.phrases) {
			return sig.kind, true
		}
	}
	return "", false
}

// ProfileInfo is the record a view action yields. The core consumes only
// Followers and Private.
type ProfileInfo struct {
	Username  string
	Followers int
	Following int
	Bio       string
	Private   bool
}

// Executor performs actions against one target in a controlled browser.
// Implementations live outside the decision engine.
type Executor interface {
	Open(ctx context.Context, url string) error
	ViewProfile(ctx context.Context) (ProfileInfo, error)
	Follow(ctx context.Context) error
	Like(ctx context.Context) error
	SendDM(ctx context.Context, text string) error
}

// ChallengeDetector checks for CAPTCHAs and similar interstitials.
// An unresolved challenge is treated as a rate-limit class failure.
type ChallengeDetector interface {
	Detect(ctx context.Context) (present bool, kind string, err error)
	Resolve(ctx context.Context, kind string) (bool, error)
}

// NopChallengeDetector reports no challenges. Used for dry runs.
type NopChallengeDetector struct{}

func (NopChallengeDetector) Detect(context.Context) (bool, string, error) { return false, "", nil }
func (NopChallengeDetector) Resolve(context.Context, string) (bool, error) {
	return true, nil
}
