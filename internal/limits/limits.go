package limits

import "time"

// Action is one of the automated action verbs.
type Action string

const (
	ActionView     Action = "view"
	ActionFollow   Action = "follow"
	ActionUnfollow Action = "unfollow"
	ActionLike     Action = "like"
	ActionComment  Action = "comment"
	ActionDM       Action = "dm"
)

// GenericDailyCeiling applies to action types absent from a limits table.
// Unknown actions are capped, never unlimited.
const GenericDailyCeiling = 100

// Mode selects a preset family at session start.
type Mode string

const (
	ModeSafe       Mode = "safe"
	ModeAggressive Mode = "aggressive"
)

// PlatformLimits holds the budgets and cooldowns for one platform.
// Zero-value hourly entries mean the action is hourly-unconstrained.
type PlatformLimits struct {
	Daily  map[Action]int
	Hourly map[Action]int

	CooldownBetweenActions  time.Duration
	CooldownBetweenProfiles time.Duration
	CooldownAfterFollow     time.Duration
	CooldownAfterDM         time.Duration
}

// DailyCeiling returns the daily budget for an action, falling back to the
// generic ceiling for unknown action types.
func (l PlatformLimits) DailyCeiling(action Action) int {
	if v, ok := l.Daily[action]; ok {
		return v
	}
	return GenericDailyCeiling
}

// HourlyCeiling returns the hourly budget for an action and whether one is
// configured at all.
func (l PlatformLimits) HourlyCeiling(action Action) (int, bool) {
	v, ok := l.Hourly[action]
	return v, ok
}

// CooldownFor returns the cooldown to observe after performing an action.
func (l PlatformLimits) CooldownFor(action Action) time.Duration {
	switch action {
	case ActionFollow:
		return l.CooldownAfterFollow
	case ActionDM:
		return l.CooldownAfterDM
	default:
		return l.CooldownBetweenActions
	}
}

var safeLimits = map[string]PlatformLimits{
	"instagram": {
		Daily: map[Action]int{
			ActionView: 150, ActionFollow: 15, ActionUnfollow: 10,
			ActionLike: 40, ActionComment: 8, ActionDM: 10,
		},
		Hourly: map[Action]int{
			ActionFollow: 3, ActionLike: 10, ActionDM: 2,
		},
		CooldownBetweenActions:  5 * time.Second,
		CooldownBetweenProfiles: 15 * time.Second,
		CooldownAfterFollow:     45 * time.Second,
		CooldownAfterDM:         120 * time.Second,
	},
	"tiktok": {
		Daily: map[Action]int{
			ActionView: 100, ActionFollow: 10, ActionUnfollow: 8,
			ActionLike: 30, ActionComment: 5, ActionDM: 5,
		},
		Hourly: map[Action]int{
			ActionFollow: 2, ActionLike: 8, ActionDM: 1,
		},
		CooldownBetweenActions:  6 * time.Second,
		CooldownBetweenProfiles: 20 * time.Second,
		CooldownAfterFollow:     60 * time.Second,
		CooldownAfterDM:         180 * time.Second,
	},
	"generic": {
		Daily: map[Action]int{
			ActionView: 500, ActionFollow: 100, ActionUnfollow: 100,
			ActionLike: 100, ActionComment: 50, ActionDM: 50,
		},
		Hourly: map[Action]int{
			ActionFollow: 20, ActionLike: 30, ActionDM: 10,
		},
		CooldownBetweenActions:  1 * time.Second,
		CooldownBetweenProfiles: 3 * time.Second,
		CooldownAfterFollow:     5 * time.Second,
		CooldownAfterDM:         10 * time.Second,
	},
}

var aggressiveLimits = map[string]PlatformLimits{
	"instagram": {
		Daily: map[Action]int{
			ActionView: 400, ActionFollow: 40, ActionUnfollow: 30,
			ActionLike: 100, ActionComment: 20, ActionDM: 50,
		},
		Hourly: map[Action]int{
			ActionFollow: 8, ActionLike: 20, ActionDM: 5,
		},
		CooldownBetweenActions:  3 * time.Second,
		CooldownBetweenProfiles: 8 * time.Second,
		CooldownAfterFollow:     20 * time.Second,
		CooldownAfterDM:         60 * time.Second,
	},
	"tiktok": {
		Daily: map[Action]int{
			ActionView: 300, ActionFollow: 25, ActionUnfollow: 20,
			ActionLike: 60, ActionComment: 10, ActionDM: 20,
		},
		Hourly: map[Action]int{
			ActionFollow: 5, ActionLike: 15, ActionDM: 3,
		},
		CooldownBetweenActions:  4 * time.Second,
		CooldownBetweenProfiles: 10 * time.Second,
		CooldownAfterFollow:     30 * time.Second,
		CooldownAfterDM:         90 * time.Second,
	},
}

// ForPlatform returns the preset limits for a platform in the given mode.
// Unknown platforms fall back to the safe "generic" preset.
func ForPlatform(platform string, mode Mode) PlatformLimits {
	table := safeLimits
	if mode == ModeAggressive {
		table = aggressiveLimits
	}
	if l, ok := table[platform]; ok {
		return l
	}
	return safeLimits["generic"]
}

// WarmupStage is one row of an age-indexed warmup schedule: the daily
// ceilings that apply once an account is at least AgeDays old.
type WarmupStage struct {
	AgeDays int
	Daily   map[Action]int
}

// Warmup schedules model gradual trust-building of a new account. A ceiling
// of 0 forbids that action outright during the stage.
var warmupSchedules = map[string][]WarmupStage{
	"instagram": {
		{0, map[Action]int{ActionView: 30, ActionFollow: 0, ActionLike: 5, ActionDM: 0}},
		{1, map[Action]int{ActionView: 40, ActionFollow: 2, ActionLike: 8, ActionDM: 0}},
		{2, map[Action]int{ActionView: 50, ActionFollow: 3, ActionLike: 10, ActionDM: 0}},
		{3, map[Action]int{ActionView: 60, ActionFollow: 4, ActionLike: 12, ActionDM: 2}},
		{4, map[Action]int{ActionView: 70, ActionFollow: 5, ActionLike: 15, ActionDM: 3}},
		{5, map[Action]int{ActionView: 80, ActionFollow: 6, ActionLike: 18, ActionDM: 4}},
		{6, map[Action]int{ActionView: 90, ActionFollow: 7, ActionLike: 20, ActionDM: 5}},
		{7, map[Action]int{ActionView: 100, ActionFollow: 8, ActionLike: 25, ActionDM: 6}},
		{14, map[Action]int{ActionView: 150, ActionFollow: 12, ActionLike: 35, ActionDM: 8}},
		{21, map[Action]int{ActionView: 200, ActionFollow: 15, ActionLike: 40, ActionDM: 10}},
		{30, map[Action]int{ActionView: 250, ActionFollow: 20, ActionLike: 50, ActionDM: 15}},
		{60, map[Action]int{ActionView: 300, ActionFollow: 25, ActionLike: 60, ActionDM: 20}},
		{180, map[Action]int{ActionView: 400, ActionFollow: 30, ActionLike: 80, ActionDM: 30}},
	},
	"tiktok": {
		{0, map[Action]int{ActionView: 20, ActionFollow: 0, ActionLike: 5, ActionDM: 0}},
		{7, map[Action]int{ActionView: 50, ActionFollow: 5, ActionLike: 15, ActionDM: 3}},
		{14, map[Action]int{ActionView: 80, ActionFollow: 8, ActionLike: 25, ActionDM: 5}},
		{30, map[Action]int{ActionView: 120, ActionFollow: 12, ActionLike: 35, ActionDM: 8}},
		{60, map[Action]int{ActionView: 150, ActionFollow: 15, ActionLike: 40, ActionDM: 10}},
	},
}

// Per-platform daily ceilings used when a session opts out of warmup
// (aggressive mode).
var aggressiveDaily = map[string]map[Action]int{
	"instagram": {
		ActionView: 500, ActionFollow: 40, ActionLike: 100,
		ActionDM: 50, ActionComment: 20,
	},
	"tiktok": {
		ActionView: 300, ActionFollow: 25, ActionLike: 60, ActionDM: 20,
	},
}

// WarmupDaily resolves the daily ceilings for an account of the given age:
// the stage with the greatest AgeDays threshold not exceeding ageDays wins.
// Unknown platforms use the instagram schedule.
func WarmupDaily(platform string, ageDays int) map[Action]int {
	schedule, ok := warmupSchedules[platform]
	if !ok {
		schedule = warmupSchedules["instagram"]
	}
	applicable := schedule[0].Daily
	for _, stage := range schedule {
		if ageDays >= stage.AgeDays {
			applicable = stage.Daily
		}
	}
	return applicable
}

// AggressiveDaily returns the flat aggressive-mode daily ceilings for a
// platform, ignoring account age. Unknown platforms use the instagram table.
func AggressiveDaily(platform string) map[Action]int {
	if t, ok := aggressiveDaily[platform]; ok {
		return t
	}
	return aggressiveDaily["instagram"]
}
