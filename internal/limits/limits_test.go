package limits

import "testing"

func TestWarmupStageSelection(t *testing.T) {
	// Age between thresholds picks the greatest stage not exceeding it.
	daily := WarmupDaily("instagram", 10)
	if daily[ActionView] != 100 || daily[ActionDM] != 6 {
		t.Fatalf("age 10 should use the day-7 stage, got %v", daily)
	}
	daily = WarmupDaily("instagram", 0)
	if daily[ActionFollow] != 0 || daily[ActionDM] != 0 {
		t.Fatalf("brand new account must not follow or dm, got %v", daily)
	}
	daily = WarmupDaily("instagram", 365)
	if daily[ActionView] != 400 {
		t.Fatalf("old account should use final stage, got %v", daily)
	}
	daily = WarmupDaily("tiktok", 20)
	if daily[ActionView] != 80 {
		t.Fatalf("tiktok age 20 should use day-14 stage, got %v", daily)
	}
}

func TestWarmupUnknownPlatformFallsBack(t *testing.T) {
	got := WarmupDaily("threads", 7)
	want := WarmupDaily("instagram", 7)
	if got[ActionView] != want[ActionView] {
		t.Fatalf("unknown platform should use instagram schedule")
	}
}

func TestDailyCeilingGenericFallback(t *testing.T) {
	l := ForPlatform("instagram", ModeSafe)
	if c := l.DailyCeiling("story_view"); c != GenericDailyCeiling {
		t.Fatalf("unknown action should get generic ceiling, got %d", c)
	}
	if c := l.DailyCeiling(ActionDM); c != 10 {
		t.Fatalf("safe instagram dm ceiling = 10, got %d", c)
	}
}

func TestForPlatformPresets(t *testing.T) {
	safe := ForPlatform("tiktok", ModeSafe)
	agg := ForPlatform("tiktok", ModeAggressive)
	if agg.DailyCeiling(ActionFollow) <= safe.DailyCeiling(ActionFollow) {
		t.Fatal("aggressive follow budget should exceed safe")
	}
	if agg.CooldownAfterDM >= safe.CooldownAfterDM {
		t.Fatal("aggressive dm cooldown should be shorter")
	}
	// Unknown platform gets the conservative generic preset.
	gen := ForPlatform("linkedin", ModeSafe)
	if gen.DailyCeiling(ActionView) != 500 {
		t.Fatalf("generic view ceiling = 500, got %d", gen.DailyCeiling(ActionView))
	}
}

func TestCooldownFor(t *testing.T) {
	l := ForPlatform("instagram", ModeSafe)
	if l.CooldownFor(ActionFollow) != l.CooldownAfterFollow {
		t.Fatal("follow cooldown mismatch")
	}
	if l.CooldownFor(ActionDM) != l.CooldownAfterDM {
		t.Fatal("dm cooldown mismatch")
	}
	if l.CooldownFor(ActionLike) != l.CooldownBetweenActions {
		t.Fatal("default cooldown mismatch")
	}
}

func TestHourlyCeilingPresence(t *testing.T) {
	l := ForPlatform("instagram", ModeSafe)
	if _, ok := l.HourlyCeiling(ActionView); ok {
		t.Fatal("view should be hourly-unconstrained in the preset")
	}
	if c, ok := l.HourlyCeiling(ActionDM); !ok || c != 2 {
		t.Fatalf("safe instagram hourly dm = 2, got %d %v", c, ok)
	}
}
