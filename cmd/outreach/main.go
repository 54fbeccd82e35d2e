package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"outreach/internal/analytics"
	"outreach/internal/checkpoint"
	"outreach/internal/cmdlog"
	"outreach/internal/config"
	"outreach/internal/limits"
	"outreach/internal/logging"
	"outreach/internal/metrics"
	"outreach/internal/platform"
	"outreach/internal/protect"
	"outreach/internal/ratelimit"
	"outreach/internal/retry"
	"outreach/internal/run"
	"outreach/internal/schedule"
	"outreach/internal/store/ledger"
	"outreach/internal/targets"
	"outreach/internal/theme"
)

func main() {
	_ = godotenv.Load()

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "run":
		cmdRun()
	case "resume":
		cmdResume()
	case "sessions":
		cmdSessions()
	case "status":
		cmdStatus()
	case "limits":
		cmdLimits()
	case "history":
		cmdHistory()
	case "stats":
		cmdStats()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: outreach <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./outreach.yaml")
	fmt.Println("  run         Process targets from the configured CSV")
	fmt.Println("  resume      Continue the most recent unfinished session")
	fmt.Println("  sessions    List checkpointed sessions")
	fmt.Println("  status      Show account protection status")
	fmt.Println("  limits      Show today's budget consumption")
	fmt.Println("  history     Show recent action history")
	fmt.Println("  stats       Show hourly action breakdown")
}

func die(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		die(err)
	}
	logging.SetLevel(cfg.Logging.Level)
	if cfg.Metrics.Addr != "" {
		metrics.StartServer(cfg.Metrics.Addr)
	}
	return cfg
}

func openLedger(cfg config.Config) *ledger.DB {
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	db, err := ledger.Open(cfg.Storage.DBPath)
	if err != nil {
		die(err)
	}
	return db
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./outreach.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		die(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	targetsPath := fs.String("targets", "", "targets CSV (overrides config)")
	session := fs.String("session", "", "session id to create or resume")
	dry := fs.Bool("dry", true, "simulate actions instead of driving a browser")
	_ = fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	if *targetsPath != "" {
		cfg.Storage.TargetsCSV = *targetsPath
	}
	runSession(cfg, *session, *dry)
}

func cmdResume() {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	dry := fs.Bool("dry", true, "simulate actions instead of driving a browser")
	_ = fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	finder := checkpoint.Finder{Dir: cfg.Storage.CheckpointDir}
	id, ok := finder.FindResumable(cfg.Account.Platform)
	if !ok {
		fmt.Println("No resumable session found.")
		return
	}
	fmt.Println("Resuming session:", id)
	runSession(cfg, id, *dry)
}

func runSession(cfg config.Config, sessionID string, dry bool) {
	theme.PrintBanner()
	if !dry {
		die(fmt.Errorf("no browser adapter configured; run with -dry"))
	}

	err := cmdlog.Run("run", func() error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db := openLedger(cfg)
		defer db.Close()

		urls, err := targets.Load(cfg.Storage.TargetsCSV)
		if err != nil {
			return err
		}

		cp, err := checkpoint.New(sessionID, cfg.Account.Platform, cfg.Storage.CheckpointDir, cfg.FlushInterval())
		if err != nil {
			return err
		}
		defer cp.Close()

		limiter := ratelimit.New(db, cfg.Mode())
		limiter.AddWarningCallback(func(plat string, action limits.Action, remaining int) {
			fmt.Printf("! %s %s budget low: %d remaining\n", plat, action, remaining)
		})
		prot := protect.New(db, protect.Options{
			Aggressive:        cfg.Mode() == limits.ModeAggressive,
			EnforceHumanHours: cfg.Protection.EnforceHumanHours,
			WakeHour:          cfg.Protection.WakeHour,
		})
		retrier := retry.New(retry.DefaultConfig())

		runner := run.New(cfg, db, limiter, prot, retrier,
			platform.NewMockExecutor(), platform.NopChallengeDetector{})

		res, err := runner.Run(ctx, cp, urls)
		if err != nil {
			_ = cp.MarkCrashed(err)
			return err
		}

		fmt.Printf("Session %s: processed=%d ok=%d failed=%d skipped=%d follows=%d dms=%d\n",
			res.SessionID, res.Processed, res.Succeeded, res.Failed, res.Skipped, res.Follows, res.DMsSent)
		if res.StoppedReason != "" {
			fmt.Println("Stopped early:", res.StoppedReason)
		}
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)

	sums, err := checkpoint.Finder{Dir: cfg.Storage.CheckpointDir}.List()
	if err != nil {
		die(err)
	}
	if len(sums) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, s := range sums {
		fmt.Printf("%-40s %-10s %-12s %d/%d  %s\n", s.SessionID, s.Platform, s.Status, s.Processed, s.Total, s.Updated)
	}
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)

	db := openLedger(cfg)
	defer db.Close()

	prot := protect.New(db, protect.Options{
		Aggressive:        cfg.Mode() == limits.ModeAggressive,
		EnforceHumanHours: cfg.Protection.EnforceHumanHours,
		WakeHour:          cfg.Protection.WakeHour,
	})
	prot.RegisterAccount(cfg.Account.Username, cfg.Account.Platform, cfg.AccountCreatedAt())
	rep := prot.StatusReport(cfg.Account.Platform, cfg.Account.Username)
	if rep == nil {
		die(fmt.Errorf("account not registered"))
	}

	fmt.Printf("Account:    %s@%s\n", rep.Username, rep.Platform)
	fmt.Printf("Age:        %d days (warmup complete: %v)\n", rep.AccountAgeDays, rep.WarmupComplete)
	fmt.Printf("Trust:      %.1f  Risk: %s\n", rep.TrustScore, rep.Risk)
	fmt.Printf("Warnings:   %d\n", rep.Warnings)
	if rep.Paused {
		fmt.Printf("Paused:     until %s\n", rep.PauseUntil.Format(time.RFC3339))
	}
	fmt.Println("Today's limits:")
	for _, a := range []limits.Action{limits.ActionView, limits.ActionFollow, limits.ActionLike, limits.ActionComment, limits.ActionDM} {
		if n, ok := rep.CurrentLimits[a]; ok {
			fmt.Printf("  %-8s %d\n", a, n)
		}
	}
	fmt.Println("Activity windows:")
	windows := prot.Windows(cfg.Account.Platform, cfg.Account.Username)
	for _, w := range windows {
		fmt.Printf("  %02d:00-%02d:00\n", w[0], w[1])
	}
	fmt.Println("Next window:", schedule.NextActive(time.Now(), windows).Format(time.RFC3339))
}

func cmdLimits() {
	fs := flag.NewFlagSet("limits", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)

	db := openLedger(cfg)
	defer db.Close()

	limiter := ratelimit.New(db, cfg.Mode())
	status, err := limiter.LimitStatus(context.Background(), cfg.Account.Platform)
	if err != nil {
		die(err)
	}
	fmt.Printf("Budgets for %s (%s mode):\n", status.Platform, cfg.Mode())
	for a, used := range status.Daily {
		fmt.Printf("  %-8s used=%-4d remaining=%d\n", a, used, status.Remaining[a])
	}
	for _, w := range status.Warnings {
		fmt.Println("  !", w)
	}
}

func cmdHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	action := fs.String("action", "", "filter by action type")
	limit := fs.Int("limit", 20, "max entries")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)

	db := openLedger(cfg)
	defer db.Close()

	entries, err := db.History(context.Background(), cfg.Account.Platform, limits.Action(*action), *limit)
	if err != nil {
		die(err)
	}
	if len(entries) == 0 {
		fmt.Println("No actions recorded.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-8s %-10s %-20s %s\n",
			e.TS.Format("2006-01-02 15:04:05"), e.Action, e.Status, e.Username, e.Details)
	}
}

func cmdStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cfgPath := fs.String("config", "./outreach.yaml", "config path")
	limit := fs.Int("limit", 500, "max entries to aggregate")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)

	db := openLedger(cfg)
	defer db.Close()

	entries, err := db.History(context.Background(), cfg.Account.Platform, "", *limit)
	if err != nil {
		die(err)
	}
	if len(entries) == 0 {
		fmt.Println("No actions recorded.")
		return
	}
	buckets := analytics.HourlyActions(entries)
	for _, k := range analytics.SortedBucketKeys(buckets) {
		fmt.Printf("%s -> %v\n", k.Format("2006-01-02 15:00"), buckets[k])
	}
	fmt.Printf("Success rate: %.0f%% over %d actions\n", analytics.SuccessRate(entries)*100, len(entries))
}
