// Package run drives an outreach session: it walks the checkpointed target
// list and, for each target, threads every action through the protector,
// the rate limiter, and the retry manager before touching the platform.
package run

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"outreach/internal/checkpoint"
	"outreach/internal/config"
	"outreach/internal/limits"
	"outreach/internal/logging"
	"outreach/internal/message"
	"outreach/internal/metrics"
	"outreach/internal/platform"
	"outreach/internal/protect"
	"outreach/internal/ratelimit"
	"outreach/internal/retry"
	"outreach/internal/store/ledger"
	"outreach/internal/util"
)

// Runner owns one session's moving parts. Construct with New, then Run once.
type Runner struct {
	cfg       config.Config
	db        *ledger.DB
	limiter   *ratelimit.Limiter
	prot      *protect.Protector
	retrier   *retry.Manager
	exec      platform.Executor
	challenge platform.ChallengeDetector
	msgs      *message.Store

	// Global floor on action pacing, independent of per-action cooldowns.
	pacer *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

func New(cfg config.Config, db *ledger.DB, limiter *ratelimit.Limiter, prot *protect.Protector,
	retrier *retry.Manager, exec platform.Executor, challenge platform.ChallengeDetector) *Runner {
	if challenge == nil {
		challenge = platform.NopChallengeDetector{}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Runner{
		cfg:       cfg,
		db:        db,
		limiter:   limiter,
		prot:      prot,
		retrier:   retrier,
		exec:      exec,
		challenge: challenge,
		msgs:      message.NewStore(rng),
		pacer:     rate.NewLimiter(rate.Every(2*time.Second), 1),
		now:       time.Now,
		sleep:     sleepCtx,
		rng:       rng,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stop reasons that finish handles specially. Every other reason leaves
// the checkpoint paused for a later resume.
const (
	stopCancelled = "cancelled"
	stopTargetCap = "session target cap reached"
)

// Result summarizes a finished session.
type Result struct {
	SessionID string
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Follows   int
	DMsSent   int
	Errors    int
	// Why the loop ended early, empty for a full run.
	StoppedReason string
}

// Run processes targets until the list is exhausted, the session cap is
// hit, the protector denies further work, or the context is cancelled.
func (r *Runner) Run(ctx context.Context, cp *checkpoint.Manager, targetURLs []string) (Result, error) {
	plat := r.cfg.Account.Platform
	user := r.cfg.Account.Username

	r.prot.RegisterAccount(user, plat, r.cfg.AccountCreatedAt())
	if err := cp.SetTargets(targetURLs); err != nil {
		return Result{}, err
	}
	for _, u := range targetURLs {
		if err := r.db.UpsertTarget(ctx, u, plat, util.ExtractUsername(u), r.now()); err != nil {
			logging.Warn("target_upsert", map[string]any{"url": u, "error": err.Error()})
		}
	}
	if err := r.db.StartSession(ctx, cp.SessionID(), plat, r.now()); err != nil {
		logging.Warn("session_start", map[string]any{"error": err.Error()})
	}

	res := Result{SessionID: cp.SessionID()}
	pending := cp.Pending()
	maxTargets := r.cfg.Session.MaxTargets
	maxErrors := r.cfg.MaxErrors()

	for i, url := range pending {
		if maxTargets > 0 && res.Processed >= maxTargets {
			res.StoppedReason = stopTargetCap
			break
		}
		if ctx.Err() != nil {
			res.StoppedReason = stopCancelled
			break
		}
		if maxErrors > 0 && res.Errors >= maxErrors {
			res.StoppedReason = fmt.Sprintf("too many errors (%d)", res.Errors)
			cp.AddNote(res.StoppedReason)
			break
		}
		if dec := r.prot.IsSafeToAct(ctx, plat, limits.ActionView, user); !dec.OK {
			res.StoppedReason = dec.Reason
			cp.AddNote("safety stop: " + dec.Reason)
			logging.Warn("safety_stop", map[string]any{"gate": string(dec.Gate), "reason": dec.Reason})
			break
		}
		if err := r.pacer.Wait(ctx); err != nil {
			res.StoppedReason = stopCancelled
			break
		}

		logging.Info("target_start", map[string]any{
			"url": url, "index": i + 1, "pending": len(pending),
		})
		cp.MarkProcessing(url)
		start := r.now()
		outcome, skip, err := r.processTarget(ctx, url, &res)
		metrics.ObserveTargetDuration(start)
		res.Processed++

		switch {
		case skip != "":
			res.Skipped++
			cp.MarkSkipped(url, skip)
			r.updateTarget(ctx, url, "skipped", skip, outcome)
			metrics.IncAction(plat, string(limits.ActionView), "skipped")
		case err != nil:
			res.Failed++
			res.Errors++
			cp.MarkFailed(url, err.Error())
			r.updateTarget(ctx, url, "failed", err.Error(), outcome)
			r.noteWarning(plat, user, err.Error())
			r.prot.RecordAction(plat, limits.ActionView, user, false)
			metrics.IncAction(plat, string(limits.ActionView), "failed")
			logging.Error("target_failed", map[string]any{"url": url, "error": err.Error()})
		default:
			res.Succeeded++
			cp.MarkCompleted(url, outcome)
			r.updateTarget(ctx, url, "completed", "", outcome)
			r.prot.RecordAction(plat, limits.ActionView, user, true)
			if _, err := r.limiter.RecordAction(ctx, plat, limits.ActionView, util.ExtractUsername(url), "success", ""); err != nil {
				logging.Warn("record_view", map[string]any{"error": err.Error()})
			}
			metrics.IncAction(plat, string(limits.ActionView), "success")
		}

		// Human-like gap before the next target.
		delayAction := limits.ActionView
		if r.cfg.Session.SendDM {
			delayAction = limits.ActionDM
		}
		if err := r.sleep(ctx, r.prot.SmartDelay(delayAction)); err != nil {
			res.StoppedReason = stopCancelled
			break
		}
	}

	r.finish(ctx, cp, &res)
	return res, nil
}

// processTarget runs the per-target action chain. A non-empty skip reason
// means the target was intentionally left alone; an error means it failed.
func (r *Runner) processTarget(ctx context.Context, url string, res *Result) (map[string]any, string, error) {
	plat := r.cfg.Account.Platform
	user := r.cfg.Account.Username

	out := r.retrier.Execute(ctx, "open_profile", func(ctx context.Context) error {
		if err := r.exec.Open(ctx, url); err != nil {
			return err
		}
		present, kind, err := r.challenge.Detect(ctx)
		if err != nil {
			return err
		}
		if present {
			solved, err := r.challenge.Resolve(ctx, kind)
			if err != nil {
				return err
			}
			if !solved {
				return platform.NewError(platform.KindRateLimit, "challenge", "unresolved "+kind)
			}
		}
		return nil
	})
	if !out.Success {
		return nil, "", outcomeErr(out)
	}

	var info platform.ProfileInfo
	out = r.retrier.Execute(ctx, "view_profile", func(ctx context.Context) error {
		var err error
		info, err = r.exec.ViewProfile(ctx)
		return err
	})
	if !out.Success {
		return nil, "", outcomeErr(out)
	}
	if info.Username == "" {
		info.Username = util.ExtractUsername(url)
	}

	result := map[string]any{
		"username":  info.Username,
		"followers": info.Followers,
	}

	if info.Private {
		return result, "profile is private", nil
	}
	if min := r.cfg.Session.MinFollowers; min > 0 && info.Followers < min {
		return result, fmt.Sprintf("only %d followers (need %d+)", info.Followers, min), nil
	}

	if r.cfg.Session.SendFollow {
		r.tryFollow(ctx, plat, user, info, result, res)
	}
	if r.cfg.Session.SendDM {
		if err := r.tryDM(ctx, plat, user, info, result, res); err != nil {
			return result, "", err
		}
	}
	return result, "", nil
}

func (r *Runner) tryFollow(ctx context.Context, plat, user string, info platform.ProfileInfo, result map[string]any, res *Result) {
	already, err := r.limiter.HasInteracted(ctx, info.Username, plat, limits.ActionFollow)
	if err != nil || already {
		if already {
			result["followed"] = "skipped: already followed"
		}
		return
	}
	if ok, err := r.limiter.CanPerform(ctx, plat, limits.ActionFollow); err != nil || !ok {
		result["followed"] = "denied: follow budget spent"
		return
	}
	if dec := r.prot.IsSafeToAct(ctx, plat, limits.ActionFollow, user); !dec.OK {
		result["followed"] = "denied: " + dec.Reason
		return
	}

	out := r.retrier.Execute(ctx, "follow", func(ctx context.Context) error {
		return r.exec.Follow(ctx)
	})
	if !out.Success {
		result["followed"] = false
		r.prot.RecordAction(plat, limits.ActionFollow, user, false)
		r.noteWarning(plat, user, outcomeErr(out).Error())
		metrics.IncAction(plat, string(limits.ActionFollow), "failed")
		return
	}
	result["followed"] = true
	res.Follows++
	r.prot.RecordAction(plat, limits.ActionFollow, user, true)
	if _, err := r.limiter.RecordAction(ctx, plat, limits.ActionFollow, info.Username, "success", ""); err != nil {
		logging.Warn("record_follow", map[string]any{"error": err.Error()})
	}
	metrics.IncAction(plat, string(limits.ActionFollow), "success")
}

// tryDM sends at most one DM per unique target ever. A spent budget is a
// recorded denial, not a failure. A ledger fault aborts the target.
func (r *Runner) tryDM(ctx context.Context, plat, user string, info platform.ProfileInfo, result map[string]any, res *Result) error {
	already, err := r.limiter.HasInteracted(ctx, info.Username, plat, limits.ActionDM)
	if err != nil {
		return fmt.Errorf("dm dedupe check: %w", err)
	}
	if already {
		result["dm"] = "skipped: already contacted"
		return nil
	}
	ok, err := r.limiter.CanPerform(ctx, plat, limits.ActionDM)
	if err != nil {
		return fmt.Errorf("dm budget check: %w", err)
	}
	if !ok {
		result["dm"] = "denied: dm limit reached"
		metrics.IncDenial("dm_budget")
		logging.Info("dm_denied", map[string]any{"username": info.Username, "reason": "dm limit reached"})
		return nil
	}
	if dec := r.prot.IsSafeToAct(ctx, plat, limits.ActionDM, user); !dec.OK {
		result["dm"] = "denied: " + dec.Reason
		return nil
	}

	tpl, ok := r.msgs.Pick(r.cfg.Session.MessageCategory)
	if !ok {
		return errors.New("no dm templates available")
	}
	text := message.Personalize(tpl.Text, info)

	out := r.retrier.Execute(ctx, "send_dm", func(ctx context.Context) error {
		return r.exec.SendDM(ctx, text)
	})
	if !out.Success {
		result["dm"] = false
		r.prot.RecordAction(plat, limits.ActionDM, user, false)
		r.noteWarning(plat, user, outcomeErr(out).Error())
		metrics.IncAction(plat, string(limits.ActionDM), "failed")
		return nil
	}

	result["dm"] = true
	res.DMsSent++
	r.prot.RecordAction(plat, limits.ActionDM, user, true)
	if _, err := r.limiter.RecordAction(ctx, plat, limits.ActionDM, info.Username, "success", tpl.Name); err != nil {
		logging.Warn("record_dm", map[string]any{"error": err.Error()})
	}
	metrics.IncAction(plat, string(limits.ActionDM), "success")
	logging.Info("dm_sent", map[string]any{"username": info.Username, "template": tpl.Name})
	return nil
}

// noteWarning scans failure text for platform warning banners and feeds any
// hit into the protector.
func (r *Runner) noteWarning(plat, user, text string) {
	if wt, ok := platform.DetectWarning(text); ok {
		r.prot.RecordWarning(plat, user, wt)
	}
}

func (r *Runner) updateTarget(ctx context.Context, url, status, notes string, result map[string]any) {
	followers := 0
	if result != nil {
		if f, ok := result["followers"].(int); ok {
			followers = f
		}
	}
	if err := r.db.UpdateTargetStatus(ctx, url, status, notes, followers, r.now()); err != nil {
		logging.Warn("target_update", map[string]any{"url": url, "error": err.Error()})
	}
}

func (r *Runner) finish(ctx context.Context, cp *checkpoint.Manager, res *Result) {
	actions := res.Succeeded + res.Follows + res.DMsSent
	if err := r.db.EndSession(ctx, res.SessionID, res.Processed, actions, res.Errors, res.StoppedReason, r.now()); err != nil {
		logging.Warn("session_end", map[string]any{"error": err.Error()})
	}

	// Only a drained target list or the per-run cap finishes the session.
	// Error-threshold and safety stops leave pending targets behind, so the
	// checkpoint stays resumable.
	switch res.StoppedReason {
	case "", stopTargetCap:
		note := res.StoppedReason
		if note == "" {
			note = "session finished"
		}
		if err := cp.Complete(note); err != nil {
			logging.Error("checkpoint_complete", map[string]any{"error": err.Error()})
		}
	case stopCancelled:
		// Close marks a still-running session interrupted.
		if err := cp.Close(); err != nil {
			logging.Error("checkpoint_close", map[string]any{"error": err.Error()})
		}
	default:
		if err := cp.Pause(res.StoppedReason); err != nil {
			logging.Error("checkpoint_pause", map[string]any{"error": err.Error()})
		}
	}

	p := cp.Progress()
	logging.Info("session_summary", map[string]any{
		"session": res.SessionID, "processed": res.Processed,
		"succeeded": res.Succeeded, "failed": res.Failed, "skipped": res.Skipped,
		"follows": res.Follows, "dms": res.DMsSent, "percent": fmt.Sprintf("%.0f", p.Percent),
	})
}

func outcomeErr(out retry.Outcome) error {
	if out.FinalErr != nil {
		return out.FinalErr
	}
	if len(out.Errors) > 0 {
		return errors.New(strings.Join(out.Errors, "; "))
	}
	return errors.New("operation failed")
}
