package engine

import (
	"context"
	"fmt"
	"time"

	"lifeline/internal/storage"
)

type Requirement string

const (
	RequireHabitsCompleted Requirement = "habits_completed"
	RequireTasksCompleted  Requirement = "tasks_completed"
	RequireStreak          Requirement = "streak"
	RequireLevel           Requirement = "level"
)

func (r Requirement) IsValid() bool {
	switch r {
	case RequireHabitsCompleted, RequireTasksCompleted, RequireStreak, RequireLevel:
		return true
	default:
		return false
	}
}

// AchievementRule is one row of the externally supplied rule table. The
// engine evaluates requirement against stats and records first unlocks; it
// defines no rule content of its own.
type AchievementRule struct {
	Type        string
	Requirement Requirement
	Target      int
	XPReward    int
}

func (r AchievementRule) Validate() error {
	if r.Type == "" {
		return fmt.Errorf("%w: achievement rule needs a type", ErrInvalidInput)
	}
	if !r.Requirement.IsValid() {
		return fmt.Errorf("%w: invalid requirement %q for achievement %q", ErrInvalidInput, r.Requirement, r.Type)
	}
	if r.Target < 1 {
		return fmt.Errorf("%w: achievement %q needs a positive target", ErrInvalidInput, r.Type)
	}
	return nil
}

// recomputeStats rebuilds UserStats from the append-only progress log and
// the streak records, then replaces the row. Because the inputs only grow,
// recomputation is both idempotent and monotone: retrying a mutation or
// reversing a completion never decrements a counter.
func (s *Service) recomputeStats(ctx context.Context, r repos, userID string) (*storage.UserStats, error) {
	counts, xpTotal, err := r.stats.ProgressTotals(ctx, userID)
	if err != nil {
		return nil, err
	}
	current, longest, err := r.stats.StreakSummary(ctx)
	if err != nil {
		return nil, err
	}

	stats := storage.UserStats{
		UserID:          userID,
		XPTotal:         xpTotal,
		Level:           LevelForXP(s.opts.Curve, xpTotal),
		HabitsCompleted: counts[ProgressHabitCompleted],
		TasksCompleted:  counts[ProgressTaskCompleted],
		CurrentStreak:   current,
		LongestStreak:   longest,
	}
	if err := r.stats.ReplaceStats(ctx, stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// evaluateAchievements checks every configured rule not yet unlocked against
// the current stats. Newly met rules are recorded with now as the unlock
// time and their XP reward appended to the progress log; unlocks are
// monotonic, so re-evaluation of an unlocked type is a no-op.
//
// Reward XP can push the level past another rule's target, so evaluation
// repeats until a pass unlocks nothing. Each unlock is recorded at most
// once, which bounds the passes at len(Rules)+1.
func (s *Service) evaluateAchievements(ctx context.Context, r repos, userID string, now time.Time) ([]string, error) {
	if len(s.opts.Rules) == 0 {
		return nil, nil
	}
	for _, rule := range s.opts.Rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
	}

	stats, err := r.stats.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, nil
	}

	var newlyUnlocked []string
	for {
		var pass []string
		for _, rule := range s.opts.Rules {
			if metric(stats, rule.Requirement) < rule.Target {
				continue
			}
			inserted, err := r.stats.InsertUnlock(ctx, userID, rule.Type, now)
			if err != nil {
				return nil, err
			}
			if !inserted {
				continue
			}
			pass = append(pass, rule.Type)
			if rule.XPReward > 0 {
				if err := r.stats.AppendProgress(ctx, userID, ProgressAchievementUnlocked, 0, rule.XPReward); err != nil {
					return nil, err
				}
			}
		}
		if len(pass) == 0 {
			return newlyUnlocked, nil
		}
		newlyUnlocked = append(newlyUnlocked, pass...)
		stats, err = s.recomputeStats(ctx, r, userID)
		if err != nil {
			return nil, err
		}
	}
}

func metric(stats *storage.UserStats, req Requirement) int {
	switch req {
	case RequireHabitsCompleted:
		return stats.HabitsCompleted
	case RequireTasksCompleted:
		return stats.TasksCompleted
	case RequireStreak:
		return stats.LongestStreak
	case RequireLevel:
		return stats.Level
	default:
		return 0
	}
}

// Stats returns the user's aggregate record, recomputed from the progress
// log so a caller always sees converged derived state.
func (s *Service) Stats(ctx context.Context) (*storage.UserStats, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	var stats *storage.UserStats
	err = s.withTx(ctx, func(r repos) error {
		var err error
		stats, err = s.recomputeStats(ctx, r, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// XPToNextLevel reports the threshold for the next level and the XP still
// missing.
func (s *Service) XPToNextLevel(stats *storage.UserStats) (nextThreshold, remaining int) {
	nextThreshold = s.opts.Curve(stats.Level + 1)
	remaining = nextThreshold - stats.XPTotal
	if remaining < 0 {
		remaining = 0
	}
	return nextThreshold, remaining
}

func (s *Service) Achievements(ctx context.Context) ([]storage.AchievementUnlock, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	return s.stats.ListUnlocks(ctx, userID)
}

// Rules exposes the configured rule table, for display surfaces.
func (s *Service) Rules() []AchievementRule {
	out := make([]AchievementRule, len(s.opts.Rules))
	copy(out, s.opts.Rules)
	return out
}
