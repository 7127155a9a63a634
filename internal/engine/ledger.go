package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lifeline/internal/storage"
)

// Progress log event kinds. The log is append-only: reversal operations
// never remove entries, which is what keeps XP and completion counters from
// ever decrementing.
const (
	ProgressHabitCompleted      = "habit_completed"
	ProgressTaskCompleted       = "task_completed"
	ProgressAchievementUnlocked = "achievement_unlocked"
)

// Default XP amounts, overridable through configuration.
const (
	DefaultHabitXP = 10
	DefaultTaskXP  = 25
)

type ToggleResult struct {
	Added      bool
	Completion *storage.Completion
	Streak     *storage.StreakRecord
	Unlocked   []string
}

// Toggle creates the completion for (habitID, day) when absent and deletes
// it when present. Calling twice returns the ledger to its original state.
// Every successful mutation recomputes the streak record and user stats
// inside the same transaction as the ledger write.
func (s *Service) Toggle(ctx context.Context, habitID int64, day time.Time) (*ToggleResult, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}

	dayKey := FormatDay(DayOf(day))
	res := &ToggleResult{}

	err = s.withTx(ctx, func(r repos) error {
		existing, err := r.completions.Get(ctx, habitID, dayKey)
		if err != nil {
			return err
		}

		if existing == nil {
			c, err := r.completions.Insert(ctx, habitID, dayKey, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			res.Added = true
			res.Completion = c
			if err := r.stats.AppendProgress(ctx, userID, ProgressHabitCompleted, habitID, s.opts.HabitXP); err != nil {
				return err
			}
		} else {
			if _, err := r.completions.Delete(ctx, habitID, dayKey); err != nil {
				return err
			}
		}

		return s.finishHabitMutation(ctx, r, habitID, userID, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetValue upserts the completion for (habitID, day) with an explicit
// quantitative value. Non-positive values are rejected before any write.
func (s *Service) SetValue(ctx context.Context, habitID int64, day time.Time, value decimal.Decimal) (*ToggleResult, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: completion value must be positive", ErrInvalidInput)
	}
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}

	dayKey := FormatDay(DayOf(day))
	res := &ToggleResult{}

	err = s.withTx(ctx, func(r repos) error {
		existing, err := r.completions.Get(ctx, habitID, dayKey)
		if err != nil {
			return err
		}
		if err := r.completions.Upsert(ctx, habitID, dayKey, value); err != nil {
			return err
		}
		c, err := r.completions.Get(ctx, habitID, dayKey)
		if err != nil {
			return err
		}
		res.Added = existing == nil
		res.Completion = c

		// Only a new ledger row is forward progress; revising the value of
		// an already-logged day must not double count.
		if existing == nil {
			if err := r.stats.AppendProgress(ctx, userID, ProgressHabitCompleted, habitID, s.opts.HabitXP); err != nil {
				return err
			}
		}

		return s.finishHabitMutation(ctx, r, habitID, userID, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Remove deletes the completion if present; an absent completion is a no-op,
// not an error.
func (s *Service) Remove(ctx context.Context, habitID int64, day time.Time) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return err
	}

	dayKey := FormatDay(DayOf(day))
	return s.withTx(ctx, func(r repos) error {
		if _, err := r.completions.Delete(ctx, habitID, dayKey); err != nil {
			return err
		}
		return s.finishHabitMutation(ctx, r, habitID, userID, nil)
	})
}

// finishHabitMutation runs the derived-state stages that follow every ledger
// write: streak recompute, stats recompute, achievement evaluation. Each
// stage is a full recomputation, so a retried mutation converges.
func (s *Service) finishHabitMutation(ctx context.Context, r repos, habitID int64, userID string, res *ToggleResult) error {
	now := s.now().UTC()

	streak, err := s.recomputeStreak(ctx, r, habitID, now)
	if err != nil {
		return err
	}
	if res != nil {
		res.Streak = streak
	}

	if _, err := s.recomputeStats(ctx, r, userID); err != nil {
		return err
	}
	unlocked, err := s.evaluateAchievements(ctx, r, userID, now)
	if err != nil {
		return err
	}
	if res != nil {
		res.Unlocked = unlocked
	}
	return nil
}

// Completions lists the habit's ledger rows in date order.
func (s *Service) Completions(ctx context.Context, habitID int64) ([]storage.Completion, error) {
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	return s.completions.ListByHabit(ctx, habitID)
}
