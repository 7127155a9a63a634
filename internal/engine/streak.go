package engine

import (
	"context"
	"sort"
	"time"

	"lifeline/internal/storage"
)

// ComputeStreak derives current and longest streaks from a habit's
// completion dates. A run is a maximal set of calendar-consecutive days; the
// run is current when it ends on today or yesterday (one-day grace so a
// habit not yet marked today doesn't show as broken).
//
// Runs are over calendar days regardless of the habit's frequency policy; a
// 3x/week habit done Monday and Friday yields two 1-runs, not a 2-run.
func ComputeStreak(dates []time.Time, today time.Time) (current, longest int) {
	if len(dates) == 0 {
		return 0, 0
	}

	days := make([]time.Time, 0, len(dates))
	seen := map[string]bool{}
	for _, d := range dates {
		day := DayOf(d)
		k := FormatDay(day)
		if seen[k] {
			continue
		}
		seen[k] = true
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	today = DayOf(today)
	yesterday := today.AddDate(0, 0, -1)

	run := 1
	for i := 1; i <= len(days); i++ {
		endOfRun := i == len(days)
		if !endOfRun && days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
			continue
		}
		last := days[i-1]
		if run > longest {
			longest = run
		}
		if last.Equal(today) || last.Equal(yesterday) {
			current = run
		}
		run = 1
	}
	return current, longest
}

// recomputeStreak rebuilds the habit's streak record from the full ledger
// and replaces it. Safe to call after any ledger mutation; convergent
// regardless of call order.
func (s *Service) recomputeStreak(ctx context.Context, r repos, habitID int64, today time.Time) (*storage.StreakRecord, error) {
	dayStrs, err := r.completions.ListDays(ctx, habitID)
	if err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, len(dayStrs))
	for _, ds := range dayStrs {
		d, err := ParseDay(ds)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}

	current, longest := ComputeStreak(days, today)
	rec := storage.StreakRecord{
		HabitID: habitID,
		Current: current,
		Longest: longest,
	}
	if len(dayStrs) > 0 {
		last := dayStrs[len(dayStrs)-1]
		rec.LastCompleted = &last
	}
	if err := r.stats.ReplaceStreak(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Streak returns the habit's materialized streak record, recomputing it
// first so callers never see a stale cache.
func (s *Service) Streak(ctx context.Context, habitID int64) (*storage.StreakRecord, error) {
	if _, err := s.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	var rec *storage.StreakRecord
	err := s.withTx(ctx, func(r repos) error {
		var err error
		rec, err = s.recomputeStreak(ctx, r, habitID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
