package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StatsRepo covers the derived side of the ledger: user_stats, streak
// records, the progress log and achievement unlocks. All writes here are
// full replaces or append/insert-if-absent, never in-place increments.
type StatsRepo struct {
	db DBTX
}

func NewStatsRepo(db DBTX) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) GetStats(ctx context.Context, userID string) (*UserStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, xp_total, level, habits_completed, tasks_completed,
			current_streak, longest_streak, updated_at
		FROM user_stats
		WHERE user_id = ?
	`, userID)

	var s UserStats
	if err := row.Scan(&s.UserID, &s.XPTotal, &s.Level, &s.HabitsCompleted,
		&s.TasksCompleted, &s.CurrentStreak, &s.LongestStreak, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("stats get: %w", err)
	}
	return &s, nil
}

// ReplaceStats writes the whole row; the aggregator recomputes it from the
// progress log and streak records every time.
func (r *StatsRepo) ReplaceStats(ctx context.Context, s UserStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, xp_total, level, habits_completed, tasks_completed, current_streak, longest_streak, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			xp_total = excluded.xp_total,
			level = excluded.level,
			habits_completed = excluded.habits_completed,
			tasks_completed = excluded.tasks_completed,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			updated_at = CURRENT_TIMESTAMP
	`, s.UserID, s.XPTotal, s.Level, s.HabitsCompleted, s.TasksCompleted, s.CurrentStreak, s.LongestStreak)
	if err != nil {
		return fmt.Errorf("stats replace: %w", err)
	}
	return nil
}

func (r *StatsRepo) GetStreak(ctx context.Context, habitID int64) (*StreakRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT habit_id, current, longest, last_completed, updated_at
		FROM streaks
		WHERE habit_id = ?
	`, habitID)

	var (
		sr   StreakRecord
		last sql.NullString
	)
	if err := row.Scan(&sr.HabitID, &sr.Current, &sr.Longest, &last, &sr.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("streak get: %w", err)
	}
	sr.LastCompleted = nullString(last)
	return &sr, nil
}

func (r *StatsRepo) ReplaceStreak(ctx context.Context, sr StreakRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO streaks (habit_id, current, longest, last_completed, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(habit_id) DO UPDATE SET
			current = excluded.current,
			longest = excluded.longest,
			last_completed = excluded.last_completed,
			updated_at = CURRENT_TIMESTAMP
	`, sr.HabitID, sr.Current, sr.Longest, sr.LastCompleted)
	if err != nil {
		return fmt.Errorf("streak replace: %w", err)
	}
	return nil
}

// StreakSummary returns the max current/longest streak across all habits.
func (r *StatsRepo) StreakSummary(ctx context.Context) (current int, longest int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(current), 0), COALESCE(MAX(longest), 0) FROM streaks
	`)
	if err := row.Scan(&current, &longest); err != nil {
		return 0, 0, fmt.Errorf("streak summary: %w", err)
	}
	return current, longest, nil
}

func (r *StatsRepo) AppendProgress(ctx context.Context, userID, kind string, refID int64, xp int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO progress_log (user_id, kind, ref_id, xp) VALUES (?, ?, ?, ?)
	`, userID, kind, refID, xp)
	if err != nil {
		return fmt.Errorf("progress append: %w", err)
	}
	return nil
}

// ProgressTotals aggregates the append-only log: per-kind event counts and
// the XP sum.
func (r *StatsRepo) ProgressTotals(ctx context.Context, userID string) (counts map[string]int, xpTotal int, err error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), COALESCE(SUM(xp), 0)
		FROM progress_log
		WHERE user_id = ?
		GROUP BY kind
	`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("progress totals: %w", err)
	}
	defer rows.Close()

	counts = map[string]int{}
	for rows.Next() {
		var (
			kind string
			n    int
			xp   int
		)
		if err := rows.Scan(&kind, &n, &xp); err != nil {
			return nil, 0, fmt.Errorf("progress totals scan: %w", err)
		}
		counts[kind] = n
		xpTotal += xp
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("progress totals rows: %w", err)
	}
	return counts, xpTotal, nil
}

// InsertUnlock records a first unlock; it is a no-op when the type is
// already unlocked and reports whether a row was written.
func (r *StatsRepo) InsertUnlock(ctx context.Context, userID, typ string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO achievements (user_id, type, unlocked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, type) DO NOTHING
	`, userID, typ, at)
	if err != nil {
		return false, fmt.Errorf("achievement insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("achievement rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *StatsRepo) ListUnlocks(ctx context.Context, userID string) ([]AchievementUnlock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, type, unlocked_at
		FROM achievements
		WHERE user_id = ?
		ORDER BY unlocked_at ASC, type ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("achievement list: %w", err)
	}
	defer rows.Close()

	var out []AchievementUnlock
	for rows.Next() {
		var a AchievementUnlock
		if err := rows.Scan(&a.UserID, &a.Type, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("achievement scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("achievement rows: %w", err)
	}
	return out, nil
}
