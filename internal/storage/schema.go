package storage

import (
	"context"
	"database/sql"
	"fmt"
)

func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS habits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			area TEXT,
			color TEXT NOT NULL DEFAULT '',

			freq_type TEXT NOT NULL DEFAULT 'daily',
			days_per_week INTEGER,
			times_per_month INTEGER,
			freq_days TEXT,

			track_kind TEXT NOT NULL DEFAULT 'boolean',
			target TEXT,
			unit TEXT,

			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			archived_at DATETIME
		);`,
		// One row per habit per calendar day. The UNIQUE constraint is the
		// ledger's no-duplicate invariant; day is stored as 'YYYY-MM-DD'.
		`CREATE TABLE IF NOT EXISTS habit_completions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			habit_id INTEGER NOT NULL,
			day TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(habit_id, day),
			FOREIGN KEY(habit_id) REFERENCES habits(id) ON DELETE CASCADE
		);`,
		// Materialized cache, fully recomputable from habit_completions.
		`CREATE TABLE IF NOT EXISTS streaks (
			habit_id INTEGER PRIMARY KEY,
			current INTEGER NOT NULL DEFAULT 0,
			longest INTEGER NOT NULL DEFAULT 0,
			last_completed TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(habit_id) REFERENCES habits(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			project TEXT,
			area TEXT,
			notebook TEXT,

			due_date TEXT,
			priority INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			tags TEXT,

			recur_type TEXT,
			recur_interval INTEGER NOT NULL DEFAULT 1,
			recur_until TEXT,

			position INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			linked_transaction_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS subtasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS user_stats (
			user_id TEXT PRIMARY KEY,
			xp_total INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			habits_completed INTEGER NOT NULL DEFAULT 0,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Append-only forward-progress log. Reversals never delete rows, so
		// stats recomputed from here never decrement.
		`CREATE TABLE IF NOT EXISTS progress_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ref_id INTEGER NOT NULL,
			xp INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS achievements (
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			unlocked_at DATETIME NOT NULL,
			PRIMARY KEY(user_id, type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_habit_completions_habit_day ON habit_completions(habit_id, day);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(position);`,
		`CREATE INDEX IF NOT EXISTS idx_subtasks_task_id ON subtasks(task_id);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_log_user_kind ON progress_log(user_id, kind);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
