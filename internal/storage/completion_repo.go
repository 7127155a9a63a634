package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CompletionRepo struct {
	db DBTX
}

func NewCompletionRepo(db DBTX) *CompletionRepo {
	return &CompletionRepo{db: db}
}

func (r *CompletionRepo) Get(ctx context.Context, habitID int64, day string) (*Completion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, habit_id, day, value, created_at
		FROM habit_completions
		WHERE habit_id = ? AND day = ?
	`, habitID, day)
	return scanCompletion(row)
}

func (r *CompletionRepo) Insert(ctx context.Context, habitID int64, day string, value decimal.Decimal) (*Completion, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO habit_completions (habit_id, day, value)
		VALUES (?, ?, ?)
	`, habitID, day, value.String())
	if err != nil {
		return nil, fmt.Errorf("completion insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("completion last insert id: %w", err)
	}
	return r.getByID(ctx, id)
}

// Upsert writes value for (habitID, day), last write wins at the row level.
func (r *CompletionRepo) Upsert(ctx context.Context, habitID int64, day string, value decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO habit_completions (habit_id, day, value)
		VALUES (?, ?, ?)
		ON CONFLICT(habit_id, day) DO UPDATE SET value = excluded.value
	`, habitID, day, value.String())
	if err != nil {
		return fmt.Errorf("completion upsert: %w", err)
	}
	return nil
}

// Delete removes the completion if present and reports whether a row existed.
func (r *CompletionRepo) Delete(ctx context.Context, habitID int64, day string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM habit_completions WHERE habit_id = ? AND day = ?
	`, habitID, day)
	if err != nil {
		return false, fmt.Errorf("completion delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completion delete rows affected: %w", err)
	}
	return n > 0, nil
}

// ListDays returns every completed day for the habit, ascending.
func (r *CompletionRepo) ListDays(ctx context.Context, habitID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day FROM habit_completions WHERE habit_id = ? ORDER BY day ASC
	`, habitID)
	if err != nil {
		return nil, fmt.Errorf("completion days: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("completion day scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completion days rows: %w", err)
	}
	return out, nil
}

func (r *CompletionRepo) ListByHabit(ctx context.Context, habitID int64) ([]Completion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, habit_id, day, value, created_at
		FROM habit_completions
		WHERE habit_id = ?
		ORDER BY day ASC
	`, habitID)
	if err != nil {
		return nil, fmt.Errorf("completion list: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("completion list rows: %w", err)
	}
	return out, nil
}

func (r *CompletionRepo) getByID(ctx context.Context, id int64) (*Completion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, habit_id, day, value, created_at
		FROM habit_completions
		WHERE id = ?
	`, id)
	return scanCompletion(row)
}

func scanCompletion(row scanner) (*Completion, error) {
	var (
		c        Completion
		valueRaw string
		created  time.Time
	)
	if err := row.Scan(&c.ID, &c.HabitID, &c.Day, &valueRaw, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("completion scan: %w", err)
	}
	v, err := decimal.NewFromString(valueRaw)
	if err != nil {
		return nil, fmt.Errorf("parse completion value: %w", err)
	}
	c.Value = v
	c.CreatedAt = created
	return &c, nil
}
