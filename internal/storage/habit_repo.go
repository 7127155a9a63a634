package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type HabitRepo struct {
	db DBTX
}

func NewHabitRepo(db DBTX) *HabitRepo {
	return &HabitRepo{db: db}
}

type HabitInsert struct {
	Title string
	Area  *string
	Color string

	FreqType      string
	DaysPerWeek   *int
	TimesPerMonth *int
	FreqDays      []int

	TrackKind string
	Target    *decimal.Decimal
	Unit      *string
}

func (r *HabitRepo) Insert(ctx context.Context, in HabitInsert) (int64, error) {
	var daysJSON *string
	if len(in.FreqDays) > 0 {
		data, err := json.Marshal(in.FreqDays)
		if err != nil {
			return 0, fmt.Errorf("marshal freq days: %w", err)
		}
		s := string(data)
		daysJSON = &s
	}
	var target *string
	if in.Target != nil {
		s := in.Target.String()
		target = &s
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO habits (
			title, area, color,
			freq_type, days_per_week, times_per_month, freq_days,
			track_kind, target, unit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Title, in.Area, in.Color, in.FreqType, in.DaysPerWeek, in.TimesPerMonth, daysJSON, in.TrackKind, target, in.Unit)
	if err != nil {
		return 0, fmt.Errorf("habit insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("habit last insert id: %w", err)
	}
	return id, nil
}

const habitColumns = `id, title, area, color,
	freq_type, days_per_week, times_per_month, freq_days,
	track_kind, target, unit, created_at, archived_at`

func (r *HabitRepo) Get(ctx context.Context, id int64) (*Habit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
	return scanHabit(row)
}

// ListAll returns every habit; archived ones included when includeArchived.
func (r *HabitRepo) ListAll(ctx context.Context, includeArchived bool) ([]Habit, error) {
	q := `SELECT ` + habitColumns + ` FROM habits`
	if !includeArchived {
		q += ` WHERE archived_at IS NULL`
	}
	q += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("habit list: %w", err)
	}
	defer rows.Close()

	var out []Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("habit list rows: %w", err)
	}
	return out, nil
}

func (r *HabitRepo) SetArchived(ctx context.Context, id int64, at *time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE habits SET archived_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("habit archive: %w", err)
	}
	return nil
}

// Delete removes the habit row; completions and the streak record go with it
// via ON DELETE CASCADE.
func (r *HabitRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("habit delete: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHabit(row scanner) (*Habit, error) {
	var (
		id            int64
		title         string
		area          sql.NullString
		color         string
		freqType      string
		daysPerWeek   sql.NullInt64
		timesPerMonth sql.NullInt64
		freqDaysRaw   sql.NullString
		trackKind     string
		targetRaw     sql.NullString
		unit          sql.NullString
		createdAt     time.Time
		archivedAt    sql.NullTime
	)

	if err := row.Scan(
		&id, &title, &area, &color,
		&freqType, &daysPerWeek, &timesPerMonth, &freqDaysRaw,
		&trackKind, &targetRaw, &unit, &createdAt, &archivedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("habit scan: %w", err)
	}

	h := &Habit{
		ID:        id,
		Title:     title,
		Color:     color,
		FreqType:  freqType,
		TrackKind: trackKind,
		CreatedAt: createdAt,
	}
	h.Area = nullString(area)
	h.Unit = nullString(unit)
	if daysPerWeek.Valid {
		v := int(daysPerWeek.Int64)
		h.DaysPerWeek = &v
	}
	if timesPerMonth.Valid {
		v := int(timesPerMonth.Int64)
		h.TimesPerMonth = &v
	}
	if freqDaysRaw.Valid && freqDaysRaw.String != "" {
		if err := json.Unmarshal([]byte(freqDaysRaw.String), &h.FreqDays); err != nil {
			return nil, fmt.Errorf("unmarshal freq days: %w", err)
		}
	}
	if targetRaw.Valid && targetRaw.String != "" {
		d, err := decimal.NewFromString(targetRaw.String)
		if err != nil {
			return nil, fmt.Errorf("parse habit target: %w", err)
		}
		h.Target = &d
	}
	if archivedAt.Valid {
		v := archivedAt.Time
		h.ArchivedAt = &v
	}
	return h, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
