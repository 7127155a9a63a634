package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"lifeline/internal/storage"
)

type FrequencyType string

const (
	FrequencyDaily         FrequencyType = "daily"
	FrequencyTimesPerWeek  FrequencyType = "times_per_week"
	FrequencySpecificDays  FrequencyType = "specific_days"
	FrequencyTimesPerMonth FrequencyType = "times_per_month"
)

func (f FrequencyType) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyTimesPerWeek, FrequencySpecificDays, FrequencyTimesPerMonth:
		return true
	default:
		return false
	}
}

// FrequencyPolicy describes how often a habit is meant to be performed. The
// engine stores and echoes it; only variant-field presence is validated,
// never scheduling semantics.
type FrequencyPolicy struct {
	Type          FrequencyType
	DaysPerWeek   int
	Days          []int // weekday numbers 0 (Sunday) .. 6
	TimesPerMonth int
}

func (p FrequencyPolicy) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: invalid frequency type %q", ErrInvalidInput, p.Type)
	}
	switch p.Type {
	case FrequencyTimesPerWeek:
		if p.DaysPerWeek < 1 {
			return fmt.Errorf("%w: days per week is required", ErrInvalidInput)
		}
	case FrequencySpecificDays:
		if len(p.Days) == 0 {
			return fmt.Errorf("%w: weekday list is required", ErrInvalidInput)
		}
		for _, d := range p.Days {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: invalid weekday %d", ErrInvalidInput, d)
			}
		}
	case FrequencyTimesPerMonth:
		if p.TimesPerMonth < 1 {
			return fmt.Errorf("%w: times per month is required", ErrInvalidInput)
		}
	}
	return nil
}

type TrackingKind string

const (
	TrackingBoolean      TrackingKind = "boolean"
	TrackingQuantitative TrackingKind = "quantitative"
)

func (k TrackingKind) IsValid() bool {
	return k == TrackingBoolean || k == TrackingQuantitative
}

// TrackingPolicy describes what a completion records: a done flag or a
// measured quantity against a target.
type TrackingPolicy struct {
	Kind   TrackingKind
	Target decimal.Decimal
	Unit   string
}

func (p TrackingPolicy) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("%w: invalid tracking kind %q", ErrInvalidInput, p.Kind)
	}
	if p.Kind == TrackingQuantitative && p.Target.Sign() <= 0 {
		return fmt.Errorf("%w: quantitative habits need a positive target", ErrInvalidInput)
	}
	return nil
}

type CreateHabitInput struct {
	Title     string
	Area      *string
	Color     string
	Frequency FrequencyPolicy
	Tracking  TrackingPolicy
}

func (s *Service) CreateHabit(ctx context.Context, in CreateHabitInput) (*storage.Habit, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Frequency.Type == "" {
		in.Frequency.Type = FrequencyDaily
	}
	if in.Tracking.Kind == "" {
		in.Tracking.Kind = TrackingBoolean
	}
	if err := in.Frequency.Validate(); err != nil {
		return nil, err
	}
	if err := in.Tracking.Validate(); err != nil {
		return nil, err
	}

	ins := storage.HabitInsert{
		Title:     title,
		Area:      in.Area,
		Color:     in.Color,
		FreqType:  string(in.Frequency.Type),
		FreqDays:  in.Frequency.Days,
		TrackKind: string(in.Tracking.Kind),
	}
	if in.Frequency.DaysPerWeek > 0 {
		v := in.Frequency.DaysPerWeek
		ins.DaysPerWeek = &v
	}
	if in.Frequency.TimesPerMonth > 0 {
		v := in.Frequency.TimesPerMonth
		ins.TimesPerMonth = &v
	}
	if in.Tracking.Kind == TrackingQuantitative {
		t := in.Tracking.Target
		ins.Target = &t
		if in.Tracking.Unit != "" {
			u := in.Tracking.Unit
			ins.Unit = &u
		}
	}

	id, err := s.habits.Insert(ctx, ins)
	if err != nil {
		return nil, err
	}
	return s.GetHabit(ctx, id)
}

func (s *Service) GetHabit(ctx context.Context, id int64) (*storage.Habit, error) {
	h, err := s.habits.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("habit %d: %w", id, ErrNotFound)
	}
	return h, nil
}

func (s *Service) ListHabits(ctx context.Context, includeArchived bool) ([]storage.Habit, error) {
	return s.habits.ListAll(ctx, includeArchived)
}

// ArchiveHabit hides the habit from active views; its ledger stays intact.
func (s *Service) ArchiveHabit(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if _, err := s.GetHabit(ctx, id); err != nil {
		return err
	}
	now := s.now().UTC()
	return s.habits.SetArchived(ctx, id, &now)
}

func (s *Service) UnarchiveHabit(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if _, err := s.GetHabit(ctx, id); err != nil {
		return err
	}
	return s.habits.SetArchived(ctx, id, nil)
}

// DeleteHabit removes the habit and cascades to its completions and streak
// record.
func (s *Service) DeleteHabit(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if _, err := s.GetHabit(ctx, id); err != nil {
		return err
	}
	return s.habits.Delete(ctx, id)
}
