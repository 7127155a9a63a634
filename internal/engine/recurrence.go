package engine

import (
	"fmt"
	"strings"
	"time"

	"lifeline/internal/storage"
)

type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurYearly  RecurrenceType = "yearly"
)

func (r RecurrenceType) IsValid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	default:
		return false
	}
}

func ParseRecurrenceType(input string) (RecurrenceType, error) {
	r := RecurrenceType(strings.TrimSpace(strings.ToLower(input)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: invalid recurrence type %q", ErrInvalidInput, input)
	}
	return r, nil
}

// Recurrence is a task's rule for generating its next occurrence after
// completion.
type Recurrence struct {
	Type     RecurrenceType
	Interval int
	Until    *time.Time
}

func (r Recurrence) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: invalid recurrence type %q", ErrInvalidInput, r.Type)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: recurrence interval must be >= 1", ErrInvalidInput)
	}
	return nil
}

// NextDue advances completedOn by one interval in the policy's unit.
// Month/year arithmetic clamps to the last valid day of the target month.
// Returns nil when the next due date falls past the end date.
func (r Recurrence) NextDue(completedOn time.Time) *time.Time {
	completedOn = DayOf(completedOn)

	var next time.Time
	switch r.Type {
	case RecurDaily:
		next = completedOn.AddDate(0, 0, r.Interval)
	case RecurWeekly:
		next = completedOn.AddDate(0, 0, 7*r.Interval)
	case RecurMonthly:
		next = addMonthsClamped(completedOn, r.Interval)
	case RecurYearly:
		next = addMonthsClamped(completedOn, 12*r.Interval)
	default:
		return nil
	}

	if r.Until != nil && next.After(DayOf(*r.Until)) {
		return nil
	}
	return &next
}

// recurrenceOf reads a task's stored recurrence policy, nil when it has none.
func recurrenceOf(t *storage.Task) (*Recurrence, error) {
	if t.RecurType == nil {
		return nil, nil
	}
	rt, err := ParseRecurrenceType(*t.RecurType)
	if err != nil {
		return nil, err
	}
	rec := &Recurrence{Type: rt, Interval: t.RecurInterval}
	if rec.Interval < 1 {
		rec.Interval = 1
	}
	if t.RecurUntil != nil {
		until, err := ParseDay(*t.RecurUntil)
		if err != nil {
			return nil, err
		}
		rec.Until = &until
	}
	return rec, nil
}

// Advance produces the next instance for a completed recurring task, or nil
// when the task does not recur or its recurrence has ended. The completed
// task is never mutated; the new instance copies policy and descriptive
// fields, resets status to pending and clears the completion timestamp.
// linked_transaction_id is carried only when copyLinkedTransaction is set.
func Advance(t *storage.Task, completedOn time.Time, copyLinkedTransaction bool) (*storage.TaskInsert, error) {
	rec, err := recurrenceOf(t)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	next := rec.NextDue(completedOn)
	if next == nil {
		return nil, nil
	}
	due := FormatDay(*next)

	ins := &storage.TaskInsert{
		Title:         t.Title,
		Description:   t.Description,
		Project:       t.Project,
		Area:          t.Area,
		Notebook:      t.Notebook,
		DueDate:       &due,
		Priority:      t.Priority,
		Status:        StatusPending,
		Tags:          t.Tags,
		RecurType:     t.RecurType,
		RecurInterval: rec.Interval,
		RecurUntil:    t.RecurUntil,
	}
	if copyLinkedTransaction {
		ins.LinkedTransactionID = t.LinkedTransactionID
	}
	return ins, nil
}
