package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lifeline/internal/storage"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// allowedTransitions is the task state machine. done -> pending is the
// un-complete path; it clears completed_at but never retracts XP or an
// already-created recurring instance.
var allowedTransitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusDone},
	StatusInProgress: {StatusPending, StatusDone},
	StatusDone:       {StatusPending},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type CreateTaskInput struct {
	Title       string
	Description *string
	Project     *string
	Area        *string
	Notebook    *string
	DueDate     *time.Time
	Priority    int
	Tags        []string

	Recurrence          *Recurrence
	LinkedTransactionID *string
}

func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*storage.Task, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	ins := storage.TaskInsert{
		Title:               title,
		Description:         in.Description,
		Project:             in.Project,
		Area:                in.Area,
		Notebook:            in.Notebook,
		Priority:            in.Priority,
		Status:              StatusPending,
		Tags:                in.Tags,
		RecurInterval:       1,
		LinkedTransactionID: in.LinkedTransactionID,
	}
	if in.DueDate != nil {
		due := FormatDay(*in.DueDate)
		ins.DueDate = &due
	}
	if in.Recurrence != nil {
		if err := in.Recurrence.Validate(); err != nil {
			return nil, err
		}
		rt := string(in.Recurrence.Type)
		ins.RecurType = &rt
		ins.RecurInterval = in.Recurrence.Interval
		if in.Recurrence.Until != nil {
			until := FormatDay(*in.Recurrence.Until)
			ins.RecurUntil = &until
		}
	}

	maxPos, err := s.tasks.MaxPosition(ctx)
	if err != nil {
		return nil, err
	}
	ins.Position = maxPos + 1

	id, err := s.tasks.Insert(ctx, ins)
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

func (s *Service) GetTask(ctx context.Context, id int64) (*storage.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context) ([]storage.Task, error) {
	return s.tasks.ListAll(ctx)
}

// StartTask moves a pending task to in_progress.
func (s *Service) StartTask(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !transitionAllowed(t.Status, StatusInProgress) {
		return TransitionError{From: t.Status, To: StatusInProgress}
	}
	return s.tasks.UpdateStatus(ctx, id, StatusInProgress)
}

type CompleteTaskResult struct {
	TaskID      int64
	XPAwarded   int
	LevelBefore int
	LevelAfter  int
	LevelUp     bool
	Unlocked    []string

	// NextTaskID is set when a recurrence advance persisted a new instance.
	NextTaskID *int64
	NextDue    *string
}

// CompleteTask transitions a task to done: sets the completion timestamp,
// appends the task-completed progress event, recomputes stats, evaluates
// achievements and, for recurring tasks, persists the next instance. All
// stages run inside one transaction in that order.
func (s *Service) CompleteTask(ctx context.Context, id int64) (*CompleteTaskResult, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(t.Status, StatusDone) {
		return nil, TransitionError{From: t.Status, To: StatusDone}
	}

	now := s.now().UTC()
	res := &CompleteTaskResult{TaskID: id, XPAwarded: s.opts.TaskXP}

	err = s.withTx(ctx, func(r repos) error {
		before, err := s.recomputeStats(ctx, r, userID)
		if err != nil {
			return err
		}
		res.LevelBefore = before.Level

		if err := r.tasks.MarkDone(ctx, id, now); err != nil {
			return err
		}
		if err := r.stats.AppendProgress(ctx, userID, ProgressTaskCompleted, id, s.opts.TaskXP); err != nil {
			return err
		}

		after, err := s.recomputeStats(ctx, r, userID)
		if err != nil {
			return err
		}
		res.LevelAfter = after.Level
		res.LevelUp = after.Level > before.Level

		unlocked, err := s.evaluateAchievements(ctx, r, userID, now)
		if err != nil {
			return err
		}
		res.Unlocked = unlocked

		// The completed task keeps status done forever; the next occurrence
		// is an independent row.
		ins, err := Advance(t, now, s.opts.CopyLinkedTransaction)
		if err != nil {
			return err
		}
		if ins != nil {
			maxPos, err := r.tasks.MaxPosition(ctx)
			if err != nil {
				return err
			}
			ins.Position = maxPos + 1
			nextID, err := r.tasks.Insert(ctx, *ins)
			if err != nil {
				return err
			}
			res.NextTaskID = &nextID
			res.NextDue = ins.DueDate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReopenTask un-completes a done task. The reversal is deliberately
// asymmetric: counters, XP and any recurring instance created on completion
// all stand.
func (s *Service) ReopenTask(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !transitionAllowed(t.Status, StatusPending) && t.Status != StatusInProgress {
		return TransitionError{From: t.Status, To: StatusPending}
	}
	return s.tasks.Reopen(ctx, id)
}

// Reorder assigns sequential positions following the given order. Each
// update commits independently so a partial failure can honestly report
// which identifiers were not applied.
func (s *Service) Reorder(ctx context.Context, ids []int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	failed := map[int64]error{}
	for i, id := range ids {
		ok, err := s.tasks.SetPosition(ctx, id, i+1)
		if err != nil {
			failed[id] = err
			continue
		}
		if !ok {
			failed[id] = fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
	}
	if len(failed) > 0 {
		return &BulkError{Failed: failed}
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.requireUser(); err != nil {
		return err
	}
	if _, err := s.GetTask(ctx, id); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, id)
}

func (s *Service) AddSubtask(ctx context.Context, taskID int64, title string) (*storage.Subtask, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	existing, err := s.tasks.ListSubtasks(ctx, taskID)
	if err != nil {
		return nil, err
	}
	pos := 1
	if n := len(existing); n > 0 {
		pos = existing[n-1].Position + 1
	}
	id, err := s.tasks.InsertSubtask(ctx, taskID, title, pos)
	if err != nil {
		return nil, err
	}
	st, err := s.tasks.GetSubtask(ctx, id)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ToggleSubtask flips a subtask's done flag. Subtask completion is local to
// the task; it feeds neither the progress log nor the ledger.
func (s *Service) ToggleSubtask(ctx context.Context, id int64) (*storage.Subtask, error) {
	if _, err := s.requireUser(); err != nil {
		return nil, err
	}
	st, err := s.tasks.GetSubtask(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("subtask %d: %w", id, ErrNotFound)
	}
	if err := s.tasks.SetSubtaskDone(ctx, id, !st.Done); err != nil {
		return nil, err
	}
	st.Done = !st.Done
	return st, nil
}

func (s *Service) Subtasks(ctx context.Context, taskID int64) ([]storage.Subtask, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListSubtasks(ctx, taskID)
}
