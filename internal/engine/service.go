package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"lifeline/internal/storage"
)

// Options carries the externally supplied policy surface: the authenticated
// user, the level curve, the achievement rule table and the XP amounts.
// Content lives in configuration; the engine only consumes it.
type Options struct {
	UserID string

	Curve LevelCurve
	Rules []AchievementRule

	HabitXP int
	TaskXP  int

	// CopyLinkedTransaction controls whether a recurrence advance carries
	// linked_transaction_id over to the next instance.
	CopyLinkedTransaction bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Service struct {
	db   *sql.DB
	opts Options

	habits      *storage.HabitRepo
	completions *storage.CompletionRepo
	tasks       *storage.TaskRepo
	stats       *storage.StatsRepo
}

func NewService(db *sql.DB, opts Options) *Service {
	if opts.Curve == nil {
		opts.Curve = DefaultLevelCurve()
	}
	if opts.HabitXP <= 0 {
		opts.HabitXP = DefaultHabitXP
	}
	if opts.TaskXP <= 0 {
		opts.TaskXP = DefaultTaskXP
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:          db,
		opts:        opts,
		habits:      storage.NewHabitRepo(db),
		completions: storage.NewCompletionRepo(db),
		tasks:       storage.NewTaskRepo(db),
		stats:       storage.NewStatsRepo(db),
	}
}

func (s *Service) HabitRepo() *storage.HabitRepo           { return s.habits }
func (s *Service) TaskRepo() *storage.TaskRepo             { return s.tasks }
func (s *Service) CompletionRepo() *storage.CompletionRepo { return s.completions }
func (s *Service) StatsRepo() *storage.StatsRepo           { return s.stats }

func (s *Service) now() time.Time { return s.opts.Now() }

// requireUser resolves the current authenticated user id; mutations fail
// with ErrNotAuthenticated when no valid identity is configured.
func (s *Service) requireUser() (string, error) {
	if s.opts.UserID == "" {
		return "", ErrNotAuthenticated
	}
	if _, err := uuid.Parse(s.opts.UserID); err != nil {
		return "", ErrNotAuthenticated
	}
	return s.opts.UserID, nil
}

// repos is a transaction-scoped repo set so every pipeline stage of one
// logical mutation sees the same store state.
type repos struct {
	habits      *storage.HabitRepo
	completions *storage.CompletionRepo
	tasks       *storage.TaskRepo
	stats       *storage.StatsRepo
}

func newRepos(db storage.DBTX) repos {
	return repos{
		habits:      storage.NewHabitRepo(db),
		completions: storage.NewCompletionRepo(db),
		tasks:       storage.NewTaskRepo(db),
		stats:       storage.NewStatsRepo(db),
	}
}

func (s *Service) withTx(ctx context.Context, fn func(r repos) error) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(newRepos(tx))
	})
}
