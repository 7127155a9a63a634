package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

type Habit struct {
	ID    int64
	Title string
	Area  *string
	Color string

	FreqType      string
	DaysPerWeek   *int
	TimesPerMonth *int
	FreqDays      []int // weekday numbers 0 (Sunday) .. 6, JSON column

	TrackKind string
	Target    *decimal.Decimal
	Unit      *string

	CreatedAt  time.Time
	ArchivedAt *time.Time
}

type Completion struct {
	ID        int64
	HabitID   int64
	Day       string // calendar date, 'YYYY-MM-DD'
	Value     decimal.Decimal
	CreatedAt time.Time
}

type StreakRecord struct {
	HabitID       int64
	Current       int
	Longest       int
	LastCompleted *string // 'YYYY-MM-DD'
	UpdatedAt     time.Time
}

type Task struct {
	ID          int64
	Title       string
	Description *string
	Project     *string
	Area        *string
	Notebook    *string

	DueDate  *string // 'YYYY-MM-DD'
	Priority int
	Status   string
	Tags     []string // JSON column

	RecurType     *string
	RecurInterval int
	RecurUntil    *string // 'YYYY-MM-DD'

	Position            int
	CompletedAt         *time.Time
	LinkedTransactionID *string
	CreatedAt           time.Time
}

type Subtask struct {
	ID       int64
	TaskID   int64
	Title    string
	Done     bool
	Position int
}

type UserStats struct {
	UserID          string
	XPTotal         int
	Level           int
	HabitsCompleted int
	TasksCompleted  int
	CurrentStreak   int
	LongestStreak   int
	UpdatedAt       time.Time
}

type ProgressEntry struct {
	ID        int64
	UserID    string
	Kind      string
	RefID     int64
	XP        int
	CreatedAt time.Time
}

type AchievementUnlock struct {
	UserID     string
	Type       string
	UnlockedAt time.Time
}
