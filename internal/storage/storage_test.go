package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testUserID = "00000000-0000-4000-8000-000000000001"

func newTestDB(t *testing.T) *testStore {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(ctx, path)
	require.NoError(t, err, "open test database")

	t.Cleanup(func() { _ = db.Close() })

	return &testStore{
		habits:      NewHabitRepo(db),
		completions: NewCompletionRepo(db),
		tasks:       NewTaskRepo(db),
		stats:       NewStatsRepo(db),
	}
}

type testStore struct {
	habits      *HabitRepo
	completions *CompletionRepo
	tasks       *TaskRepo
	stats       *StatsRepo
}

func (s *testStore) mustHabit(t *testing.T, title string) int64 {
	t.Helper()
	id, err := s.habits.Insert(context.Background(), HabitInsert{
		Title:     title,
		FreqType:  "daily",
		TrackKind: "boolean",
	})
	require.NoError(t, err)
	return id
}

func TestHabitRoundtrip(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	area := "health"
	unit := "ml"
	target := decimal.NewFromInt(2000)
	id, err := s.habits.Insert(ctx, HabitInsert{
		Title:     "Hydrate",
		Area:      &area,
		Color:     "#00aaff",
		FreqType:  "specific_days",
		FreqDays:  []int{1, 3, 5},
		TrackKind: "quantitative",
		Target:    &target,
		Unit:      &unit,
	})
	require.NoError(t, err)

	h, err := s.habits.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, "Hydrate", h.Title)
	require.Equal(t, []int{1, 3, 5}, h.FreqDays)
	require.NotNil(t, h.Target)
	require.True(t, h.Target.Equal(target), "target %s", h.Target)
	require.Equal(t, "ml", *h.Unit)
	require.Nil(t, h.ArchivedAt)
}

func TestHabitGetMissingReturnsNil(t *testing.T) {
	s := newTestDB(t)

	h, err := s.habits.Get(context.Background(), 12345)
	require.NoError(t, err)
	require.Nil(t, h)
}

func TestCompletionUniquePerDay(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	id := s.mustHabit(t, "Read")

	one := decimal.NewFromInt(1)
	_, err := s.completions.Insert(ctx, id, "2024-03-10", one)
	require.NoError(t, err)

	_, err = s.completions.Insert(ctx, id, "2024-03-10", one)
	require.Error(t, err, "second insert for the same (habit, day) must fail")

	// A different day is fine.
	_, err = s.completions.Insert(ctx, id, "2024-03-11", one)
	require.NoError(t, err)
}

func TestCompletionUpsertRevisesValue(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	id := s.mustHabit(t, "Hydrate")

	require.NoError(t, s.completions.Upsert(ctx, id, "2024-03-10", decimal.NewFromInt(1500)))
	require.NoError(t, s.completions.Upsert(ctx, id, "2024-03-10", decimal.NewFromInt(2000)))

	c, err := s.completions.Get(ctx, id, "2024-03-10")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, c.Value.Equal(decimal.NewFromInt(2000)), "value %s", c.Value)

	days, err := s.completions.ListDays(ctx, id)
	require.NoError(t, err)
	require.Len(t, days, 1)
}

func TestCompletionDeleteReportsExistence(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	id := s.mustHabit(t, "Walk")

	existed, err := s.completions.Delete(ctx, id, "2024-03-10")
	require.NoError(t, err)
	require.False(t, existed)

	_, err = s.completions.Insert(ctx, id, "2024-03-10", decimal.NewFromInt(1))
	require.NoError(t, err)

	existed, err = s.completions.Delete(ctx, id, "2024-03-10")
	require.NoError(t, err)
	require.True(t, existed)
}

func TestHabitDeleteCascades(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	id := s.mustHabit(t, "Doomed")

	_, err := s.completions.Insert(ctx, id, "2024-03-10", decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NoError(t, s.stats.ReplaceStreak(ctx, StreakRecord{HabitID: id, Current: 1, Longest: 1}))

	require.NoError(t, s.habits.Delete(ctx, id))

	days, err := s.completions.ListDays(ctx, id)
	require.NoError(t, err)
	require.Empty(t, days)

	sr, err := s.stats.GetStreak(ctx, id)
	require.NoError(t, err)
	require.Nil(t, sr)
}

// SQLite scopes PRAGMA foreign_keys to a single connection, so enforcement
// has to hold on every connection the pool hands out, not just the one Open
// first touched.
func TestDeleteCascadesOnSecondConnection(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	habits := NewHabitRepo(db)
	completions := NewCompletionRepo(db)

	id, err := habits.Insert(ctx, HabitInsert{Title: "Stretch", FreqType: "daily", TrackKind: "boolean"})
	require.NoError(t, err)
	_, err = completions.Insert(ctx, id, "2024-03-10", decimal.NewFromInt(1))
	require.NoError(t, err)

	// Hold one connection so the delete below is forced onto another.
	first, err := db.Conn(ctx)
	require.NoError(t, err)
	defer first.Close()

	second, err := db.Conn(ctx)
	require.NoError(t, err)
	defer second.Close()

	var enforced int
	require.NoError(t, second.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&enforced))
	require.Equal(t, 1, enforced, "foreign keys disabled on pooled connection")

	require.NoError(t, NewHabitRepo(second).Delete(ctx, id))

	days, err := NewCompletionRepo(first).ListDays(ctx, id)
	require.NoError(t, err)
	require.Empty(t, days, "completions orphaned after delete on second connection")
}

func TestTaskPositions(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	max, err := s.tasks.MaxPosition(ctx)
	require.NoError(t, err)
	require.Zero(t, max)

	a, err := s.tasks.Insert(ctx, TaskInsert{Title: "a", Status: "pending", Position: 1, RecurInterval: 1})
	require.NoError(t, err)
	b, err := s.tasks.Insert(ctx, TaskInsert{Title: "b", Status: "pending", Position: 2, RecurInterval: 1})
	require.NoError(t, err)

	max, err = s.tasks.MaxPosition(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, max)

	ok, err := s.tasks.SetPosition(ctx, a, 5)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.tasks.SetPosition(ctx, 999, 1)
	require.NoError(t, err)
	require.False(t, ok, "position update of a missing task reports false")

	list, err := s.tasks.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, b, list[0].ID, "list follows position order")
	require.Equal(t, a, list[1].ID)
}

func TestTaskDoneAndReopen(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	id, err := s.tasks.Insert(ctx, TaskInsert{Title: "t", Status: "pending", Position: 1, RecurInterval: 1})
	require.NoError(t, err)

	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.tasks.MarkDone(ctx, id, at))

	got, err := s.tasks.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "done", got.Status)
	require.NotNil(t, got.CompletedAt)

	require.NoError(t, s.tasks.Reopen(ctx, id))
	got, err = s.tasks.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "pending", got.Status)
	require.Nil(t, got.CompletedAt)
}

func TestTaskTagsRoundtrip(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	id, err := s.tasks.Insert(ctx, TaskInsert{
		Title:         "tagged",
		Status:        "pending",
		Position:      1,
		RecurInterval: 1,
		Tags:          []string{"money", "home"},
	})
	require.NoError(t, err)

	got, err := s.tasks.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"money", "home"}, got.Tags)
}

func TestSubtasks(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	taskID, err := s.tasks.Insert(ctx, TaskInsert{Title: "parent", Status: "pending", Position: 1, RecurInterval: 1})
	require.NoError(t, err)

	s1, err := s.tasks.InsertSubtask(ctx, taskID, "first", 1)
	require.NoError(t, err)
	_, err = s.tasks.InsertSubtask(ctx, taskID, "second", 2)
	require.NoError(t, err)

	require.NoError(t, s.tasks.SetSubtaskDone(ctx, s1, true))

	subs, err := s.tasks.ListSubtasks(ctx, taskID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.True(t, subs[0].Done)
	require.False(t, subs[1].Done)

	// Deleting the parent takes the subtasks with it.
	require.NoError(t, s.tasks.Delete(ctx, taskID))
	subs, err = s.tasks.ListSubtasks(ctx, taskID)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestProgressLogAggregates(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.stats.AppendProgress(ctx, testUserID, "habit_completed", 1, 10))
	require.NoError(t, s.stats.AppendProgress(ctx, testUserID, "habit_completed", 2, 10))
	require.NoError(t, s.stats.AppendProgress(ctx, testUserID, "task_completed", 3, 25))
	require.NoError(t, s.stats.AppendProgress(ctx, testUserID, "achievement_unlocked", 0, 50))

	counts, xp, err := s.stats.ProgressTotals(ctx, testUserID)
	require.NoError(t, err)
	require.Equal(t, 2, counts["habit_completed"])
	require.Equal(t, 1, counts["task_completed"])
	require.Equal(t, 95, xp)

	// Another user's log is invisible.
	counts, xp, err = s.stats.ProgressTotals(ctx, "00000000-0000-4000-8000-000000000002")
	require.NoError(t, err)
	require.Empty(t, counts)
	require.Zero(t, xp)
}

func TestInsertUnlockIsIdempotent(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	inserted, err := s.stats.InsertUnlock(ctx, testUserID, "first_habit", at)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.stats.InsertUnlock(ctx, testUserID, "first_habit", at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, inserted)

	unlocks, err := s.stats.ListUnlocks(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	require.True(t, unlocks[0].UnlockedAt.Equal(at), "first unlock time stands, got %s", unlocks[0].UnlockedAt)
}

func TestStreakSummaryTakesMax(t *testing.T) {
	s := newTestDB(t)
	ctx := context.Background()

	h1 := s.mustHabit(t, "one")
	h2 := s.mustHabit(t, "two")
	require.NoError(t, s.stats.ReplaceStreak(ctx, StreakRecord{HabitID: h1, Current: 2, Longest: 9}))
	require.NoError(t, s.stats.ReplaceStreak(ctx, StreakRecord{HabitID: h2, Current: 4, Longest: 5}))

	current, longest, err := s.stats.StreakSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, current)
	require.Equal(t, 9, longest)
}
