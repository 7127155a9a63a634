package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lifeline/internal/storage"
)

const testUserID = "00000000-0000-4000-8000-000000000001"

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advanceDays(n int) { c.t = c.t.AddDate(0, 0, n) }

func newTestService(t *testing.T, opts Options) (*Service, *testClock, func()) {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	db, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	clock := &testClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	if opts.UserID == "" {
		opts.UserID = testUserID
	}
	opts.Now = clock.now

	svc := NewService(db, opts)
	cleanup := func() {
		_ = db.Close()
	}
	return svc, clock, cleanup
}

func mustHabit(t *testing.T, svc *Service, title string) *storage.Habit {
	t.Helper()
	h, err := svc.CreateHabit(context.Background(), CreateHabitInput{Title: title})
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	return h
}

func TestTogglePairRestoresLedger(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Meditate")

	res, err := svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !res.Added {
		t.Fatal("first toggle should add")
	}
	if res.Streak == nil || res.Streak.Current != 1 {
		t.Fatalf("streak=%+v, want current 1", res.Streak)
	}

	res, err = svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if res.Added {
		t.Fatal("second toggle should remove")
	}
	if res.Streak.Current != 0 {
		t.Fatalf("streak after removal=%d, want 0", res.Streak.Current)
	}

	comps, err := svc.Completions(ctx, h.ID)
	if err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if len(comps) != 0 {
		t.Fatalf("ledger has %d rows, want 0", len(comps))
	}
}

func TestToggleCountersAreMonotone(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Read")

	if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.HabitsCompleted != 1 || stats.XPTotal != DefaultHabitXP {
		t.Fatalf("stats=%+v, want 1 habit, %d xp", stats, DefaultHabitXP)
	}

	// Un-completing keeps the already-earned counter and XP.
	if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	stats, err = svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.HabitsCompleted != 1 || stats.XPTotal != DefaultHabitXP {
		t.Fatalf("stats after removal=%+v, counters must not decrement", stats)
	}
	if stats.CurrentStreak != 0 {
		t.Fatalf("streak=%d, streaks do reflect the removal", stats.CurrentStreak)
	}
}

func TestToggleBackfillExtendsStreak(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Walk")

	if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Toggle today: %v", err)
	}
	res, err := svc.Toggle(ctx, h.ID, clock.now().AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("Toggle yesterday: %v", err)
	}
	if res.Streak.Current != 2 {
		t.Fatalf("current=%d, want 2 after backfill", res.Streak.Current)
	}
}

func TestSetValueRejectsNonPositive(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Hydrate")

	_, err := svc.SetValue(ctx, h.ID, clock.now(), decimal.Zero)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
	comps, err := svc.Completions(ctx, h.ID)
	if err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if len(comps) != 0 {
		t.Fatal("rejected value must not touch the ledger")
	}
}

func TestSetValueRevisionDoesNotDoubleCount(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Hydrate")

	if _, err := svc.SetValue(ctx, h.ID, clock.now(), decimal.NewFromInt(1500)); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	res, err := svc.SetValue(ctx, h.ID, clock.now(), decimal.NewFromInt(2000))
	if err != nil {
		t.Fatalf("SetValue revision: %v", err)
	}
	if res.Added {
		t.Fatal("revision of an existing day must not report Added")
	}
	if res.Completion.Value.Cmp(decimal.NewFromInt(2000)) != 0 {
		t.Fatalf("value=%s, want 2000", res.Completion.Value)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.HabitsCompleted != 1 || stats.XPTotal != DefaultHabitXP {
		t.Fatalf("stats=%+v, revision must not double count", stats)
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Stretch")
	if err := svc.Remove(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Remove on empty day: %v", err)
	}
}

func TestToggleUnknownHabit(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()

	_, err := svc.Toggle(context.Background(), 999, clock.now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestMutationsRequireUser(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{UserID: "nobody"})
	defer cleanup()
	ctx := context.Background()

	if _, err := svc.Toggle(ctx, 1, clock.now()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Toggle err=%v, want ErrNotAuthenticated", err)
	}
	if _, err := svc.CompleteTask(ctx, 1); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("CompleteTask err=%v, want ErrNotAuthenticated", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Title: "Write report"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.Status != StatusPending {
		t.Fatalf("status=%q, want pending", task.Status)
	}

	if err := svc.StartTask(ctx, task.ID); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusInProgress {
		t.Fatalf("status=%q, want in_progress", got.Status)
	}

	res, err := svc.CompleteTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.XPAwarded != DefaultTaskXP {
		t.Fatalf("xp=%d, want %d", res.XPAwarded, DefaultTaskXP)
	}
	got, _ = svc.GetTask(ctx, task.ID)
	if got.Status != StatusDone || got.CompletedAt == nil {
		t.Fatalf("task after completion: %+v", got)
	}

	// done -> done is not a legal transition.
	_, err = svc.CompleteTask(ctx, task.ID)
	var te TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err=%v, want TransitionError", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("TransitionError should unwrap to ErrInvalidInput")
	}
}

func TestReopenKeepsEarnedProgress(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Title: "Inbox zero"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	if err := svc.ReopenTask(ctx, task.ID); err != nil {
		t.Fatalf("ReopenTask: %v", err)
	}
	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusPending || got.CompletedAt != nil {
		t.Fatalf("task after reopen: %+v", got)
	}

	// The reversal is asymmetric: XP and counters stand.
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TasksCompleted != 1 || stats.XPTotal != DefaultTaskXP {
		t.Fatalf("stats after reopen=%+v, want counters kept", stats)
	}

	// Completing again is a second earn.
	if _, err := svc.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("CompleteTask again: %v", err)
	}
	stats, _ = svc.Stats(ctx)
	if stats.TasksCompleted != 2 || stats.XPTotal != 2*DefaultTaskXP {
		t.Fatalf("stats after re-complete=%+v", stats)
	}
}

func TestCompleteRecurringCreatesNextInstance(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	clock.t = time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)

	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Title:      "Pay rent",
		Recurrence: &Recurrence{Type: RecurMonthly, Interval: 1},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res, err := svc.CompleteTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.NextTaskID == nil {
		t.Fatal("expected a next instance")
	}
	if res.NextDue == nil || *res.NextDue != "2024-02-29" {
		t.Fatalf("next due=%v, want 2024-02-29", res.NextDue)
	}

	next, err := svc.GetTask(ctx, *res.NextTaskID)
	if err != nil {
		t.Fatalf("GetTask next: %v", err)
	}
	if next.Status != StatusPending || next.Title != task.Title {
		t.Fatalf("next instance: %+v", next)
	}
	if next.Position <= task.Position {
		t.Fatalf("next position=%d, want after %d", next.Position, task.Position)
	}

	// The completed instance is untouched by the advance.
	orig, _ := svc.GetTask(ctx, task.ID)
	if orig.Status != StatusDone {
		t.Fatalf("original status=%q, want done", orig.Status)
	}
}

func TestCompleteRecurringChainEnds(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	until := DayOf(clock.now())
	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Title:      "Final session",
		Recurrence: &Recurrence{Type: RecurDaily, Interval: 1, Until: &until},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	res, err := svc.CompleteTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if res.NextTaskID != nil {
		t.Fatal("recurrence past its end date must not spawn an instance")
	}
}

func TestReopenDoesNotDuplicateRecurrence(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Title:      "Weekly review",
		Recurrence: &Recurrence{Type: RecurWeekly, Interval: 1},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := svc.ReopenTask(ctx, task.ID); err != nil {
		t.Fatalf("ReopenTask: %v", err)
	}

	tasks, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	// Original plus the one instance created on completion; reopening does
	// not remove it, and only a future re-completion would add another.
	if len(tasks) != 2 {
		t.Fatalf("%d tasks, want 2", len(tasks))
	}
}

func TestReorderReportsPartialFailure(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	a, err := svc.CreateTask(ctx, CreateTaskInput{Title: "a"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	b, err := svc.CreateTask(ctx, CreateTaskInput{Title: "b"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	err = svc.Reorder(ctx, []int64{b.ID, 999, a.ID})
	var bulk *BulkError
	if !errors.As(err, &bulk) {
		t.Fatalf("err=%v, want BulkError", err)
	}
	if ids := bulk.FailedIDs(); len(ids) != 1 || ids[0] != 999 {
		t.Fatalf("failed ids=%v, want [999]", ids)
	}

	// Identifiers not listed as failed were applied.
	gotB, _ := svc.GetTask(ctx, b.ID)
	gotA, _ := svc.GetTask(ctx, a.ID)
	if gotB.Position != 1 || gotA.Position != 3 {
		t.Fatalf("positions b=%d a=%d, want 1 and 3", gotB.Position, gotA.Position)
	}
}

func TestSubtasksStayLocal(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Title: "Trip"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	st, err := svc.AddSubtask(ctx, task.ID, "Book flights")
	if err != nil {
		t.Fatalf("AddSubtask: %v", err)
	}
	st, err = svc.ToggleSubtask(ctx, st.ID)
	if err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if !st.Done {
		t.Fatal("subtask should be done")
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.XPTotal != 0 || stats.TasksCompleted != 0 {
		t.Fatalf("stats=%+v, subtasks must not feed progress", stats)
	}
}

func TestAchievementsUnlockOnce(t *testing.T) {
	rules := []AchievementRule{
		{Type: "first_habit", Requirement: RequireHabitsCompleted, Target: 1, XPReward: 50},
	}
	svc, clock, cleanup := newTestService(t, Options{Rules: rules})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Journal")

	res, err := svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if len(res.Unlocked) != 1 || res.Unlocked[0] != "first_habit" {
		t.Fatalf("unlocked=%v, want [first_habit]", res.Unlocked)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.XPTotal != DefaultHabitXP+50 {
		t.Fatalf("xp=%d, want habit xp plus reward", stats.XPTotal)
	}

	// Off and on again: the counter passes the target a second time but the
	// unlock is recorded exactly once.
	if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Toggle off: %v", err)
	}
	res, err = svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle on: %v", err)
	}
	if len(res.Unlocked) != 0 {
		t.Fatalf("unlocked=%v, want none on re-earn", res.Unlocked)
	}

	unlocks, err := svc.Achievements(ctx)
	if err != nil {
		t.Fatalf("Achievements: %v", err)
	}
	if len(unlocks) != 1 {
		t.Fatalf("%d unlocks, want 1", len(unlocks))
	}
}

func TestRewardXPChainsLevelUnlocks(t *testing.T) {
	// Linear curve: 10 XP per level. One toggle earns level 1, the reward
	// for first_habit lands the user on level 4, which must satisfy the
	// level rule within the same mutation.
	rules := []AchievementRule{
		{Type: "first_habit", Requirement: RequireHabitsCompleted, Target: 1, XPReward: 30},
		{Type: "level_3", Requirement: RequireLevel, Target: 3},
	}
	svc, clock, cleanup := newTestService(t, Options{
		Curve:   PowerCurve(10, 1),
		HabitXP: 10,
		Rules:   rules,
	})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Journal")

	res, err := svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if len(res.Unlocked) != 2 || res.Unlocked[0] != "first_habit" || res.Unlocked[1] != "level_3" {
		t.Fatalf("unlocked=%v, want [first_habit level_3]", res.Unlocked)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.XPTotal != 40 {
		t.Fatalf("xp=%d, want 40", stats.XPTotal)
	}
	if stats.Level != 4 {
		t.Fatalf("level=%d, want 4", stats.Level)
	}
}

func TestStreakAchievement(t *testing.T) {
	rules := []AchievementRule{
		{Type: "three_in_a_row", Requirement: RequireStreak, Target: 3},
	}
	svc, clock, cleanup := newTestService(t, Options{Rules: rules})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Run")

	for i := 0; i < 2; i++ {
		if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
			t.Fatalf("Toggle day %d: %v", i, err)
		}
		clock.advanceDays(1)
	}
	res, err := svc.Toggle(ctx, h.ID, clock.now())
	if err != nil {
		t.Fatalf("Toggle day 3: %v", err)
	}
	if res.Streak.Current != 3 {
		t.Fatalf("current=%d, want 3", res.Streak.Current)
	}
	if len(res.Unlocked) != 1 || res.Unlocked[0] != "three_in_a_row" {
		t.Fatalf("unlocked=%v, want [three_in_a_row]", res.Unlocked)
	}
}

func TestArchiveHidesHabitButKeepsHistory(t *testing.T) {
	svc, clock, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	h := mustHabit(t, svc, "Old habit")
	if _, err := svc.Toggle(ctx, h.ID, clock.now()); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	if err := svc.ArchiveHabit(ctx, h.ID); err != nil {
		t.Fatalf("ArchiveHabit: %v", err)
	}
	active, err := svc.ListHabits(ctx, false)
	if err != nil {
		t.Fatalf("ListHabits: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("%d active habits, want 0", len(active))
	}
	all, err := svc.ListHabits(ctx, true)
	if err != nil {
		t.Fatalf("ListHabits all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("%d habits with archived, want 1", len(all))
	}

	comps, err := svc.Completions(ctx, h.ID)
	if err != nil {
		t.Fatalf("Completions: %v", err)
	}
	if len(comps) != 1 {
		t.Fatal("archiving must keep the ledger")
	}
}

func TestCreateHabitValidation(t *testing.T) {
	svc, _, cleanup := newTestService(t, Options{})
	defer cleanup()
	ctx := context.Background()

	cases := []CreateHabitInput{
		{Title: "   "},
		{Title: "x", Frequency: FrequencyPolicy{Type: "hourly"}},
		{Title: "x", Frequency: FrequencyPolicy{Type: FrequencyTimesPerWeek}},
		{Title: "x", Frequency: FrequencyPolicy{Type: FrequencySpecificDays, Days: []int{7}}},
		{Title: "x", Tracking: TrackingPolicy{Kind: TrackingQuantitative}},
	}
	for i, in := range cases {
		if _, err := svc.CreateHabit(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: err=%v, want ErrInvalidInput", i, err)
		}
	}
}
