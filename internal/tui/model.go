package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lifeline/internal/engine"
	"lifeline/internal/storage"
)

type boardModel struct {
	ctx context.Context
	svc *engine.Service

	width  int
	height int

	stats   *storage.UserStats
	habits  []habitRow
	tasks   []storage.Task
	today   string
	dayTime time.Time

	selected int
	lastLog  string
	loading  bool
	err      error
}

type habitRow struct {
	habit   storage.Habit
	done    bool
	value   string
	current int
	longest int
}

type loadedMsg struct {
	stats  *storage.UserStats
	habits []habitRow
	tasks  []storage.Task
	err    error
}

type toggledMsg struct {
	title string
	res   *engine.ToggleResult
	err   error
}

type completedMsg struct {
	title string
	res   *engine.CompleteTaskResult
	err   error
}

func newBoardModel(ctx context.Context, svc *engine.Service) boardModel {
	now := time.Now()
	return boardModel{
		ctx:     ctx,
		svc:     svc,
		today:   engine.FormatDay(now),
		dayTime: now,
		loading: true,
		lastLog: "Loaded.",
	}
}

func (m boardModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m boardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.svc.Stats(m.ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		habits, err := m.svc.ListHabits(m.ctx, false)
		if err != nil {
			return loadedMsg{err: err}
		}
		rows := make([]habitRow, 0, len(habits))
		for _, h := range habits {
			row := habitRow{habit: h}
			c, err := m.svc.CompletionRepo().Get(m.ctx, h.ID, m.today)
			if err != nil {
				return loadedMsg{err: err}
			}
			if c != nil {
				row.done = true
				row.value = c.Value.String()
			}
			sr, err := m.svc.StatsRepo().GetStreak(m.ctx, h.ID)
			if err != nil {
				return loadedMsg{err: err}
			}
			if sr != nil {
				row.current = sr.Current
				row.longest = sr.Longest
			}
			rows = append(rows, row)
		}
		all, err := m.svc.ListTasks(m.ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		var open []storage.Task
		for _, t := range all {
			if t.Status != engine.StatusDone {
				open = append(open, t)
			}
		}
		return loadedMsg{stats: stats, habits: rows, tasks: open}
	}
}

func (m boardModel) toggleCmd(h storage.Habit) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.Toggle(m.ctx, h.ID, m.dayTime)
		return toggledMsg{title: h.Title, res: res, err: err}
	}
}

func (m boardModel) completeCmd(t storage.Task) tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.CompleteTask(m.ctx, t.ID)
		return completedMsg{title: t.Title, res: res, err: err}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			m.lastLog = "Load failed: " + msg.err.Error()
			return m, nil
		}
		m.stats = msg.stats
		m.habits = msg.habits
		m.tasks = msg.tasks
		m.clampSelection()
		m.lastLog = fmt.Sprintf("Refreshed at %s.", time.Now().Format("15:04:05"))
		return m, nil
	case toggledMsg:
		if msg.err != nil {
			m.lastLog = "Toggle failed: " + msg.err.Error()
			return m, nil
		}
		if msg.res.Added {
			m.lastLog = fmt.Sprintf("Completed %q (streak %d)", msg.title, msg.res.Streak.Current)
			if len(msg.res.Unlocked) > 0 {
				m.lastLog += " — unlocked " + strings.Join(msg.res.Unlocked, ", ")
			}
		} else {
			m.lastLog = fmt.Sprintf("Unchecked %q", msg.title)
		}
		return m, m.loadCmd()
	case completedMsg:
		if msg.err != nil {
			m.lastLog = "Complete failed: " + msg.err.Error()
			return m, nil
		}
		m.lastLog = fmt.Sprintf("Done %q: +%d XP (level %d → %d)", msg.title, msg.res.XPAwarded, msg.res.LevelBefore, msg.res.LevelAfter)
		if msg.res.NextDue != nil {
			m.lastLog += ", next due " + *msg.res.NextDue
		}
		return m, m.loadCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.lastLog = "Refreshing…"
			return m, m.loadCmd()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < m.rowCount()-1 {
				m.selected++
			}
			return m, nil
		case " ", "enter":
			if m.selected < len(m.habits) {
				h := m.habits[m.selected].habit
				m.lastLog = fmt.Sprintf("Toggling %q…", h.Title)
				return m, m.toggleCmd(h)
			}
			i := m.selected - len(m.habits)
			if i < 0 || i >= len(m.tasks) {
				return m, nil
			}
			t := m.tasks[i]
			m.lastLog = fmt.Sprintf("Completing %q…", t.Title)
			return m, m.completeCmd(t)
		}
	}
	return m, nil
}

func (m boardModel) rowCount() int {
	return len(m.habits) + len(m.tasks)
}

func (m *boardModel) clampSelection() {
	if m.selected >= m.rowCount() {
		m.selected = m.rowCount() - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m boardModel) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit.\n"
	}

	header := m.renderHeader()
	sidebar := m.renderSidebar()
	main := m.renderMain()
	footer := m.renderFooter()

	// Simple 2-column layout.
	leftW := 26
	if m.width > 0 {
		maxLeft := m.width / 2
		if maxLeft < leftW {
			leftW = maxLeft
		}
		if leftW < 18 {
			leftW = 18
		}
	}

	linesLeft := strings.Split(sidebar, "\n")
	linesRight := strings.Split(main, "\n")
	max := len(linesLeft)
	if len(linesRight) > max {
		max = len(linesRight)
	}

	var body strings.Builder
	for i := 0; i < max; i++ {
		l := ""
		r := ""
		if i < len(linesLeft) {
			l = linesLeft[i]
		}
		if i < len(linesRight) {
			r = linesRight[i]
		}
		body.WriteString(padRight(l, leftW))
		body.WriteString("  ")
		body.WriteString(r)
		body.WriteString("\n")
	}

	return header + "\n" + body.String() + footer
}

func (m boardModel) renderHeader() string {
	if m.stats == nil {
		return "Lifeline — loading…"
	}
	next, _ := m.svc.XPToNextLevel(m.stats)
	bar := progressBar(m.stats.XPTotal, next, 30)
	return fmt.Sprintf("Lifeline %s | Level %d | XP %d/%d %s", m.today, m.stats.Level, m.stats.XPTotal, next, bar)
}

func (m boardModel) renderSidebar() string {
	if m.stats == nil {
		return "Stats\n\nLoading…"
	}
	lines := []string{"Stats"}
	lines = append(lines, fmt.Sprintf("- habits done: %d", m.stats.HabitsCompleted))
	lines = append(lines, fmt.Sprintf("- tasks done:  %d", m.stats.TasksCompleted))
	lines = append(lines, fmt.Sprintf("- streak:      %d (best %d)", m.stats.CurrentStreak, m.stats.LongestStreak))
	lines = append(lines, "")
	lines = append(lines, "Keys")
	lines = append(lines, "- ↑/↓ or j/k: move")
	lines = append(lines, "- space/enter: toggle / complete")
	lines = append(lines, "- r: refresh")
	lines = append(lines, "- q: quit")
	return strings.Join(lines, "\n")
}

func (m boardModel) renderMain() string {
	if m.loading {
		return "Loading…"
	}
	var out []string
	out = append(out, "Habits")
	if len(m.habits) == 0 {
		out = append(out, "(no habits)")
	}
	for i, row := range m.habits {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		mark := "[ ]"
		if row.done {
			mark = "[x]"
		}
		extra := ""
		if row.habit.TrackKind == string(engine.TrackingQuantitative) && row.done {
			unit := ""
			if row.habit.Unit != nil {
				unit = " " + *row.habit.Unit
			}
			extra = fmt.Sprintf(" (%s%s)", row.value, unit)
		}
		out = append(out, fmt.Sprintf("%s%s %s%s  streak %d/%d", cursor, mark, row.habit.Title, extra, row.current, row.longest))
	}
	out = append(out, "")
	out = append(out, "Tasks")
	if len(m.tasks) == 0 {
		out = append(out, "(nothing pending)")
	}
	for i, t := range m.tasks {
		cursor := "  "
		if len(m.habits)+i == m.selected {
			cursor = "> "
		}
		due := ""
		if t.DueDate != nil {
			due = " due " + *t.DueDate
		}
		recur := ""
		if t.RecurType != nil {
			recur = " ↻"
		}
		out = append(out, fmt.Sprintf("%s%d %s (%s)%s%s", cursor, t.ID, t.Title, t.Status, due, recur))
	}
	return strings.Join(out, "\n")
}

func (m boardModel) renderFooter() string {
	return "\n" + m.lastLog
}

func progressBar(value int, total int, width int) string {
	if total <= 0 {
		total = 1
	}
	if width <= 3 {
		width = 3
	}
	if value < 0 {
		value = 0
	}
	if value > total {
		value = total
	}
	ratio := float64(value) / float64(total)
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func padRight(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
