package api

import (
	"time"

	"lifeline/internal/engine"
	"lifeline/internal/storage"
)

type habitRequest struct {
	Title         string   `json:"title"`
	Area          *string  `json:"area,omitempty"`
	Color         string   `json:"color,omitempty"`
	Frequency     string   `json:"frequency,omitempty"`
	DaysPerWeek   int      `json:"daysPerWeek,omitempty"`
	Days          []int    `json:"days,omitempty"`
	TimesPerMonth int      `json:"timesPerMonth,omitempty"`
	Tracking      string   `json:"tracking,omitempty"`
	Target        string   `json:"target,omitempty"`
	Unit          string   `json:"unit,omitempty"`
}

type habitResponse struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Area          *string `json:"area,omitempty"`
	Color         string  `json:"color,omitempty"`
	Frequency     string  `json:"frequency"`
	DaysPerWeek   *int    `json:"daysPerWeek,omitempty"`
	Days          []int   `json:"days,omitempty"`
	TimesPerMonth *int    `json:"timesPerMonth,omitempty"`
	Tracking      string  `json:"tracking"`
	Target        *string `json:"target,omitempty"`
	Unit          *string `json:"unit,omitempty"`
	Archived      bool    `json:"archived"`
	CreatedAt     string  `json:"createdAt"`
}

func toHabitResponse(h storage.Habit) habitResponse {
	resp := habitResponse{
		ID:            h.ID,
		Title:         h.Title,
		Area:          h.Area,
		Color:         h.Color,
		Frequency:     h.FreqType,
		DaysPerWeek:   h.DaysPerWeek,
		Days:          h.FreqDays,
		TimesPerMonth: h.TimesPerMonth,
		Tracking:      h.TrackKind,
		Unit:          h.Unit,
		Archived:      h.ArchivedAt != nil,
		CreatedAt:     h.CreatedAt.UTC().Format(time.RFC3339),
	}
	if h.Target != nil {
		s := h.Target.String()
		resp.Target = &s
	}
	return resp
}

type toggleRequest struct {
	Date string `json:"date"`
}

type valueRequest struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type toggleResponse struct {
	Added      bool            `json:"added"`
	Completion *completionDTO  `json:"completion,omitempty"`
	Streak     *streakResponse `json:"streak,omitempty"`
	Unlocked   []string        `json:"unlocked,omitempty"`
}

type completionDTO struct {
	HabitID   int64  `json:"habitId"`
	Date      string `json:"date"`
	Value     string `json:"value"`
	CreatedAt string `json:"createdAt"`
}

func toCompletionDTO(c storage.Completion) completionDTO {
	return completionDTO{
		HabitID:   c.HabitID,
		Date:      c.Day,
		Value:     c.Value.String(),
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type streakResponse struct {
	HabitID       int64   `json:"habitId"`
	Current       int     `json:"current"`
	Longest       int     `json:"longest"`
	LastCompleted *string `json:"lastCompleted,omitempty"`
}

func toStreakResponse(sr storage.StreakRecord) streakResponse {
	return streakResponse{
		HabitID:       sr.HabitID,
		Current:       sr.Current,
		Longest:       sr.Longest,
		LastCompleted: sr.LastCompleted,
	}
}

type taskRequest struct {
	Title               string    `json:"title"`
	Description         *string   `json:"description,omitempty"`
	Project             *string   `json:"project,omitempty"`
	Area                *string   `json:"area,omitempty"`
	Notebook            *string   `json:"notebook,omitempty"`
	DueDate             string    `json:"dueDate,omitempty"`
	Priority            int       `json:"priority,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
	Recurrence          *recurDTO `json:"recurrence,omitempty"`
	LinkedTransactionID *string   `json:"linkedTransactionId,omitempty"`
}

type recurDTO struct {
	Type     string `json:"type"`
	Interval int    `json:"interval"`
	Until    string `json:"until,omitempty"`
}

type taskResponse struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Description         *string   `json:"description,omitempty"`
	Project             *string   `json:"project,omitempty"`
	Area                *string   `json:"area,omitempty"`
	Notebook            *string   `json:"notebook,omitempty"`
	DueDate             *string   `json:"dueDate,omitempty"`
	Priority            int       `json:"priority"`
	Status              string    `json:"status"`
	Tags                []string  `json:"tags,omitempty"`
	Recurrence          *recurDTO `json:"recurrence,omitempty"`
	Position            int       `json:"position"`
	CompletedAt         *string   `json:"completedAt,omitempty"`
	LinkedTransactionID *string   `json:"linkedTransactionId,omitempty"`
}

func toTaskResponse(t storage.Task) taskResponse {
	resp := taskResponse{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		Project:             t.Project,
		Area:                t.Area,
		Notebook:            t.Notebook,
		DueDate:             t.DueDate,
		Priority:            t.Priority,
		Status:              t.Status,
		Tags:                t.Tags,
		Position:            t.Position,
		LinkedTransactionID: t.LinkedTransactionID,
	}
	if t.RecurType != nil {
		resp.Recurrence = &recurDTO{Type: *t.RecurType, Interval: t.RecurInterval}
		if t.RecurUntil != nil {
			resp.Recurrence.Until = *t.RecurUntil
		}
	}
	if t.CompletedAt != nil {
		s := t.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	return resp
}

type completeTaskResponse struct {
	TaskID      int64    `json:"taskId"`
	XPAwarded   int      `json:"xpAwarded"`
	LevelBefore int      `json:"levelBefore"`
	LevelAfter  int      `json:"levelAfter"`
	LevelUp     bool     `json:"levelUp"`
	Unlocked    []string `json:"unlocked,omitempty"`
	NextTaskID  *int64   `json:"nextTaskId,omitempty"`
	NextDue     *string  `json:"nextDue,omitempty"`
}

func toCompleteTaskResponse(res engine.CompleteTaskResult) completeTaskResponse {
	return completeTaskResponse{
		TaskID:      res.TaskID,
		XPAwarded:   res.XPAwarded,
		LevelBefore: res.LevelBefore,
		LevelAfter:  res.LevelAfter,
		LevelUp:     res.LevelUp,
		Unlocked:    res.Unlocked,
		NextTaskID:  res.NextTaskID,
		NextDue:     res.NextDue,
	}
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

type subtaskRequest struct {
	Title string `json:"title"`
}

type subtaskResponse struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"taskId"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
	Position int    `json:"position"`
}

func toSubtaskResponse(st storage.Subtask) subtaskResponse {
	return subtaskResponse{ID: st.ID, TaskID: st.TaskID, Title: st.Title, Done: st.Done, Position: st.Position}
}

type statsResponse struct {
	XPTotal         int `json:"xpTotal"`
	Level           int `json:"level"`
	NextLevelXP     int `json:"nextLevelXp"`
	XPToNext        int `json:"xpToNext"`
	HabitsCompleted int `json:"habitsCompleted"`
	TasksCompleted  int `json:"tasksCompleted"`
	CurrentStreak   int `json:"currentStreak"`
	LongestStreak   int `json:"longestStreak"`
}

type achievementResponse struct {
	Type       string `json:"type"`
	UnlockedAt string `json:"unlockedAt"`
}

type errorResponse struct {
	Error     string  `json:"error"`
	FailedIDs []int64 `json:"failedIds,omitempty"`
}
