package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"lifeline/internal/engine"
)

// Handler exposes the engine to the web client. It does HTTP parsing and
// JSON shaping only; every rule lives in the engine.
type Handler struct {
	svc *engine.Service
}

func NewHandler(svc *engine.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("archived") == "true"
	habits, err := h.svc.ListHabits(r.Context(), includeArchived)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]habitResponse, 0, len(habits))
	for _, habit := range habits {
		out = append(out, toHabitResponse(habit))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	in := engine.CreateHabitInput{
		Title: req.Title,
		Area:  req.Area,
		Color: req.Color,
		Frequency: engine.FrequencyPolicy{
			Type:          engine.FrequencyType(req.Frequency),
			DaysPerWeek:   req.DaysPerWeek,
			Days:          req.Days,
			TimesPerMonth: req.TimesPerMonth,
		},
		Tracking: engine.TrackingPolicy{
			Kind: engine.TrackingKind(req.Tracking),
			Unit: req.Unit,
		},
	}
	if req.Frequency == "" {
		in.Frequency.Type = engine.FrequencyDaily
	}
	if req.Tracking == "" {
		in.Tracking.Kind = engine.TrackingBoolean
	}
	if req.Target != "" {
		target, err := decimal.NewFromString(req.Target)
		if err != nil {
			writeBadRequest(w, "invalid target")
			return
		}
		in.Tracking.Target = target
	}

	habit, err := h.svc.CreateHabit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHabitResponse(*habit))
}

func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	habit, err := h.svc.GetHabit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitResponse(*habit))
}

func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteHabit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ArchiveHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.ArchiveHabit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	day, err := engine.ParseDay(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Toggle(r.Context(), id, day)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toToggleResponse(res))
}

func (h *Handler) SetCompletionValue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	day, err := engine.ParseDay(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		writeBadRequest(w, "invalid value")
		return
	}

	res, err := h.svc.SetValue(r.Context(), id, day, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toToggleResponse(res))
}

func (h *Handler) RemoveCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	day, err := engine.ParseDay(date)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Remove(r.Context(), id, day); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	completions, err := h.svc.Completions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]completionDTO, 0, len(completions))
	for _, c := range completions {
		out = append(out, toCompletionDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sr, err := h.svc.Streak(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStreakResponse(*sr))
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	in := engine.CreateTaskInput{
		Title:               req.Title,
		Description:         req.Description,
		Project:             req.Project,
		Area:                req.Area,
		Notebook:            req.Notebook,
		Priority:            req.Priority,
		Tags:                req.Tags,
		LinkedTransactionID: req.LinkedTransactionID,
	}
	if req.DueDate != "" {
		due, err := engine.ParseDay(req.DueDate)
		if err != nil {
			writeError(w, err)
			return
		}
		in.DueDate = &due
	}
	if req.Recurrence != nil {
		rt, err := engine.ParseRecurrenceType(req.Recurrence.Type)
		if err != nil {
			writeError(w, err)
			return
		}
		rec := &engine.Recurrence{Type: rt, Interval: req.Recurrence.Interval}
		if rec.Interval < 1 {
			rec.Interval = 1
		}
		if req.Recurrence.Until != "" {
			until, err := engine.ParseDay(req.Recurrence.Until)
			if err != nil {
				writeError(w, err)
				return
			}
			rec.Until = &until
		}
		in.Recurrence = rec
	}

	task, err := h.svc.CreateTask(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(*task))
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(*task))
}

func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.StartTask(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.CompleteTask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompleteTaskResponse(*res))
}

func (h *Handler) ReopenTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.ReopenTask(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ReorderTasks(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := h.svc.Reorder(r.Context(), req.IDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSubtasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subs, err := h.svc.Subtasks(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]subtaskResponse, 0, len(subs))
	for _, st := range subs {
		out = append(out, toSubtaskResponse(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req subtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	st, err := h.svc.AddSubtask(r.Context(), id, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubtaskResponse(*st))
}

func (h *Handler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	st, err := h.svc.ToggleSubtask(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubtaskResponse(*st))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	nextThreshold, remaining := h.svc.XPToNextLevel(stats)
	writeJSON(w, http.StatusOK, statsResponse{
		XPTotal:         stats.XPTotal,
		Level:           stats.Level,
		NextLevelXP:     nextThreshold,
		XPToNext:        remaining,
		HabitsCompleted: stats.HabitsCompleted,
		TasksCompleted:  stats.TasksCompleted,
		CurrentStreak:   stats.CurrentStreak,
		LongestStreak:   stats.LongestStreak,
	})
}

func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	unlocks, err := h.svc.Achievements(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]achievementResponse, 0, len(unlocks))
	for _, u := range unlocks {
		out = append(out, achievementResponse{
			Type:       u.Type,
			UnlockedAt: u.UnlockedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toToggleResponse(res *engine.ToggleResult) toggleResponse {
	out := toggleResponse{Added: res.Added, Unlocked: res.Unlocked}
	if res.Completion != nil {
		dto := toCompletionDTO(*res.Completion)
		out.Completion = &dto
	}
	if res.Streak != nil {
		sr := toStreakResponse(*res.Streak)
		out.Streak = &sr
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Store
// failures pass through with their message intact.
func writeError(w http.ResponseWriter, err error) {
	var bulk *engine.BulkError
	switch {
	case errors.Is(err, engine.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &bulk):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), FailedIDs: bulk.FailedIDs()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
