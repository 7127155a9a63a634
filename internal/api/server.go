package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the engine's HTTP surface for the web client.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/habits", func(r chi.Router) {
			r.Get("/", h.ListHabits)
			r.Post("/", h.CreateHabit)
			r.Get("/{id}", h.GetHabit)
			r.Delete("/{id}", h.DeleteHabit)
			r.Post("/{id}/archive", h.ArchiveHabit)
			r.Post("/{id}/toggle", h.ToggleCompletion)
			r.Put("/{id}/value", h.SetCompletionValue)
			r.Get("/{id}/completions", h.ListCompletions)
			r.Delete("/{id}/completions", h.RemoveCompletion)
			r.Get("/{id}/streak", h.GetStreak)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Post("/reorder", h.ReorderTasks)
			r.Get("/{id}", h.GetTask)
			r.Delete("/{id}", h.DeleteTask)
			r.Post("/{id}/start", h.StartTask)
			r.Post("/{id}/complete", h.CompleteTask)
			r.Post("/{id}/reopen", h.ReopenTask)
			r.Get("/{id}/subtasks", h.ListSubtasks)
			r.Post("/{id}/subtasks", h.AddSubtask)
		})

		r.Post("/subtasks/{id}/toggle", h.ToggleSubtask)

		r.Get("/stats", h.GetStats)
		r.Get("/achievements", h.ListAchievements)
	})

	return r
}
