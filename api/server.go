/*
server.go - HTTP router configuration

PURPOSE:
  Wires all handlers into a chi router with middleware. One look at
  this file shows the whole API surface.

MIDDLEWARE:
  - RequestID: correlates log lines per request
  - Logger: request logging
  - Recoverer: panic -> 500 instead of a crash
  - CORS: permissive, the API serves browser frontends during development

SEE ALSO:
  - handlers.go: The handlers registered here
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the full route tree.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Route("/{studentID}", func(r chi.Router) {
				r.Get("/", h.GetStudent)
				r.Get("/passes", h.ListStudentPasses)
				r.Post("/passes", h.PurchasePass)
				r.Route("/groups/{groupID}", func(r chi.Router) {
					r.Get("/balance", h.GetBalance)
					r.Get("/revenue", h.GetRevenue)
					r.Get("/statement", h.GetStatement)
				})
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", h.ListGroups)
			r.Post("/", h.CreateGroup)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", h.GetGroup)
				r.Get("/members", h.ListMembers)
				r.Post("/members", h.AddMember)
				r.Get("/slots", h.ListSlots)
				r.Post("/slots", h.AddSlot)
				r.Post("/expand-schedule", h.ExpandSchedule)
				r.Get("/lessons", h.ListLessons)
				r.Post("/lessons", h.CreateLesson)
				r.Get("/revenue-report", h.GroupRevenueReport)
			})
		})

		r.Route("/lessons/{lessonID}", func(r chi.Router) {
			r.Get("/", h.GetLesson)
			r.Post("/cancel", h.CancelLesson)
			r.Post("/reschedule", h.RescheduleLesson)
			r.Get("/attendance", h.ListAttendance)
			r.Post("/attendance", h.MarkAttendance)
			r.Delete("/attendance/{studentID}", h.UnmarkAttendance)
			r.Post("/attendance/preview", h.PreviewAttendance)
		})

		r.Route("/passes/{passID}", func(r chi.Router) {
			r.Get("/", h.GetPass)
			r.Post("/archive", h.ArchivePass)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.Get("/{planID}", h.GetPlan)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/expire-passes", h.ExpirePasses)
			r.Post("/reset", h.Reset)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
