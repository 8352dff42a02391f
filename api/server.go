/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:       Request logging
  2. Recoverer:    Panic recovery (500 instead of crash)
  3. RequestID:    Unique ID per request for tracing
  4. CORS:         Cross-origin requests for the frontend
  5. Authenticate: Bearer token -> active user -> Actor (all but login
                   and qr-code)
  6. RequireRole:  Per route group

ROUTE GROUPS:
  /api/auth/login   Public
  /api/qr-code      Public, shown on the scan kiosk
  /api/user/*       Any authenticated user
  /api/admin/*      Admins only

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Authenticate and RequireRole
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/attendance-engine/generic"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Get("/qr-code", h.QRCode)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			r.Route("/user", func(r chi.Router) {
				r.Use(RequireRole(generic.RoleUser, generic.RoleAdmin))

				r.Get("/attendance", h.MyAttendance)
				r.Post("/attendance", h.Scan)
				r.Get("/leave", h.MyLeaves)
				r.Post("/leave", h.SubmitLeave)
				r.Get("/leave/{id}", h.GetLeave)
				r.Get("/overview", h.Overview)
				r.Get("/information", h.Information)

				r.Get("/profile", h.Profile)
				r.Put("/profile", h.UpdateProfile)
				r.Patch("/profile", h.ChangePassword)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(generic.RoleAdmin))

				r.Get("/dashboard", h.Dashboard)
				r.Get("/attendance", h.Roster)
				r.Get("/attendance/count", h.AttendanceCount)

				r.Get("/information", h.Information)
				r.Post("/information", h.UpdateInformation)
				r.Patch("/information", h.RotateQRCode)

				r.Route("/leave", func(r chi.Router) {
					r.Get("/", h.ListLeaves)
					r.Get("/{id}", h.GetLeave)
					r.Put("/{id}", h.DecideLeave)
					r.Delete("/{id}", h.DeleteLeave)
				})

				r.Route("/user", func(r chi.Router) {
					r.Get("/", h.ListUsers)
					r.Post("/", h.CreateUser)
					r.Get("/{id}", h.GetUser)
					r.Put("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
				})
			})
		})
	})

	return r
}
