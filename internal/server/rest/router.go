package rest

import (
	"net/http"

	"github.com/deepesh-reddy/MegaBackend/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter mounts the user API under /api/v1/users plus /healthz.
func NewRouter(h *Handler, verifier AccessVerifier, trustedOrigins []string, logger logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	if len(trustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   trustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh-token", h.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(verifier))

			r.Post("/logout", h.Logout)
			r.Post("/change-password", h.ChangePassword)
			r.Get("/current-user", h.CurrentUser)
			r.Patch("/update-account", h.UpdateAccount)
			r.Patch("/update-avatar", h.UpdateAvatar)
			r.Patch("/update-cover-image", h.UpdateCoverImage)
			r.Get("/channel-profile/{username}", h.ChannelProfile)
			r.Get("/history", h.WatchHistory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, r, http.StatusNotFound, "not_found", "route not found")
	})

	return r
}
