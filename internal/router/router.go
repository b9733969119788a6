package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"go-file-collector/internal/config"
	"go-file-collector/internal/handler"
	"go-file-collector/internal/middleware"
	"go-file-collector/internal/service"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Task     *handler.TaskHandler
	Upload   *handler.UploadHandler
	Settings *handler.SettingsHandler
}

// New builds the HTTP routing tree. Upload routes skip the request timeout
// because a large transfer legitimately outlives it; the server write
// timeout still bounds them.
func New(cfg *config.Config, h Handlers, auth *service.AuthService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	generalLimit := middleware.NewRateLimiter(cfg.RateLimitRPM)
	authLimit := middleware.NewRateLimiter(cfg.AuthRateLimitRPM)
	requireAdmin := middleware.RequireAdmin(auth)

	r.Get("/health", h.Health.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(generalLimit.Handler)

		// Public surface for uploaders.
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))

			r.Get("/tasks/{taskID}/info", h.Task.Info)
			r.Get("/settings/public", h.Settings.GetPublic)
			r.Post("/upload/{taskID}/precheck", h.Upload.Precheck)
			r.Get("/upload/{taskID}/files", h.Upload.ListFiles)
			r.Post("/upload/{taskID}/check-whitelist", h.Upload.CheckWhitelist)
			r.Get("/upload/{taskID}/count/{uploaderName}", h.Upload.UserUploadCount)
		})

		// Upload data paths, bounded by body size instead of a deadline.
		r.Post("/upload/{taskID}", h.Upload.Upload)
		r.Post("/upload/{taskID}/chunk", h.Upload.UploadChunk)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
			r.Use(authLimit.Handler)

			r.Post("/auth/login", h.Auth.Login)
		})

		// Admin surface.
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
			r.Use(requireAdmin)

			r.Get("/auth/check", h.Auth.Check)

			r.Post("/tasks", h.Task.Create)
			r.Get("/tasks", h.Task.List)
			r.Get("/tasks/{taskID}", h.Task.Get)
			r.Put("/tasks/{taskID}/status", h.Task.UpdateStatus)
			r.Delete("/tasks/{taskID}", h.Task.Delete)

			r.Get("/settings", h.Settings.Get)
			r.Put("/settings", h.Settings.Update)
			r.Put("/settings/password", h.Settings.ChangePassword)
			r.Post("/settings/whitelist", h.Settings.ImportWhitelist)
		})
	})

	return r
}
