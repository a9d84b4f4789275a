package handlers

import (
	"net/http"

	"badge-kiosk-backend/internal/middleware"
	"badge-kiosk-backend/internal/printing"
	"badge-kiosk-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Users     *UserHandler
	Storage   *StorageHandler
	Badges    *BadgeHandler
	Camera    *CameraHandler
	Visitors  *VisitorHandler
	Print     *PrintHandler
	Sessions  *SessionHandler
	WebSocket *WebSocketHandler
	Health    http.HandlerFunc
}

// RouterConfig holds router options
type RouterConfig struct {
	AllowedOrigins []string
	Printer        *printing.Dispatcher
	// AssetsDir is served under /assets when set (local storage backend)
	AssetsDir string
}

// NewRouter builds the chi router with middleware and all routes
func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsHandler.Handler)

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/create", h.Users.CreateUser)
			r.Get("/get-by-ref", h.Users.GetByRef)
			r.Get("/get-by-event", h.Users.GetByEvent)
			r.Put("/update-registration", h.Users.UpdateRegistration)
			r.Put("/update-qr-url", h.Users.UpdateQRURL)
		})

		r.Route("/storage", func(r chi.Router) {
			r.Post("/upload-photo", h.Storage.UploadPhoto)
			r.Post("/upload-qr", h.Storage.UploadQR)
			r.Post("/upload-badge", h.Storage.UploadBadge)
		})

		r.Post("/generate-badge", h.Badges.GenerateBadge)
		r.Post("/badge/compose", h.Badges.Compose)
		r.Post("/camera/capture", h.Camera.Capture)

		r.Route("/visitors", func(r chi.Router) {
			r.Post("/", h.Visitors.Issue)
			r.Get("/", h.Visitors.List)
			r.Post("/{ref}/print", h.Visitors.Print)
		})

		r.Post("/print/ticket", h.Print.Ticket)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Sessions.Start)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Sessions.Get)
				r.Post("/info", h.Sessions.ConfirmInfo)
				r.Post("/photo", h.Sessions.SubmitPhoto)
				r.Post("/back", h.Sessions.Back)
				r.Post("/confirm", h.Sessions.Confirm)
				r.Post("/cancel", h.Sessions.Cancel)
			})
		})
	})

	// Print view, reachable only with a signed ticket
	r.With(middleware.PrintTicket(cfg.Printer)).Get("/print", h.Print.Page)

	// WebSocket route
	r.Get("/ws/sessions/{id}", h.WebSocket.HandleWebSocket)

	if cfg.AssetsDir != "" {
		fs := http.StripPrefix(storage.AssetsPath+"/", http.FileServer(http.Dir(cfg.AssetsDir)))
		r.Get(storage.AssetsPath+"/*", fs.ServeHTTP)
	}

	return r
}
