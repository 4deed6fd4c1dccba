package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/hugh/addon-herd/internal/api/handlers"
	"github.com/hugh/addon-herd/internal/api/middleware"
	"github.com/hugh/addon-herd/internal/auth"
	"github.com/hugh/addon-herd/internal/notify"
	"github.com/hugh/addon-herd/internal/syncer"
	"github.com/hugh/addon-herd/pkg/crypto"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Keyring        *crypto.Keyring
	SyncService    *syncer.Service
	Dispatcher     *notify.Dispatcher
	AsynqClient    *asynq.Client
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	accountHandler := handlers.NewAccountHandler(cfg.DB)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.Keyring)
	addonHandler := handlers.NewAddonHandler(cfg.DB, cfg.SyncService)
	groupHandler := handlers.NewGroupHandler(cfg.DB)
	syncHandler := handlers.NewSyncHandler(cfg.DB, cfg.SyncService, cfg.Dispatcher, cfg.AsynqClient)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints, limited by client IP
		r.Group(func(r chi.Router) {
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/logout", authHandler.Logout)
		})

		// Protected routes, limited per authenticated account
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByAccount(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			// Account endpoints
			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				accountID := middleware.GetAccountID(r.Context())
				account, err := cfg.AuthService.GetAccountByID(r.Context(), accountID)
				if err != nil {
					http.Error(w, "Account not found", http.StatusNotFound)
					return
				}
				writeJSON(w, http.StatusOK, account)
			})
			r.Route("/account", func(r chi.Router) {
				r.Get("/", accountHandler.Get)
				r.Put("/settings", accountHandler.UpdateSettings)
			})

			// Platform user endpoints
			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Get("/{id}", userHandler.Get)
				r.Put("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})

			// Addon endpoints
			r.Route("/addons", func(r chi.Router) {
				r.Get("/", addonHandler.List)
				r.Post("/", addonHandler.Create)
				r.Get("/{id}", addonHandler.Get)
				r.Put("/{id}", addonHandler.Update)
				r.Post("/{id}/reload", addonHandler.Reload)
				r.Delete("/{id}", addonHandler.Delete)
			})

			// Group endpoints
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", groupHandler.List)
				r.Post("/", groupHandler.Create)
				r.Get("/{id}", groupHandler.Get)
				r.Put("/{id}", groupHandler.Update)
				r.Put("/{id}/addons", groupHandler.SetAddons)
				r.Delete("/{id}", groupHandler.Delete)
				r.Post("/{id}/sync", syncHandler.SyncGroup)
				r.Post("/{id}/sync/queue", syncHandler.QueueSync)
			})
		})
	})

	return &Router{r}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
