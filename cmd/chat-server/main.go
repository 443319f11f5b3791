package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger-chat/internal/config"
	"messenger-chat/internal/domain"
	"messenger-chat/internal/handler"
	"messenger-chat/internal/middleware"
	"messenger-chat/internal/observability"
	"messenger-chat/internal/repository/postgres"
	"messenger-chat/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting chat server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	store := postgres.NewStore(db)
	if err := store.EnsureSchema(connCtx); err != nil {
		slog.Error("schema setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if _, err := db.ExecContext(connCtx, postgres.UserSchema); err != nil {
		slog.Error("user schema setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := domain.NewRoomRegistry(store)
	if err := registry.Load(connCtx); err != nil {
		slog.Error("failed to load rooms", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.RoomsActive.Set(float64(registry.TotalRooms()))
	slog.Info("rooms loaded", slog.Int("count", registry.TotalRooms()))

	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)

	authService := service.NewAuthService(userRepo, sessionRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startSessionCleanup(ctx, sessionRepo)
	slog.Info("session cleanup task started")

	authHandler := handler.NewAuthHandler(authService)
	roomHandler := handler.NewRoomHandler(registry)
	messageHandler := handler.NewMessageHandler(registry)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		authLimiter := middleware.NewRateLimiter(ctx, 5, 10)
		apiLimiter := middleware.NewRateLimiter(ctx, 20, 50)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionRepo))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/rooms", roomHandler.List)
			r.Post("/rooms", roomHandler.Create)
			r.Post("/rooms/join", roomHandler.JoinByLink)
			r.Get("/rooms/{id}", roomHandler.Get)
			r.Delete("/rooms/{id}", roomHandler.Delete)
			r.Put("/rooms/{id}/info", roomHandler.EditInfo)
			r.Put("/rooms/{id}/privacy", roomHandler.SetPrivacy)
			r.Put("/rooms/{id}/settings", roomHandler.SetSettings)
			r.Post("/rooms/{id}/members", roomHandler.AddMember)
			r.Delete("/rooms/{id}/members/{userID}", roomHandler.RemoveMember)
			r.Post("/rooms/{id}/admins", roomHandler.AddAdmin)
			r.Delete("/rooms/{id}/admins/{userID}", roomHandler.RemoveAdmin)

			r.Get("/rooms/{id}/messages", messageHandler.List)
			r.Post("/rooms/{id}/messages", messageHandler.Send)
			r.Get("/rooms/{id}/messages/search", messageHandler.Search)
			r.Get("/rooms/{id}/messages/unread", messageHandler.Unread)
			r.Put("/rooms/{id}/messages/{messageID}", messageHandler.Edit)
			r.Delete("/rooms/{id}/messages/{messageID}", messageHandler.Delete)
			r.Post("/rooms/{id}/messages/{messageID}/read", messageHandler.MarkRead)
			r.Post("/rooms/{id}/messages/{messageID}/pin", messageHandler.Pin)
			r.Post("/rooms/{id}/messages/{messageID}/forward", messageHandler.Forward)
			r.Get("/rooms/{id}/pins", messageHandler.Pins)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("chat server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	slog.Info("server stopped gracefully")
}

// startSessionCleanup runs a background task to delete expired sessions
func startSessionCleanup(ctx context.Context, repo domain.SessionRepository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cancel()
		}
	}
}
