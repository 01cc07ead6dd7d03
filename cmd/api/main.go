package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/georgemunganga/wayfinder-backend/internal/app"
	"github.com/georgemunganga/wayfinder-backend/internal/config"
	"github.com/georgemunganga/wayfinder-backend/internal/logger"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/auth"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/floormap"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unit"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/unitsync"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/user"
	"github.com/georgemunganga/wayfinder-backend/internal/modules/venue"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "wayfinder-api")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	protected := router.With(auth.Middleware(a.AuthService))
	admin := protected.With(auth.RequireRole(user.RoleAdmin))

	// ── Identity ────────────────────────────────────────────
	auth.NewHandler(a.AuthService).RegisterRoutes(router)
	user.NewHandler(a.UserService).RegisterRoutes(admin)

	// ── Venues & Units ──────────────────────────────────────
	venue.NewHandler(a.VenueService).RegisterRoutes(router, protected)
	unit.NewHandler(a.UnitService).RegisterRoutes(router, protected)

	// ── Floor maps & Sync ───────────────────────────────────
	floormap.NewHandler(a.MapService).RegisterRoutes(router, protected, admin)
	unitsync.NewHandler(a.Coordinator).RegisterRoutes(protected, admin)

	// ── Start Server ────────────────────────────────────────
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("wayfinder API server starting", zap.String("port", cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}
