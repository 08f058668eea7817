package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/inventory-service/internal/auth"
	"github.com/vasiliy-maslov/inventory-service/internal/config"
	"github.com/vasiliy-maslov/inventory-service/internal/db"
	handler "github.com/vasiliy-maslov/inventory-service/internal/handler/http"
	"github.com/vasiliy-maslov/inventory-service/internal/inventory"
	"github.com/vasiliy-maslov/inventory-service/internal/order"
	"github.com/vasiliy-maslov/inventory-service/internal/report"
	"github.com/vasiliy-maslov/inventory-service/internal/user"
)

type repositories struct {
	users     user.Repository
	tokens    auth.Repository
	inventory inventory.Repository
	orders    order.Repository
	reports   report.Repository
	close     func()
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*repositories, error) {
	if err := db.ApplyPostgresMigrations(cfg); err != nil {
		return nil, err
	}

	pg, err := db.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &repositories{
		users:     user.NewPostgresRepository(pg.Pool),
		tokens:    auth.NewPostgresRepository(pg.Pool),
		inventory: inventory.NewPostgresRepository(pg.Pool),
		orders:    order.NewPostgresRepository(pg.Pool),
		reports:   report.NewPostgresRepository(pg.Pool),
		close:     pg.Close,
	}, nil
}

func openSQLite(cfg config.SQLiteConfig) (*repositories, error) {
	lite, err := db.NewSQLite(cfg)
	if err != nil {
		return nil, err
	}

	return &repositories{
		users:     user.NewSQLiteRepository(lite.DB),
		tokens:    auth.NewSQLiteRepository(lite.DB),
		inventory: inventory.NewSQLiteRepository(lite.DB),
		orders:    order.NewSQLiteRepository(lite.DB),
		reports:   report.NewSQLiteRepository(lite.DB),
		close:     lite.Close,
	}, nil
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.Name).Logger()
}

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Str("env", cfg.App.Env).Str("storage", cfg.Storage.Driver).Msg("Inventory service starting...")

	ctx := context.Background()

	var repos *repositories
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		repos, err = openSQLite(cfg.Storage.SQLite)
	default:
		repos, err = openPostgres(ctx, cfg.Storage.Postgres)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	userSvc := user.NewService(repos.users)
	inventorySvc := inventory.NewService(repos.inventory)
	services := handler.Services{
		Auth:      auth.NewService(repos.tokens),
		Users:     userSvc,
		Inventory: inventorySvc,
		Orders:    order.NewService(repos.orders, order.Options{StrictTransitions: cfg.Order.StrictTransitions}),
		Reports:   report.NewService(repos.reports, cfg.Report.LowStockThreshold),
	}

	if cfg.Admin.Email != "" {
		admin, err := userSvc.EnsureUser(ctx, &user.User{
			Name:         cfg.Admin.Name,
			Email:        cfg.Admin.Email,
			PasswordHash: cfg.Admin.Password,
			Role:         user.RoleAdmin,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to bootstrap admin user")
		}
		log.Info().Stringer("user_id", admin.ID).Str("email", admin.Email).Msg("Admin user ready")
	}

	if cfg.Seed.DemoData {
		created, err := inventory.SeedProducts(ctx, inventorySvc, inventory.DemoProducts())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo products")
		}
		log.Info().Int("created", created).Msg("Demo products seeded")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      handler.NewRouter(services, cfg.HTTP.AllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
