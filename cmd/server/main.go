package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-lms/internal/api"
	"github.com/p-n-ai/pai-lms/internal/auth"
	"github.com/p-n-ai/pai-lms/internal/changelog"
	"github.com/p-n-ai/pai-lms/internal/content"
	"github.com/p-n-ai/pai-lms/internal/gamify"
	"github.com/p-n-ai/pai-lms/internal/platform/cache"
	"github.com/p-n-ai/pai-lms/internal/platform/config"
	"github.com/p-n-ai/pai-lms/internal/platform/database"
	"github.com/p-n-ai/pai-lms/internal/progress"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// app holds the wired services and the resources they own.
type app struct {
	server  *api.Server
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	content content.Store
	seeder  content.Seeder
	ledger  progress.Ledger
	changes changelog.Store
	gamify  gamify.Store
}

func memoryStores() stores {
	c := content.NewMemoryStore()
	return stores{
		content: c,
		seeder:  c,
		ledger:  progress.NewMemoryLedger(),
		changes: changelog.NewMemoryStore(),
		gamify:  gamify.NewMemoryStore(),
	}
}

// newApp wires storage, cache and services from cfg. Without a database
// everything runs on in-memory stores.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]api.HealthCheck{}
	st := memoryStores()

	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db.HealthCheck

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, err
			}
		}
		st, err = postgresStores(db)
		if err != nil {
			a.close()
			return nil, err
		}
		slog.Info("database connected")
	} else {
		slog.Info("database disabled, using in-memory stores")
	}

	var progressCache progress.Cache = progress.NopCache{}
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks["cache"] = c.HealthCheck
		progressCache = progress.NewRedisCache(c, time.Duration(cfg.Progress.CacheTTL)*time.Second)
		slog.Info("cache connected")
	}

	if cfg.Content.SeedDir != "" {
		if err := seed(ctx, cfg.Content.SeedDir, st); err != nil {
			a.close()
			return nil, err
		}
	}

	svc := progress.NewService(progress.ServiceConfig{
		Content: st.content,
		Ledger:  st.ledger,
		Cache:   progressCache,
	})
	a.server = api.NewServer(api.Config{
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret),
		Content:  st.content,
		Progress: svc,
		Changes:  st.changes,
		Gamify:   st.gamify,
		Checks:   checks,
	})
	return a, nil
}

func postgresStores(db *database.DB) (stores, error) {
	c, err := content.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	ledger, err := progress.NewPostgresLedger(db.Pool)
	if err != nil {
		return stores{}, err
	}
	changes, err := changelog.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	gam, err := gamify.NewPostgresStore(db.Pool)
	if err != nil {
		return stores{}, err
	}
	return stores{content: c, seeder: c, ledger: ledger, changes: changes, gamify: gam}, nil
}

func seed(ctx context.Context, dir string, st stores) error {
	if _, err := content.NewLoader(dir, st.seeder).Load(ctx); err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if _, err := gamify.LoadBadges(ctx, filepath.Join(dir, gamify.BadgesFile), st.gamify); err != nil {
		return fmt.Errorf("load badges: %w", err)
	}
	return nil
}
