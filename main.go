package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"nextreel/api"
	"nextreel/config"
	"nextreel/handlers"
	"nextreel/internal/database"
	"nextreel/services/accounts"
	"nextreel/services/catalog"
	"nextreel/services/enrichment"
	"nextreel/services/history"
	"nextreel/services/navigation"
	"nextreel/services/prefetch"
	"nextreel/services/sessions"
	"nextreel/utils"
)

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "directory for config, databases, and logs")
	flag.Parse()

	cfgManager, err := config.NewManager(*dataDir)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	cfg := cfgManager.Get()

	setupLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(cfg config.Config) error {
	userDB, err := database.NewDB(database.Config{DatabasePath: cfg.UserDBPath})
	if err != nil {
		return err
	}
	defer userDB.Close()

	catalogStore, err := catalog.NewStore(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer catalogStore.Close()

	accountsSvc, err := accounts.NewService(userDB.Repository)
	if err != nil {
		return err
	}
	historySvc := history.NewService(userDB.Repository)

	sessionsSvc, err := sessions.NewService(cfg.DataDir, cfg.SessionDuration())
	if err != nil {
		return err
	}
	defer sessionsSvc.Close()

	enricher := enrichment.NewClient(cfg.TMDBAPIKey, filepath.Join(cfg.DataDir, "cache", "enrichment"), 7*24)
	supplier := prefetch.NewSupplier(catalogStore, enricher)

	navManager := navigation.NewManager(func(accountID string) *prefetch.Service {
		return prefetch.NewService(accountID, supplier, historySvc, cfg.QueueCapacity, cfg.QueueLowWater)
	})

	// A revoked or expired session takes its browsing state with it.
	sessionsSvc.SetRevokeHook(navManager.EndSession)

	router := utils.NewRouter()

	authLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	authHandler := handlers.NewAuthHandler(accountsSvc, sessionsSvc)
	authHandler.RegisterRoutes(router, authLimiter)

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(api.SessionAuthMiddleware(sessionsSvc))
	moviesHandler := handlers.NewMoviesHandler(navManager, historySvc)
	moviesHandler.RegisterRoutes(protected)
	accountsHandler := handlers.NewAccountsHandler(accountsSvc)
	accountsHandler.RegisterRoutes(protected)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	navManager.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[main] listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[main] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		navManager.Stop()
		return nil
	})

	return g.Wait()
}

func setupLogging(cfg config.Config) {
	if cfg.LogFile == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxAge:     cfg.LogMaxAge,
		MaxBackups: 5,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func defaultDataDir() string {
	if v := os.Getenv("NEXTREEL_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".nextreel")
}
