package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tably.io/internal/auth"
	"tably.io/internal/config"
	"tably.io/internal/httpapi"
	"tably.io/internal/obs"
	"tably.io/internal/retention"
	"tably.io/internal/rooms"
	"tably.io/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("TABLY_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.Postgres)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Postgres.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := pg.RunMigrations(migrateCtx, store.DB()); err != nil {
			migrateCancel()
			log.Fatalf("migrate: %v", err)
		}
		migrateCancel()
	}

	accessTTL, err := cfg.Auth.AccessTTL()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	refreshTTL, err := cfg.Auth.RefreshTTL()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, accessTTL, refreshTTL)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	authSvc := auth.NewService(store, store.Tenants(), tokens,
		auth.WithAudit(store.Audit()),
		auth.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	roomSvc := rooms.NewService(store.Rooms(), auth.HashToken,
		rooms.WithAudit(store.Audit()),
	)

	if cfg.Retention.Enabled {
		sweeper := retention.NewSweeper(store.DB(), store.Tenants(), cfg.Retention.Interval)
		go sweeper.Run(ctx)
	}

	api := httpapi.New(cfg.Server, authSvc, tokens, store.Tenants(), roomSvc, store.DB(),
		httpapi.WithReadyProbe(func(ctx context.Context) error {
			return store.DB().PingContext(ctx)
		}),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tably-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
