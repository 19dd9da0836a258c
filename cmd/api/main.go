package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shelf/api/internal/app"
	"shelf/api/internal/broadcast"
	"shelf/api/internal/config"
	"shelf/api/internal/export"
	"shelf/api/internal/search"
	"shelf/api/internal/store"
	"shelf/api/internal/suggest"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	log.Printf("schema up to date, %d migrations applied", len(applied))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	dataStore := store.NewPostgresStore(db)
	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
		go searchService.ReindexAllFromPG(runCtx)
	}

	hub := broadcast.NewHub(cfg.CORSOrigin)
	go hub.Run(runCtx)

	var publisher broadcast.Publisher = hub
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis channel %s for broadcasts", cfg.BroadcastChannel)
		relay, err := broadcast.NewRedisRelay(cfg.RedisURL, cfg.BroadcastChannel, hub)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer relay.Close()
		go func() {
			if err := relay.Run(runCtx); err != nil {
				log.Printf("broadcast: relay stopped: %v", err)
			}
		}()
		select {
		case <-relay.Ready():
		case <-time.After(5 * time.Second):
			log.Printf("WARNING: redis subscription not ready, broadcasts may be missed")
		}
		publisher = relay
	} else {
		log.Printf("Using in-process broadcasts")
	}

	var uploader export.Uploader
	if strings.TrimSpace(cfg.ExportEndpoint) != "" {
		objectStore, err := export.NewObjectStore(ctx, export.ObjectStoreConfig{
			Endpoint:  cfg.ExportEndpoint,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
			Bucket:    cfg.ExportBucket,
			UseSSL:    cfg.ExportUseSSL,
		})
		if err != nil {
			log.Printf("WARNING: export uploads disabled: %v", err)
		} else {
			uploader = objectStore
		}
	}

	service := app.New(cfg, dataStore, searchService, suggest.NewService(cfg.SuggestTimeout), publisher, uploader)

	httpServer := app.NewHTTPServer(service, http.HandlerFunc(hub.ServeWS), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Shelf API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	stop()
}
