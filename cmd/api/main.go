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

	"cardsmith/api/internal/app"
	"cardsmith/api/internal/config"
	"cardsmith/api/internal/designcache"
	"cardsmith/api/internal/designrepo"
	"cardsmith/api/internal/export"
	"cardsmith/api/internal/render"
	"cardsmith/api/internal/search"
	"cardsmith/api/internal/store"
	"cardsmith/api/internal/upload"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	designs := store.NewPostgresStore(db)
	revisions := designrepo.New(cfg.ReposDir)

	sqlSearch := search.NewSQLFallback(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, sqlSearch)
	if records, err := sqlSearch.LoadAllRecords(ctx); err != nil {
		log.Printf("WARNING: search reindex skipped: %v", err)
	} else {
		searchService.ReindexAll(records)
	}

	var drafts app.DraftStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := designcache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		drafts = redisStore
	} else {
		log.Printf("WARNING: no Redis configured, draft autosave is disabled")
	}

	var uploads app.Uploader
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		uploadService, err := upload.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioPublicURL, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		if err := uploadService.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: upload bucket check failed: %v", err)
		}
		uploads = uploadService
	} else {
		log.Printf("WARNING: no MinIO configured, image uploads are disabled")
	}

	renderer := render.New(cfg.ViewerBaseURL)
	exporter := export.NewService(renderer, &export.ChromeCapturer{})

	service := app.NewService(db, designs, drafts, revisions, searchService, uploads, exporter, renderer, cfg.AutosaveWindow)
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.MaxUploadBytes)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Cardsmith API listening on %s", cfg.Addr)
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
}
