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

	"github.com/redis/go-redis/v9"

	"github.com/CardChase151/BandOfBrothers-sub000/internal/accounts"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/app"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/config"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/email"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/export"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/media"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/perm"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/realtime"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/search"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/session"
	"github.com/CardChase151/BandOfBrothers-sub000/internal/store"
)

func main() {
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts, dataStore)
	searchService.ReindexAllFromPG(ctx)

	var redisClient *redis.Client
	var sessions accounts.SessionStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("bad redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		log.Printf("using redis for sessions and realtime events")
		sessions = session.NewRedisStoreWithClient(redisClient)
	} else {
		log.Printf("using postgres for sessions; realtime events disabled")
		sessions = session.NewPostgresStore(dataStore)
	}

	accountsService := accounts.New(dataStore, sessions, []byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)

	service := app.New(cfg, dataStore).WithIndexer(searchService)

	emailService := email.NewService(email.Config{
		Host:            cfg.SMTPHost,
		Port:            cfg.SMTPPort,
		Username:        cfg.SMTPUsername,
		Password:        cfg.SMTPPassword,
		From:            cfg.SMTPFrom,
		FromName:        cfg.SMTPFromName,
		ModerationInbox: cfg.ModerationInbox,
	})
	if emailService.IsConfigured() {
		service.WithNotifier(emailService)
	}

	httpServer := app.NewHTTPServer(service, accountsService, cfg.CORSOrigin).
		WithSearch(searchService).
		WithExporter(export.NewService())

	if redisClient != nil {
		service.WithEvents(realtime.NewPublisher(redisClient))
		hub := realtime.NewHub(redisClient, perm.NewEvaluator(dataStore), app.UserIDFromContext)
		go hub.Run(ctx)
		httpServer.WithWebsocket(hub)
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaService, err := media.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: object storage unavailable, uploads disabled: %v", err)
		} else {
			httpServer.WithMedia(mediaService)
		}
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("chat API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
