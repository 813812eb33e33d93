package app

import (
	"context"
	"log"
	"time"

	"mediadrop/portal/internal/config"
	"mediadrop/portal/internal/handler"
	"mediadrop/portal/internal/pkg/jobs"
	redisstore "mediadrop/portal/internal/pkg/storage"
	"mediadrop/portal/internal/pkg/tg"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/service"
	"mediadrop/portal/internal/storage"
	"mediadrop/portal/internal/ws"
)

func Run(cfg *config.Config) {
	ctx := context.Background()

	db, err := repository.NewDB(cfg.DSN())
	if err != nil {
		log.Fatal(err)
	}

	clientRepo := repository.NewClientRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	linkRepo := repository.NewUploadLinkRepository(db)
	fileRepo := repository.NewFileRepository(db)

	backend, publicURL := newBackend(ctx, cfg)

	hub := ws.NewHub()
	defer hub.Shutdown()

	notifiers := service.MultiNotifier{ws.NewNotifier(hub)}
	if cfg.TelegramBotToken != "" {
		store, err := redisstore.NewRedisStorage(cfg.RedisAddr, "", 0)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		telegram, err := tg.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, store)
		if err != nil {
			log.Fatal(err)
		}
		notifiers = append(notifiers, telegram)
	} else {
		log.Println("telegram notifications disabled: TELEGRAM_BOT_TOKEN not set")
	}

	runner := jobs.NewRunner(4, 256)

	normalizer := service.NewNormalizer(fileRepo)
	reconciler := service.NewReconciler(backend, fileRepo, linkRepo, normalizer, notifiers, publicURL)
	tracker := service.NewTracker(notifiers, runner, reconciler, cfg.ReconcileDelay())
	ingest := service.NewIngest(tracker, reconciler, normalizer, backend, fileRepo, linkRepo, runner)

	go evictionLoop(tracker, cfg.LedgerMaxAge())

	hookHandler := handler.NewHookHandler(ingest)
	uploadHandler := handler.NewUploadHandler(ingest, tracker, reconciler, fileRepo, linkRepo)
	adminHandler := handler.NewAdminHandler(clientRepo, projectRepo, linkRepo, tracker, hub, cfg.AdminUsername, cfg.AdminPasswordHash)

	server := NewServer(hookHandler, uploadHandler, adminHandler)
	server.Run(cfg.ServerPort)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Printf("job runner shutdown: %v", err)
	}
}

// newBackend picks object storage from config: a bucket when S3 credentials
// are present, the organized directory tree otherwise.
func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, string) {
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		backend, err := storage.NewS3Backend(ctx, cfg)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("storage: using bucket %s", cfg.S3Bucket)
		return backend, cfg.S3Endpoint + "/" + cfg.S3Bucket
	}

	backend, err := storage.NewLocalBackend(cfg.OrganizedDir)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("storage: using local tree at %s", cfg.OrganizedDir)
	return backend, ""
}

// evictionLoop periodically drops old completed entries from the ledger.
func evictionLoop(tracker *service.Tracker, maxAge time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if n := tracker.EvictOlderThan(maxAge); n > 0 {
			log.Printf("ledger: evicted %d completed uploads", n)
		}
	}
}
