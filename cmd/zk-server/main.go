package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/cache"
	"github.com/daniel-mekuria/zk-server/internal/config"
	"github.com/daniel-mekuria/zk-server/internal/eventbus"
	"github.com/daniel-mekuria/zk-server/internal/fanout"
	"github.com/daniel-mekuria/zk-server/internal/httpapi"
	"github.com/daniel-mekuria/zk-server/internal/ingest"
	"github.com/daniel-mekuria/zk-server/internal/logging"
	"github.com/daniel-mekuria/zk-server/internal/notify"
	"github.com/daniel-mekuria/zk-server/internal/queue"
	"github.com/daniel-mekuria/zk-server/internal/registry"
	"github.com/daniel-mekuria/zk-server/internal/storage"
	"github.com/daniel-mekuria/zk-server/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting zk-server", zap.String("version", cfg.ServerVersion))

	db, err := storage.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer storage.Close(db)

	redisClient := cache.NewClient(&cfg.Redis)
	defer redisClient.Close()

	notifier, err := notify.New(&cfg.MQTT, logger)
	if err != nil {
		logger.Fatal("failed to connect to mqtt broker", zap.Error(err))
	}
	defer notifier.Close()

	terminals := storage.NewTerminalRepo(db)
	users := storage.NewUserRepo(db)
	biometrics := storage.NewBiometricRepo(db)
	photos := storage.NewPhotoRepo(db)
	workCodes := storage.NewWorkCodeRepo(db)
	messages := storage.NewMessageRepo(db)
	idCards := storage.NewIDCardRepo(db)
	syncLog := storage.NewSyncLogRepo(db)

	optionsCache := cache.NewOptionsCache(cache.NewRedisKVStore(redisClient))

	reg := registry.New(terminals, syncLog, optionsCache, cfg.Registry, logger)
	reg.SetNotifier(notifier)

	lifecyclePub := eventbus.NewPublisher(redisClient)
	q := queue.New(db, lifecyclePub, cfg.Queue.RetryLimit, logger)
	q.SetNotifier(notifier)

	fo := fanout.New(reg, q, syncLog, cfg.Sync.PropagatePhotos, logger)

	store := ingest.Store{
		Terminals:  terminals,
		Users:      users,
		Biometrics: biometrics,
		Photos:     photos,
		WorkCodes:  workCodes,
		Messages:   messages,
		IDCards:    idCards,
		SyncLog:    syncLog,
	}
	pipeline := ingest.New(store, fo, cfg.Sync.PropagatePhotos, logger)

	hostname, _ := os.Hostname()
	consumerName := hostname
	if consumerName == "" {
		consumerName = "zk-server"
	}
	lifecycleConsumer := eventbus.NewLifecycleConsumer(redisClient, logger, "zk-server-lifecycle", consumerName, 50)

	protocolHandler := httpapi.NewProtocolHandler(reg, q, pipeline, users, biometrics, cfg.HTTP.TimeZoneOffset, cfg.ServerVersion, logger)
	adminHandler := httpapi.NewAdminHandler(users, biometrics, syncLog, reg, q, lifecycleConsumer, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterProtocolRoutes(protocolHandler)
	router.RegisterAdminRoutes(adminHandler)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	sweep := sweeper.New(db, cfg.Queue, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := lifecycleConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("lifecycle consumer stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("sweeper stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}

	logger.Info("zk-server stopped")
}
