package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/welldanyogia/threadmail/internal/api"
	"github.com/welldanyogia/threadmail/internal/attachments"
	"github.com/welldanyogia/threadmail/internal/config"
	"github.com/welldanyogia/threadmail/internal/database"
	"github.com/welldanyogia/threadmail/internal/logger"
	"github.com/welldanyogia/threadmail/internal/mailbox"
	"github.com/welldanyogia/threadmail/internal/mailparse"
	"github.com/welldanyogia/threadmail/internal/mailsync"
	"github.com/welldanyogia/threadmail/internal/outbound"
	"github.com/welldanyogia/threadmail/internal/repository"
	"github.com/welldanyogia/threadmail/internal/storage"
	"github.com/welldanyogia/threadmail/internal/threading"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(os.Stdout, cfg.SlogLevel(), logger.FormatFor(cfg.AppEnv))
	slog.SetDefault(log)

	log.Info("Starting threadmail server...")
	cfg.LogConfig(log)

	// Database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database ready")

	// Repositories
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	cursorRepo := repository.NewCursorRepository(db)

	// Attachment storage
	files, err := storage.NewLocalStorage(cfg.AttachmentStoragePath, cfg.AttachmentBaseURL)
	if err != nil {
		return fmt.Errorf("init attachment storage: %w", err)
	}

	// Inbound synchronization
	syncService := mailsync.NewService(mailsync.Deps{
		Mailbox:     mailbox.NewIMAPClient(cfg.IMAP, cfg.IMAPMailbox, log),
		Parser:      mailparse.NewParser(cfg.OperatorEmail),
		Resolver:    threading.NewDefaultResolver(messageRepo, threadRepo, cfg.SubjectMatchWindow),
		Attachments: attachments.NewStore(files, log),
		Threads:     threadRepo,
		Messages:    messageRepo,
		Cursor:      cursorRepo,
	}, cfg.SyncBatchSize, log)

	scheduler := mailsync.NewScheduler(syncService, mailsync.SchedulerConfig{
		Interval: cfg.SyncInterval,
		Timeout:  cfg.SyncTimeout,
	}, log)

	// Outbound mail
	sender := outbound.NewService(
		outbound.NewComposer(cfg.OperatorEmail, cfg.OperatorName),
		outbound.NewSMTPTransport(cfg.SMTP, operatorDomain(cfg.OperatorEmail)),
		threadRepo,
		messageRepo,
		log,
	)

	// HTTP API
	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		FileStorage:    files,
		Sender:         sender,
		Syncer:         syncService,
		Scheduler:      scheduler,
		Logger:         log,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.AppEnv == "production",
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		TrustProxy:     cfg.TrustProxy,
		SyncCooldown:   cfg.SyncCooldown,
	})

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	scheduler.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		scheduler.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	// Stop accepting requests first, then let the in-flight sync finish
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", slog.Any("error", err))
	}
	scheduler.Stop()

	log.Info("Server stopped")
	return nil
}

func operatorDomain(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 {
		return address[at+1:]
	}
	return ""
}
