package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailgrove/mailgrove/internal/attachment"
	"github.com/mailgrove/mailgrove/internal/autoreply"
	"github.com/mailgrove/mailgrove/internal/config"
	"github.com/mailgrove/mailgrove/internal/database"
	"github.com/mailgrove/mailgrove/internal/delivery"
	"github.com/mailgrove/mailgrove/internal/directory"
	"github.com/mailgrove/mailgrove/internal/label"
	"github.com/mailgrove/mailgrove/internal/mailbox"
	"github.com/mailgrove/mailgrove/internal/notify"
	"github.com/mailgrove/mailgrove/internal/ratelimit"
	"github.com/mailgrove/mailgrove/internal/spam"
	"github.com/mailgrove/mailgrove/internal/store/postgres"
	"github.com/mailgrove/mailgrove/internal/web"
	"github.com/mailgrove/mailgrove/internal/web/handlers"
	"github.com/mailgrove/mailgrove/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	userStore := postgres.NewUserStore(db)
	messageStore := postgres.NewMessageStore(db)
	labelStore := postgres.NewLabelStore(db)
	autoReplyStore := postgres.NewAutoReplyStore(db)

	// Attachment blob backend
	blobStore, err := attachment.NewBlobStoreFromConfig(context.Background(), attachment.Config{
		Backend:           cfg.BlobBackend,
		FSRoot:            cfg.BlobFSRoot,
		S3Bucket:          cfg.S3Bucket,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3ForcePathStyle:  cfg.S3ForcePathStyle,
	})
	if err != nil {
		slog.Error("failed to init attachment store", "error", err)
		os.Exit(1)
	}

	// Services
	directoryService := directory.NewService(userStore)
	classifier := spam.NewClassifier(directoryService)
	labelService := label.NewService(labelStore)
	autoReplyService := autoreply.NewService(autoReplyStore)
	attachmentService := attachment.NewService(blobStore)
	mailboxService := mailbox.NewService(messageStore)

	hub := notify.NewHub()

	deliveryService := delivery.NewService(
		messageStore,
		directoryService,
		classifier,
		labelService,
		autoReplyService,
		attachmentService,
		hub,
	)

	// Rate limiter
	limiter := ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Router
	router := web.NewRouter(web.RouterDeps{
		MessageHandler:      handlers.NewMessageHandler(deliveryService),
		MailboxHandler:      handlers.NewMailboxHandler(mailboxService),
		LabelHandler:        handlers.NewLabelHandler(labelService),
		AutoReplyHandler:    handlers.NewAutoReplyHandler(autoReplyService),
		AttachmentHandler:   handlers.NewAttachmentHandler(attachmentService),
		NotificationHandler: handlers.NewNotificationHandler(hub),
		UserHandler:         handlers.NewUserHandler(directoryService),
		Directory:           directoryService,
		Limiter:             limiter,
	})

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("mailgrove starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
