package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/weiawesome/duwdu-messenger/internal/app"
	"github.com/weiawesome/duwdu-messenger/internal/chatapi"
	"github.com/weiawesome/duwdu-messenger/internal/handler"
	"github.com/weiawesome/duwdu-messenger/internal/hub"
	"github.com/weiawesome/duwdu-messenger/internal/media"
	"github.com/weiawesome/duwdu-messenger/internal/push"
	"github.com/weiawesome/duwdu-messenger/internal/session"
	"github.com/weiawesome/duwdu-messenger/pkg/log"
	"github.com/weiawesome/duwdu-messenger/pkg/storage"
)

var _ app.API = (*chatapi.Client)(nil)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the client and serve the local UI API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	l := log.L()

	store, err := session.New(ctx, cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()
	l.Info().Str("driver", cfg.Session.Driver).Msg("session store ready")

	api := chatapi.New(cfg.ChatService)

	uploader, err := newUploader(ctx, api)
	if err != nil {
		return err
	}

	broker, closeBroker, err := push.New(ctx, cfg.Push)
	if err != nil {
		return fmt.Errorf("failed to start push: %w", err)
	}
	defer closeBroker()

	opts := app.Options{
		PollInterval:   cfg.Thread.PollInterval,
		SearchDebounce: cfg.Search.Debounce,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		AvatarSize:     cfg.Media.AvatarSize,
	}
	if broker != nil {
		opts.Nudger = broker
		opts.Publisher = broker
	}
	ctrl := app.New(api, store, uploader, opts)
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		l.Warn().Err(err).Msg("failed to restore session")
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	wsHandler := handler.NewWSHandler(wsHub, ctrl, cfg.WebSocket)
	go wsHandler.Stream(ctx)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), log.GinMiddleware(l))
	handler.NewHandler(ctrl, cfg.Media.MaxUploadBytes).RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)
	if cfg.Media.Uploader == "storage" && cfg.Storage.Type == "local" {
		r.Static("/media", cfg.Storage.Local.BasePath)
	}

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("addr", server.Addr).Msg("local API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	l.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}
	return nil
}

func newUploader(ctx context.Context, api *chatapi.Client) (media.Uploader, error) {
	switch cfg.Media.Uploader {
	case "", "http":
		return media.NewHTTPUploader(api), nil
	case "storage":
		var store storage.Storage
		var err error
		switch cfg.Storage.Type {
		case "", "local":
			store, err = storage.NewLocalStorage(cfg.Storage.Local)
		case "s3":
			store, err = storage.NewS3Storage(ctx, cfg.Storage.S3)
		default:
			err = fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open media storage: %w", err)
		}
		return media.NewStorageUploader(store), nil
	default:
		return nil, fmt.Errorf("unsupported media uploader: %s", cfg.Media.Uploader)
	}
}
