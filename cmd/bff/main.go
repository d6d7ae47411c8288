package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"spashell/bff/internal/app"
	"spashell/bff/internal/render"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	renderer, err := render.New(cfg.TemplatesDir, cfg.TemplateReload)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TemplateWatch && !cfg.TemplateReload {
		err := renderer.Watch(sigCtx, func(err error) {
			logger.Warn("template reload failed", zap.Error(err))
		})
		if err != nil {
			return fmt.Errorf("watch templates: %w", err)
		}
	}

	application, err := wireApp(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	httpServer := app.NewHTTPServer(
		application.composer,
		renderer,
		filepath.Join(cfg.FrontendDir, "public"),
		logger,
		application.checks,
	)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Addr()),
			zap.Bool("manifest_cache", cfg.ManifestCache),
			zap.Bool("parallel_fetch", cfg.ParallelFetch),
			zap.Bool("template_reload", cfg.TemplateReload),
			zap.Bool("template_watch", cfg.TemplateWatch))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
