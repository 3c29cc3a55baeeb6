package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphsketch/internal/handler"
	"graphsketch/internal/hub"
	"graphsketch/internal/loader"
	"graphsketch/internal/service"
	"graphsketch/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web pages and JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
}

func serve(ctx context.Context) error {
	logger.Info("starting graphsketch", zap.String("config", cfg.Summary()))

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// SSE hub fed from the event bus
	sseHub := hub.New(logger)
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	a.bus.Subscribe(eventChan)
	defer a.bus.Unsubscribe(eventChan)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventChan:
				sseHub.Broadcast(event)
			}
		}
	}()

	if cfg.Seed.Path != "" {
		if err := loadSeed(ctx, a.svc); err != nil {
			return err
		}
		if cfg.Seed.Watch {
			w := watcher.New(cfg.Seed.Path, func() {
				if err := loadSeed(ctx, a.svc); err != nil {
					logger.Error("failed to reload seed", zap.Error(err))
				}
			}, logger)
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("seed watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	router, err := handler.NewRouter(handler.RouterConfig{
		Service:   a.svc,
		Events:    sseHub,
		Metrics:   a.metrics,
		Logger:    logger,
		ImagePath: cfg.Render.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  cfg.Server.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// loadSeed replaces the graph with the configured seed file
func loadSeed(ctx context.Context, svc *service.GraphService) error {
	result, err := loader.LoadFile(ctx, svc, cfg.Seed.Path, service.StrategyReplace)
	if err != nil {
		return err
	}
	logger.Info("seed loaded",
		zap.String("path", cfg.Seed.Path),
		zap.Int("nodes", result.NodesCreated),
		zap.Int("edges", result.EdgesCreated),
	)
	return nil
}
