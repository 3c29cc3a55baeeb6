package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"graphsketch/internal/domain"
	"graphsketch/internal/metrics"
	"graphsketch/internal/render"
	"graphsketch/internal/repository/sqlite"
	"graphsketch/internal/service"
)

// app is the wired graph service shared by all commands
type app struct {
	repo    *sqlite.Repository
	bus     *service.EventBus
	metrics *metrics.Collector
	svc     *service.GraphService
}

// newApp opens the database and restores the persisted graph
func newApp(ctx context.Context) (*app, error) {
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("path", cfg.Database.Path))

	bus := service.NewEventBus()
	collector := metrics.NewCollector("graphsketch")
	renderer := render.NewGraphviz(render.Options{
		Binary:  cfg.Render.DotBinary,
		Format:  cfg.Render.Format,
		Timeout: cfg.Render.Timeout.Duration(),
	}, logger)

	svc := service.NewGraphService(domain.NewStore(), repo, bus, logger, service.Options{
		Renderer:      renderer,
		Metrics:       collector,
		ImagePath:     cfg.Render.OutputPath,
		RenderTimeout: cfg.Render.Timeout.Duration(),
	})
	if err := svc.Load(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	return &app{repo: repo, bus: bus, metrics: collector, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}
