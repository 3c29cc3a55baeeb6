package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"graphsketch/internal/metrics"
	"graphsketch/internal/service"
)

// RouterConfig collects what the router needs. Events and Metrics may be nil.
type RouterConfig struct {
	Service   *service.GraphService
	Events    http.Handler
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	ImagePath string
}

// NewRouter configures all routes and middleware
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	imageDir := filepath.Dir(cfg.ImagePath)
	imageURL := ""
	if cfg.ImagePath != "" {
		imageURL = "/images/" + filepath.Base(cfg.ImagePath)
	}

	graphHandler := NewGraphHandler(cfg.Service, logger)
	webHandler, err := NewWebHandler(cfg.Service, logger, imageURL)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(logger))
	if cfg.Metrics != nil {
		router.Use(Metrics(cfg.Metrics))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Form pages
	router.Get("/", webHandler.Index)
	router.Get("/newNode", webHandler.NewNodeForm)
	router.Post("/newNode", webHandler.NewNode)
	router.Get("/newEdge", webHandler.NewEdgeForm)
	router.Post("/newEdge", webHandler.NewEdge)
	router.Get("/newGraph", webHandler.NewGraph)
	router.Post("/newGraph", webHandler.NewGraph)

	router.Route("/api", func(r chi.Router) {
		r.Get("/graph", graphHandler.GetGraph)
		r.Delete("/graph", graphHandler.ClearGraph)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", graphHandler.ListNodes)
			r.Post("/", graphHandler.CreateNode)
			r.Get("/{id}", graphHandler.GetNode)
			r.Patch("/{id}", graphHandler.UpdateNode)
			r.Get("/{id}/neighbors", graphHandler.GetNeighbors)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Get("/", graphHandler.ListEdges)
			r.Post("/", graphHandler.CreateEdge)
			r.Get("/{id}", graphHandler.GetEdge)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/description", graphHandler.ExportDescription)
			r.Get("/dot", graphHandler.ExportDOT)
			r.Get("/json", graphHandler.ExportJSON)
			r.Get("/yaml", graphHandler.ExportYAML)
		})

		r.Post("/import/yaml", graphHandler.ImportYAML)
		r.Post("/import/json", graphHandler.ImportJSON)
		r.Post("/render", graphHandler.Render)
	})

	// Rendered images
	if cfg.ImagePath != "" {
		router.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(imageDir))))
	}

	// SSE events endpoint
	if cfg.Events != nil {
		router.Method(http.MethodGet, "/events", cfg.Events)
	}

	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	return router, nil
}
