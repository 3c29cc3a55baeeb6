package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"graphsketch/internal/codec"
	"graphsketch/internal/domain"
	"graphsketch/internal/export"
	"graphsketch/internal/metrics"
	"graphsketch/internal/render"
	"graphsketch/internal/repository"
)

// Renderer turns a description into an image file
type Renderer interface {
	Render(ctx context.Context, desc *export.Description, outPath string) error
	Format() string
}

// Import strategies
const (
	StrategyMerge   = "merge"
	StrategyReplace = "replace"
)

// Options configures a GraphService. Renderer and Metrics may be nil.
type Options struct {
	Renderer      Renderer
	Metrics       *metrics.Collector
	ImagePath     string
	RenderTimeout time.Duration
}

// GraphService provides business logic for graph operations
type GraphService struct {
	// mu serializes mutations and export snapshots
	mu       sync.Mutex
	store    *domain.Store
	repo     repository.Repository
	eventBus *EventBus
	logger   *zap.Logger
	opts     Options
}

// NewGraphService creates a new graph service around store and repo
func NewGraphService(store *domain.Store, repo repository.Repository, eventBus *EventBus, logger *zap.Logger, opts Options) *GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ImagePath == "" {
		opts.ImagePath = "static/images/graph.png"
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 30 * time.Second
	}
	return &GraphService{
		store:    store,
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		opts:     opts,
	}
}

// Load restores the persisted graph into the (empty) store and checks
// that the store then matches the database row counts
func (s *GraphService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Load(ctx, s.store); err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	nodes, edges := s.store.Counts()
	storedNodes, storedEdges, err := s.repo.Counts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	s.updateGauges()
	if nodes != storedNodes || edges != storedEdges {
		return fmt.Errorf("failed to load graph: store holds %d nodes and %d edges, database holds %d and %d",
			nodes, edges, storedNodes, storedEdges)
	}
	s.logger.Info("graph loaded", zap.Int("nodes", nodes), zap.Int("edges", edges))
	return nil
}

// Graph returns a copy of the whole graph
func (s *GraphService) Graph() *domain.GraphFragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.FragmentFrom(s.store.ListNodes(), s.store.ListEdges())
}

// ListNodes returns copies of all nodes in creation order
func (s *GraphService) ListNodes() []domain.FragmentNode {
	return s.Graph().Nodes
}

// ListEdges returns copies of all edges in creation order
func (s *GraphService) ListEdges() []domain.FragmentEdge {
	return s.Graph().Edges
}

// GetNode returns a copy of the node with the given id
func (s *GraphService) GetNode(id string) (domain.FragmentNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.store.Node(id)
	if err != nil {
		return domain.FragmentNode{}, err
	}
	return node.Snapshot(), nil
}

// GetEdge returns a copy of the edge with the given id
func (s *GraphService) GetEdge(id string) (domain.FragmentEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, err := s.store.Edge(id)
	if err != nil {
		return domain.FragmentEdge{}, err
	}
	return edge.Snapshot(), nil
}

// CreateNode validates, persists and registers a new node
func (s *GraphService) CreateNode(ctx context.Context, name string, kind domain.NodeKind) (domain.FragmentNode, error) {
	node, err := domain.NewNode(name, kind)
	if err != nil {
		return domain.FragmentNode{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveNode(ctx, node); err != nil {
		return domain.FragmentNode{}, err
	}
	if err := s.store.AddNode(node); err != nil {
		return domain.FragmentNode{}, err
	}

	snap := node.Snapshot()
	if s.opts.Metrics != nil {
		s.opts.Metrics.NodesCreated.Inc()
	}
	s.updateGauges()
	s.logger.Debug("node created", zap.String("node_id", snap.ID), zap.String("name", snap.Name), zap.String("type", string(snap.Type)))
	s.publish(EventNodeCreated, snap)
	return snap, nil
}

// CreateEdge resolves both endpoints, persists and registers a new edge
func (s *GraphService) CreateEdge(ctx context.Context, aboveID, belowID string, kind domain.EdgeKind) (domain.FragmentEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, err := s.store.PrepareEdge(aboveID, belowID, kind)
	if err != nil {
		return domain.FragmentEdge{}, err
	}
	if err := s.repo.SaveEdge(ctx, edge); err != nil {
		return domain.FragmentEdge{}, err
	}
	if err := s.store.AddEdge(edge); err != nil {
		return domain.FragmentEdge{}, err
	}

	snap := edge.Snapshot()
	if s.opts.Metrics != nil {
		s.opts.Metrics.EdgesCreated.Inc()
	}
	s.updateGauges()
	s.logger.Debug("edge created", zap.String("edge_id", snap.ID), zap.String("from", snap.From), zap.String("to", snap.To))
	s.publish(EventEdgeCreated, snap)
	return snap, nil
}

// NodeUpdate carries the optional changes of UpdateNode
type NodeUpdate struct {
	Name  *string
	Color *string
}

// UpdateNode renames and/or recolors a node. The stored row is written
// first; the in-memory node only changes once that succeeded.
func (s *GraphService) UpdateNode(ctx context.Context, id string, update NodeUpdate) (domain.FragmentNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.store.Node(id)
	if err != nil {
		return domain.FragmentNode{}, err
	}

	// Apply the change to a detached copy so validation and the write both
	// happen before the registered node is touched.
	next, err := domain.RestoreNode(node.ID(), node.Name(), node.Kind())
	if err != nil {
		return domain.FragmentNode{}, err
	}
	if update.Name != nil {
		if err := next.SetName(*update.Name); err != nil {
			return domain.FragmentNode{}, err
		}
	}
	if update.Color != nil {
		if err := next.SetColor(*update.Color); err != nil {
			return domain.FragmentNode{}, err
		}
	}

	if err := s.repo.UpdateNode(ctx, next); err != nil {
		return domain.FragmentNode{}, err
	}
	if err := node.SetName(next.Name()); err != nil {
		return domain.FragmentNode{}, err
	}
	if color, ok := next.Color(); ok {
		if err := node.SetColor(color); err != nil {
			return domain.FragmentNode{}, err
		}
	}

	snap := node.Snapshot()
	s.publish(EventNodeUpdated, snap)
	return snap, nil
}

// Neighbors lists the nodes adjacent to one node
type Neighbors struct {
	Node  domain.FragmentNode   `json:"node"`
	Above []domain.FragmentNode `json:"above"`
	Below []domain.FragmentNode `json:"below"`
}

// Neighbors returns the predecessors and successors of the node with the given id
func (s *GraphService) Neighbors(id string) (*Neighbors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.store.Node(id)
	if err != nil {
		return nil, err
	}
	return &Neighbors{
		Node:  node.Snapshot(),
		Above: snapshots(s.store.AboveNeighbors(node)),
		Below: snapshots(s.store.BelowNeighbors(node)),
	}, nil
}

func snapshots(nodes []*domain.Node) []domain.FragmentNode {
	out := make([]domain.FragmentNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Snapshot())
	}
	return out
}

// Describe exports the current graph to a render description
func (s *GraphService) Describe() (*export.Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return export.Export(s.store)
}

// DOT returns the current graph in Graphviz DOT syntax
func (s *GraphService) DOT() ([]byte, error) {
	desc, err := s.Describe()
	if err != nil {
		return nil, err
	}
	return render.EncodeDOT(desc)
}

// RenderResult describes a written image
type RenderResult struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}

// Render writes the current graph to the configured image path
func (s *GraphService) Render(ctx context.Context) (*RenderResult, error) {
	if s.opts.Renderer == nil {
		return nil, fmt.Errorf("no renderer configured")
	}

	desc, err := s.Describe()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.RenderTimeout)
	defer cancel()

	start := time.Now()
	err = s.opts.Renderer.Render(ctx, desc, s.opts.ImagePath)
	elapsed := time.Since(start)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRender(err, elapsed)
	}
	if err != nil {
		s.logger.Error("render failed", zap.Error(err), zap.Duration("duration", elapsed))
		return nil, err
	}

	result := &RenderResult{
		Path:   s.opts.ImagePath,
		Format: s.opts.Renderer.Format(),
		Nodes:  len(desc.Nodes),
		Edges:  len(desc.Edges),
	}
	s.logger.Info("graph rendered",
		zap.String("path", result.Path),
		zap.Int("nodes", result.Nodes),
		zap.Int("edges", result.Edges),
		zap.Duration("duration", elapsed))
	s.publish(EventGraphRendered, result)
	return result, nil
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	NodesCreated int    `json:"nodes_created"`
	EdgesCreated int    `json:"edges_created"`
	Strategy     string `json:"strategy"`
}

// ImportYAML imports graph data from YAML
func (s *GraphService) ImportYAML(ctx context.Context, data []byte, strategy string) (*ImportResult, error) {
	return s.Import(ctx, codec.NewYAMLCodec(), bytes.NewReader(data), strategy)
}

// ImportJSON imports graph data from JSON
func (s *GraphService) ImportJSON(ctx context.Context, data []byte, strategy string) (*ImportResult, error) {
	return s.Import(ctx, codec.NewJSONCodec(), bytes.NewReader(data), strategy)
}

// Import parses a fragment with importer and adds it to the graph. Merge
// appends; replace discards the current graph first. Imported entities get
// fresh ids. Either the whole fragment lands or nothing changes.
func (s *GraphService) Import(ctx context.Context, importer codec.Importer, r io.Reader, strategy string) (*ImportResult, error) {
	if strategy == "" {
		strategy = StrategyMerge
	}
	if strategy != StrategyMerge && strategy != StrategyReplace {
		return nil, &domain.ValidationError{Field: "strategy", Message: fmt.Sprintf("invalid strategy %s, must be 'merge' or 'replace'", strategy)}
	}

	fragment, err := importer.Parse(r)
	if err != nil {
		return nil, err
	}
	scratch, err := fragment.Build()
	if err != nil {
		return nil, err
	}
	nodes, edges := scratch.ListNodes(), scratch.ListEdges()

	s.mu.Lock()
	defer s.mu.Unlock()

	replace := strategy == StrategyReplace
	if err := s.repo.Import(ctx, nodes, edges, replace); err != nil {
		return nil, err
	}

	if replace {
		s.store.Clear()
	}
	for _, n := range nodes {
		if err := s.store.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := s.store.AddEdge(e); err != nil {
			return nil, err
		}
	}

	result := &ImportResult{
		NodesCreated: len(nodes),
		EdgesCreated: len(edges),
		Strategy:     strategy,
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.Imports.WithLabelValues(importer.Format(), strategy).Inc()
	}
	s.updateGauges()
	s.logger.Info("graph imported",
		zap.String("format", importer.Format()),
		zap.String("strategy", strategy),
		zap.Int("nodes", result.NodesCreated),
		zap.Int("edges", result.EdgesCreated))
	s.publish(EventGraphImported, result)
	return result, nil
}

// ExportJSON writes the graph as JSON
func (s *GraphService) ExportJSON(w io.Writer) error {
	return codec.NewJSONCodec().Export(s.Graph(), w)
}

// ExportYAML writes the graph as YAML
func (s *GraphService) ExportYAML(w io.Writer) error {
	return codec.NewYAMLCodec().Export(s.Graph(), w)
}

// Clear removes all nodes and edges
func (s *GraphService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.store.Clear()

	s.updateGauges()
	s.logger.Info("graph cleared")
	s.publish(EventGraphCleared, map[string]string{"action": "cleared"})
	return nil
}

// Counts returns the number of nodes and edges
func (s *GraphService) Counts() (nodes, edges int) {
	return s.store.Counts()
}

func (s *GraphService) publish(t EventType, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(Event{Type: t, Payload: payload})
}

// updateGauges must be called with s.mu held
func (s *GraphService) updateGauges() {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.SetGraphSize(s.store.Counts())
}
