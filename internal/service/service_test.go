package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphsketch/internal/domain"
	"graphsketch/internal/export"
	"graphsketch/internal/metrics"
	"graphsketch/internal/repository/sqlite"
)

// fakeRenderer records the description it was asked to render
type fakeRenderer struct {
	desc *export.Description
	path string
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, desc *export.Description, outPath string) error {
	f.desc = desc
	f.path = outPath
	return f.err
}

func (f *fakeRenderer) Format() string { return "png" }

type testEnv struct {
	svc      *GraphService
	repo     *sqlite.Repository
	renderer *fakeRenderer
	events   chan Event
	metrics  *metrics.Collector
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bus := NewEventBus()
	events := make(chan Event, 32)
	bus.Subscribe(events)

	renderer := &fakeRenderer{}
	collector := metrics.NewCollector("test")
	svc := NewGraphService(domain.NewStore(), repo, bus, zaptest.NewLogger(t), Options{
		Renderer:  renderer,
		Metrics:   collector,
		ImagePath: "out/graph.png",
	})
	return &testEnv{svc: svc, repo: repo, renderer: renderer, events: events, metrics: collector}
}

func (e *testEnv) nextEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-e.events:
		return ev
	default:
		t.Fatal("expected an event")
		return Event{}
	}
}

func (e *testEnv) abc(t *testing.T) (a, b, c domain.FragmentNode) {
	t.Helper()
	ctx := context.Background()
	var err error
	a, err = e.svc.CreateNode(ctx, "A", domain.PlainNode{})
	require.NoError(t, err)
	b, err = e.svc.CreateNode(ctx, "B", domain.PlainNode{})
	require.NoError(t, err)
	c, err = e.svc.CreateNode(ctx, "C", domain.ColoredNode{Color: "red"})
	require.NoError(t, err)
	_, err = e.svc.CreateEdge(ctx, a.ID, b.ID, domain.PlainEdge{})
	require.NoError(t, err)
	_, err = e.svc.CreateEdge(ctx, b.ID, c.ID, domain.WeightedEdge{Weight: 5})
	require.NoError(t, err)
	return a, b, c
}

func TestCreateNode(t *testing.T) {
	env := newTestService(t)

	node, err := env.svc.CreateNode(context.Background(), "A", domain.ColoredNode{Color: "red"})
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, "red", node.Color)

	ev := env.nextEvent(t)
	assert.Equal(t, EventNodeCreated, ev.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.NodesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.GraphNodes))

	nodes, _, err := env.repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, nodes, "node is persisted")
}

func TestCreateNodeValidation(t *testing.T) {
	env := newTestService(t)

	_, err := env.svc.CreateNode(context.Background(), "", domain.PlainNode{})
	assert.True(t, domain.IsValidation(err))

	_, err = env.svc.CreateNode(context.Background(), "A", domain.ColoredNode{})
	assert.True(t, domain.IsValidation(err))

	assert.Empty(t, env.svc.ListNodes())
	assert.Empty(t, env.events)
}

func TestCreateEdgeMissingEndpoint(t *testing.T) {
	env := newTestService(t)
	a, err := env.svc.CreateNode(context.Background(), "A", domain.PlainNode{})
	require.NoError(t, err)

	_, err = env.svc.CreateEdge(context.Background(), a.ID, "missing", domain.PlainEdge{})
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Empty(t, env.svc.ListEdges())

	_, edges, err := env.repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, edges)
}

func TestFailedPersistLeavesStoreUntouched(t *testing.T) {
	env := newTestService(t)
	require.NoError(t, env.repo.Close())

	_, err := env.svc.CreateNode(context.Background(), "A", domain.PlainNode{})
	require.Error(t, err)
	assert.Empty(t, env.svc.ListNodes())
}

func TestNeighbors(t *testing.T) {
	env := newTestService(t)
	a, b, c := env.abc(t)

	n, err := env.svc.Neighbors(b.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.FragmentNode{a}, n.Above)
	assert.Equal(t, []domain.FragmentNode{c}, n.Below)

	n, err = env.svc.Neighbors(a.ID)
	require.NoError(t, err)
	assert.Empty(t, n.Above)
	assert.NotNil(t, n.Above)

	_, err = env.svc.Neighbors("missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdateNode(t *testing.T) {
	env := newTestService(t)
	a, _, c := env.abc(t)
	ctx := context.Background()

	name := "Root"
	updated, err := env.svc.UpdateNode(ctx, a.ID, NodeUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Root", updated.Name)

	color := "blue"
	updated, err = env.svc.UpdateNode(ctx, c.ID, NodeUpdate{Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "blue", updated.Color)

	desc, err := env.svc.Describe()
	require.NoError(t, err)
	assert.Equal(t, "Root", desc.Nodes[0].Name)
	assert.Equal(t, "Root", desc.Edges[0].From)
	assert.Equal(t, "blue", desc.Nodes[2].Attrs[export.AttrFillColor])
}

func TestUpdateNodeRejectsColorOnPlainNode(t *testing.T) {
	env := newTestService(t)
	a, _, _ := env.abc(t)

	name, color := "Renamed", "blue"
	_, err := env.svc.UpdateNode(context.Background(), a.ID, NodeUpdate{Name: &name, Color: &color})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	got, err := env.svc.GetNode(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name, "rejected update changes nothing")
}

func TestUpdateNodeNotFound(t *testing.T) {
	env := newTestService(t)
	name := "x"
	_, err := env.svc.UpdateNode(context.Background(), "missing", NodeUpdate{Name: &name})
	assert.True(t, domain.IsNotFound(err))
}

func TestRender(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	result, err := env.svc.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "out/graph.png", result.Path)
	assert.Equal(t, 3, result.Nodes)
	assert.Equal(t, 2, result.Edges)

	require.NotNil(t, env.renderer.desc)
	assert.Equal(t, "out/graph.png", env.renderer.path)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Renders.WithLabelValues("success")))
}

func TestRenderError(t *testing.T) {
	env := newTestService(t)
	env.renderer.err = errors.New("dot exploded")

	_, err := env.svc.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Renders.WithLabelValues("error")))
}

func TestDOT(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	dot, err := env.svc.DOT()
	require.NoError(t, err)
	assert.Contains(t, string(dot), "A -> B")
}

func TestImportMerge(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	data := []byte("nodes:\n  - name: X\n  - name: Y\nedges:\n  - from: X\n    to: Y\n    weight: 2\n")
	result, err := env.svc.ImportYAML(context.Background(), data, "")
	require.NoError(t, err)
	assert.Equal(t, StrategyMerge, result.Strategy)
	assert.Equal(t, 2, result.NodesCreated)
	assert.Equal(t, 1, result.EdgesCreated)

	nodes, edges := env.svc.Counts()
	assert.Equal(t, 5, nodes)
	assert.Equal(t, 3, edges)
}

func TestImportReplace(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	data := []byte(`{"nodes":[{"id":"x","name":"X"}],"edges":[{"from":"x","to":"x"}]}`)
	_, err := env.svc.ImportJSON(context.Background(), data, StrategyReplace)
	require.NoError(t, err)

	graph := env.svc.Graph()
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "X", graph.Nodes[0].Name)
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, graph.Nodes[0].ID, graph.Edges[0].From)

	// The repository agrees with the store.
	reloaded := domain.NewStore()
	require.NoError(t, env.repo.Load(context.Background(), reloaded))
	nodes, edges := reloaded.Counts()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, edges)
}

func TestImportInvalidLeavesGraphUntouched(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	data := []byte("nodes:\n  - name: X\nedges:\n  - from: X\n    to: nowhere\n")
	_, err := env.svc.ImportYAML(context.Background(), data, StrategyReplace)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	nodes, edges := env.svc.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
}

func TestImportInvalidStrategy(t *testing.T) {
	env := newTestService(t)
	_, err := env.svc.ImportYAML(context.Background(), []byte("nodes: []"), "upsert")
	assert.True(t, domain.IsValidation(err))
}

func TestExportRoundTrip(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	var buf bytes.Buffer
	require.NoError(t, env.svc.ExportYAML(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "nodes:"))

	other := newTestService(t)
	_, err := other.svc.ImportYAML(context.Background(), buf.Bytes(), StrategyReplace)
	require.NoError(t, err)

	want, err := env.svc.Describe()
	require.NoError(t, err)
	got, err := other.svc.Describe()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClear(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	require.NoError(t, env.svc.Clear(context.Background()))
	nodes, edges := env.svc.Counts()
	assert.Zero(t, nodes)
	assert.Zero(t, edges)
	assert.Equal(t, 0.0, testutil.ToFloat64(env.metrics.GraphNodes))
}

func TestLoad(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	fresh := NewGraphService(domain.NewStore(), env.repo, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, fresh.Load(context.Background()))

	want, err := env.svc.Describe()
	require.NoError(t, err)
	got, err := fresh.Describe()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadIntoPopulatedStore(t *testing.T) {
	env := newTestService(t)
	env.abc(t)

	store := domain.NewStore()
	extra, err := domain.NewNode("Z", domain.PlainNode{})
	require.NoError(t, err)
	require.NoError(t, store.AddNode(extra))

	fresh := NewGraphService(store, env.repo, nil, zaptest.NewLogger(t), Options{})
	err = fresh.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store holds 4 nodes")
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 1)
	bus.Subscribe(ch)
	bus.Unsubscribe(ch)

	bus.Publish(Event{Type: EventGraphCleared})
	assert.Empty(t, ch)
}

func TestEventBusSkipsSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event)
	bus.Subscribe(ch)

	// Must not block.
	bus.Publish(Event{Type: EventGraphCleared})
}
