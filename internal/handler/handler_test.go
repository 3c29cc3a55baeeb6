package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"graphsketch/internal/domain"
	"graphsketch/internal/export"
	"graphsketch/internal/metrics"
	"graphsketch/internal/repository/sqlite"
	"graphsketch/internal/service"
)

// fileRenderer writes a placeholder image instead of running Graphviz
type fileRenderer struct{}

func (fileRenderer) Render(_ context.Context, _ *export.Description, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("PNG"), 0644)
}

func (fileRenderer) Format() string { return "png" }

type testServer struct {
	router    http.Handler
	svc       *service.GraphService
	imagePath string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	imagePath := filepath.Join(t.TempDir(), "images", "graph.png")
	logger := zaptest.NewLogger(t)
	collector := metrics.NewCollector("test")
	svc := service.NewGraphService(domain.NewStore(), repo, service.NewEventBus(), logger, service.Options{
		Renderer:  fileRenderer{},
		Metrics:   collector,
		ImagePath: imagePath,
	})

	router, err := NewRouter(RouterConfig{
		Service:   svc,
		Metrics:   collector,
		Logger:    logger,
		ImagePath: imagePath,
	})
	require.NoError(t, err)
	return &testServer{router: router, svc: svc, imagePath: imagePath}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createNode(t *testing.T, body string) domain.FragmentNode {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/nodes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.FragmentNode](t, rec)
}

// flashOf extracts the flash message set on a redirect
func flashOf(t *testing.T, rec *httptest.ResponseRecorder) Flash {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			raw, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			level, message, _ := strings.Cut(raw, "|")
			return Flash{Level: level, Message: message}
		}
	}
	t.Fatal("no flash cookie set")
	return Flash{}
}

// ============================================================================
// JSON API
// ============================================================================

func TestCreateNodeAPI(t *testing.T) {
	srv := newTestServer(t)

	node := srv.createNode(t, `{"name":"A","type":"colored","color":"red"}`)
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, domain.NodeVariantColored, node.Type)

	// type is inferred from the color
	inferred := srv.createNode(t, `{"name":"B","color":"blue"}`)
	assert.Equal(t, domain.NodeVariantColored, inferred.Type)

	plain := srv.createNode(t, `{"name":"C"}`)
	assert.Equal(t, domain.NodeVariantPlain, plain.Type)
}

func TestCreateNodeAPIValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"type":"plain"}`},
		{name: "colored without color", body: `{"name":"A","type":"colored"}`},
		{name: "unknown type", body: `{"name":"A","type":"hexagon"}`},
		{name: "plain with color", body: `{"name":"A","type":"plain","color":"red"}`},
		{name: "unknown field", body: `{"name":"A","shape":"box"}`},
		{name: "malformed", body: `{"name":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/nodes", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.Details)
		})
	}

	assert.Empty(t, srv.svc.ListNodes())
}

func TestGetNodeAPI(t *testing.T) {
	srv := newTestServer(t)
	node := srv.createNode(t, `{"name":"A"}`)

	rec := srv.do(t, http.MethodGet, "/api/nodes/"+node.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, node, decode[domain.FragmentNode](t, rec))

	rec = srv.do(t, http.MethodGet, "/api/nodes/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateEdgeAPI(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"A"}`)
	b := srv.createNode(t, `{"name":"B"}`)

	rec := srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+a.ID+`","to":"`+b.ID+`","weight":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	edge := decode[domain.FragmentEdge](t, rec)
	assert.Equal(t, domain.EdgeVariantWeighted, edge.Type)
	require.NotNil(t, edge.Weight)
	assert.Equal(t, 5, *edge.Weight)

	rec = srv.do(t, http.MethodGet, "/api/edges/"+edge.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, edge, decode[domain.FragmentEdge](t, rec))

	rec = srv.do(t, http.MethodGet, "/api/edges", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.FragmentEdge](t, rec), 1)
}

func TestCreateEdgeAPIErrors(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"A"}`)

	rec := srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+a.ID+`","to":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/edges", `{"type":"weighted","from":"`+a.ID+`","to":"`+a.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+a.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/edges", `{"type":"plain","from":"`+a.ID+`","to":"`+a.ID+`","weight":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "weight")

	assert.Empty(t, srv.svc.ListEdges())
}

func TestNeighborsAPI(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"A"}`)
	b := srv.createNode(t, `{"name":"B"}`)
	c := srv.createNode(t, `{"name":"C"}`)
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}} {
		rec := srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+pair[0]+`","to":"`+pair[1]+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/api/nodes/"+b.ID+"/neighbors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	n := decode[service.Neighbors](t, rec)
	assert.Equal(t, []domain.FragmentNode{a}, n.Above)
	assert.Equal(t, []domain.FragmentNode{c}, n.Below)

	// Empty neighbor lists are arrays, not null.
	rec = srv.do(t, http.MethodGet, "/api/nodes/"+a.ID+"/neighbors", "")
	assert.Contains(t, rec.Body.String(), `"above":[]`)
}

func TestUpdateNodeAPI(t *testing.T) {
	srv := newTestServer(t)
	node := srv.createNode(t, `{"name":"A","color":"red"}`)

	rec := srv.do(t, http.MethodPatch, "/api/nodes/"+node.ID, `{"name":"Alpha","color":"green"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.FragmentNode](t, rec)
	assert.Equal(t, "Alpha", updated.Name)
	assert.Equal(t, "green", updated.Color)

	rec = srv.do(t, http.MethodPatch, "/api/nodes/"+node.ID, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/nodes/missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"A"}`)
	b := srv.createNode(t, `{"name":"B","color":"red"}`)
	rec := srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+a.ID+`","to":"`+b.ID+`","weight":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/export/description", "")
	require.Equal(t, http.StatusOK, rec.Code)
	desc := decode[export.Description](t, rec)
	require.Len(t, desc.Nodes, 2)
	assert.Equal(t, "red", desc.Nodes[1].Attrs[export.AttrFillColor])
	require.Len(t, desc.Edges, 1)
	assert.Equal(t, "3", desc.Edges[0].Attrs[export.AttrLabel])

	rec = srv.do(t, http.MethodGet, "/api/export/dot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A -> B")

	rec = srv.do(t, http.MethodGet, "/api/export/json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[domain.GraphFragment](t, rec).Nodes, 2)

	rec = srv.do(t, http.MethodGet, "/api/export/yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-yaml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "nodes:"))
}

func TestImportEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.createNode(t, `{"name":"Old"}`)

	rec := srv.do(t, http.MethodPost, "/api/import/yaml?strategy=replace", "nodes:\n  - name: X\n  - name: Y\nedges:\n  - from: X\n    to: Y\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.ImportResult](t, rec)
	assert.Equal(t, 2, result.NodesCreated)

	rec = srv.do(t, http.MethodPost, "/api/import/json", `{"nodes":[{"name":"Z"}],"edges":[]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	nodes, edges := srv.svc.Counts()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 1, edges)

	rec = srv.do(t, http.MethodPost, "/api/import/yaml?strategy=upsert", "nodes: []")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/import/yaml", "edges:\n  - from: nowhere\n    to: X\n")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearGraphAPI(t *testing.T) {
	srv := newTestServer(t)
	srv.createNode(t, `{"name":"A"}`)

	rec := srv.do(t, http.MethodDelete, "/api/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, rec.Body.String())
}

func TestRenderAndServeImage(t *testing.T) {
	srv := newTestServer(t)
	srv.createNode(t, `{"name":"A"}`)

	rec := srv.do(t, http.MethodPost, "/api/render", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[service.RenderResult](t, rec)
	assert.Equal(t, srv.imagePath, result.Path)

	rec = srv.do(t, http.MethodGet, "/images/graph.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNG", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.createNode(t, `{"name":"A"}`)

	rec := srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_nodes_created_total 1")
	assert.Contains(t, rec.Body.String(), `route="/api/nodes`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.ValidationError{Field: "name"}))
	assert.Equal(t, http.StatusNotFound, statusFor(&domain.NotFoundError{Kind: "node", ID: "x"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&export.RenderPrepError{EdgeID: "e"}))
}

// ============================================================================
// Form pages
// ============================================================================

func TestFormNewNode(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		form    url.Values
		level   string
		message string
	}{
		{
			name:    "plain node",
			form:    url.Values{"name": {"A"}, "type": {"plain"}},
			level:   flashLevelInfo,
			message: FlashNodeAdded,
		},
		{
			name:    "legacy colored variant",
			form:    url.Values{"name": {"B"}, "type": {"nodeColored"}, "color": {"red"}},
			level:   flashLevelInfo,
			message: FlashNodeAdded,
		},
		{
			name:    "missing name",
			form:    url.Values{"type": {"plain"}},
			level:   flashLevelError,
			message: FlashMissing,
		},
		{
			name:    "missing color",
			form:    url.Values{"name": {"C"}, "type": {"colored"}},
			level:   flashLevelError,
			message: FlashNeedColor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.postForm(t, "/newNode", tt.form)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
			assert.Equal(t, Flash{Level: tt.level, Message: tt.message}, flashOf(t, rec))
		})
	}

	nodes := srv.svc.ListNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "red", nodes[1].Color)
}

func TestFormNewEdge(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"A"}`)
	b := srv.createNode(t, `{"name":"B"}`)

	rec := srv.postForm(t, "/newEdge", url.Values{"type": {"weighted"}, "from": {a.ID}, "to": {b.ID}})
	assert.Equal(t, Flash{Level: flashLevelError, Message: FlashNeedWeight}, flashOf(t, rec))
	assert.Equal(t, "/newEdge", rec.Header().Get("Location"))

	rec = srv.postForm(t, "/newEdge", url.Values{"type": {"plain"}, "from": {a.ID}})
	assert.Equal(t, Flash{Level: flashLevelError, Message: FlashMissing}, flashOf(t, rec))

	rec = srv.postForm(t, "/newEdge", url.Values{"type": {"edgeweighted"}, "from": {a.ID}, "to": {b.ID}, "weight": {"4"}})
	assert.Equal(t, Flash{Level: flashLevelInfo, Message: FlashEdgeAdded}, flashOf(t, rec))
	assert.Equal(t, "/", rec.Header().Get("Location"))

	edges := srv.svc.ListEdges()
	require.Len(t, edges, 1)
	require.NotNil(t, edges[0].Weight)
	assert.Equal(t, 4, *edges[0].Weight)
}

func TestFormNewGraph(t *testing.T) {
	srv := newTestServer(t)
	srv.createNode(t, `{"name":"A"}`)

	rec := srv.postForm(t, "/newGraph", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	flash := flashOf(t, rec)
	assert.Equal(t, flashLevelInfo, flash.Level)
	assert.Contains(t, flash.Message, "The graph has been generated")

	_, err := os.Stat(srv.imagePath)
	assert.NoError(t, err)
}

func TestIndexShowsGraphAndFlash(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"Alpha"}`)
	b := srv.createNode(t, `{"name":"Beta","color":"red"}`)
	rec := srv.do(t, http.MethodPost, "/api/edges", `{"from":"`+a.ID+`","to":"`+b.ID+`","weight":9}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: url.QueryEscape(flashLevelInfo + "|" + FlashNodeAdded)})
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alpha")
	assert.Contains(t, body, "Beta")
	assert.Contains(t, body, "<td>9</td>")
	assert.Contains(t, body, FlashNodeAdded)

	// The flash cookie is cleared once shown.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestNewEdgeFormListsNodes(t *testing.T) {
	srv := newTestServer(t)
	a := srv.createNode(t, `{"name":"Alpha"}`)

	rec := srv.do(t, http.MethodGet, "/newEdge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="`+a.ID+`">Alpha</option>`)
}
