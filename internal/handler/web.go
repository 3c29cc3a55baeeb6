package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"graphsketch/internal/domain"
	"graphsketch/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Flash messages shown after form posts
const (
	FlashNodeAdded  = "The node has been added !"
	FlashEdgeAdded  = "The edge has been added !"
	FlashMissing    = "Please enter all the fields"
	FlashNeedColor  = "Please enter a Color for the node"
	FlashNeedWeight = "Please enter a weight"
	flashCookie     = "flash"
	flashLevelInfo  = "info"
	flashLevelError = "error"
	pageIndex       = "index"
	pageNewNode     = "newNode"
	pageNewEdge     = "newEdge"
)

// Flash is a one-shot message carried across a redirect
type Flash struct {
	Level   string
	Message string
}

// WebHandler serves the HTML form pages
type WebHandler struct {
	svc      *service.GraphService
	logger   *zap.Logger
	pages    map[string]*template.Template
	imageURL string
}

// NewWebHandler parses the page templates. imageURL is where the rendered
// graph is served from, or "" to omit it.
func NewWebHandler(svc *service.GraphService, logger *zap.Logger, imageURL string) (*WebHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pages := make(map[string]*template.Template)
	for name, file := range map[string]string{
		pageIndex:   "templates/index.html",
		pageNewNode: "templates/new_node.html",
		pageNewEdge: "templates/new_edge.html",
	} {
		tmpl, err := template.ParseFS(templateFS, "templates/pages.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", file, err)
		}
		pages[name] = tmpl
	}
	return &WebHandler{svc: svc, logger: logger, pages: pages, imageURL: imageURL}, nil
}

type edgeRow struct {
	From   string
	To     string
	Type   domain.EdgeVariant
	Weight *int
}

type pageData struct {
	Flash    *Flash
	Nodes    []domain.FragmentNode
	Edges    []edgeRow
	ImageURL string
}

// Index lists nodes and edges
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	graph := h.svc.Graph()

	names := make(map[string]string, len(graph.Nodes))
	for _, n := range graph.Nodes {
		names[n.ID] = n.Name
	}
	edges := make([]edgeRow, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		edges = append(edges, edgeRow{From: names[e.From], To: names[e.To], Type: e.Type, Weight: e.Weight})
	}

	h.render(w, r, pageIndex, pageData{Nodes: graph.Nodes, Edges: edges, ImageURL: h.imageURL})
}

// NewNodeForm shows the add-node form
func (h *WebHandler) NewNodeForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageNewNode, pageData{})
}

// NewEdgeForm shows the add-edge form with the current nodes to pick from
func (h *WebHandler) NewEdgeForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, pageNewEdge, pageData{Nodes: h.svc.ListNodes()})
}

// NewNode handles the add-node form
func (h *WebHandler) NewNode(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	variant := r.PostFormValue("type")

	if name == "" || variant == "" {
		h.redirect(w, r, "/", flashLevelError, FlashMissing)
		return
	}

	kind, err := domain.ParseNodeKind(variant, r.PostFormValue("color"))
	if err != nil {
		h.redirect(w, r, "/", flashLevelError, formMessage(err, "color", FlashNeedColor))
		return
	}
	if _, err := h.svc.CreateNode(r.Context(), name, kind); err != nil {
		h.logger.Warn("form node rejected", zap.Error(err))
		h.redirect(w, r, "/", flashLevelError, err.Error())
		return
	}
	h.redirect(w, r, "/", flashLevelInfo, FlashNodeAdded)
}

// NewEdge handles the add-edge form
func (h *WebHandler) NewEdge(w http.ResponseWriter, r *http.Request) {
	variant := r.PostFormValue("type")
	from := r.PostFormValue("from")
	to := r.PostFormValue("to")

	if variant == "" || from == "" || to == "" {
		h.redirect(w, r, "/newEdge", flashLevelError, FlashMissing)
		return
	}

	kind, err := domain.ParseEdgeKind(variant, r.PostFormValue("weight"))
	if err != nil {
		h.redirect(w, r, "/newEdge", flashLevelError, formMessage(err, "weight", FlashNeedWeight))
		return
	}
	if _, err := h.svc.CreateEdge(r.Context(), from, to, kind); err != nil {
		h.logger.Warn("form edge rejected", zap.Error(err))
		h.redirect(w, r, "/newEdge", flashLevelError, err.Error())
		return
	}
	h.redirect(w, r, "/", flashLevelInfo, FlashEdgeAdded)
}

// NewGraph renders the graph image
func (h *WebHandler) NewGraph(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Render(r.Context())
	if err != nil {
		h.redirect(w, r, "/", flashLevelError, "The graph could not be generated: "+err.Error())
		return
	}
	h.redirect(w, r, "/", flashLevelInfo, fmt.Sprintf("The graph has been generated (%s) !", result.Path))
}

// formMessage returns friendly when err is a validation error on field,
// and err's own text otherwise
func formMessage(err error, field, friendly string) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field == field {
		return friendly
	}
	return err.Error()
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, page string, data pageData) {
	data.Flash = popFlash(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
	}
}

func (h *WebHandler) redirect(w http.ResponseWriter, r *http.Request, to, level, message string) {
	setFlash(w, level, message)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func setFlash(w http.ResponseWriter, level, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(level + "|" + message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	level, message, ok := strings.Cut(raw, "|")
	if !ok {
		return nil
	}
	return &Flash{Level: level, Message: message}
}
