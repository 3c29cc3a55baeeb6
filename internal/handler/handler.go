package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphsketch/internal/domain"
	"graphsketch/internal/service"
)

// maxImportBytes caps the body of import requests
const maxImportBytes = 10 << 20

// GraphHandler handles graph API requests
type GraphHandler struct {
	svc    *service.GraphService
	logger *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(svc *service.GraphService, logger *zap.Logger) *GraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandler{svc: svc, logger: logger}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetGraph returns the complete graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Graph(), http.StatusOK)
}

// ClearGraph removes all nodes and edges
func (h *GraphHandler) ClearGraph(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.writeServiceError(w, "Failed to clear graph", err)
		return
	}
	h.writeJSON(w, map[string]string{"status": "cleared"}, http.StatusOK)
}

// ListNodes returns all nodes
func (h *GraphHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.ListNodes(), http.StatusOK)
}

// GetNode returns a single node
func (h *GraphHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.svc.GetNode(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get node", err)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// CreateNode creates a new node
func (h *GraphHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, "Invalid request body", err)
		return
	}
	kind, err := req.kind()
	if err != nil {
		h.writeServiceError(w, "Invalid node", err)
		return
	}

	node, err := h.svc.CreateNode(r.Context(), req.Name, kind)
	if err != nil {
		h.writeServiceError(w, "Failed to create node", err)
		return
	}
	h.writeJSON(w, node, http.StatusCreated)
}

// UpdateNode renames or recolors a node
func (h *GraphHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, "Invalid request body", err)
		return
	}

	node, err := h.svc.UpdateNode(r.Context(), chi.URLParam(r, "id"), service.NodeUpdate{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update node", err)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// GetNeighbors returns the nodes above and below a node
func (h *GraphHandler) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	neighbors, err := h.svc.Neighbors(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get neighbors", err)
		return
	}
	h.writeJSON(w, neighbors, http.StatusOK)
}

// ListEdges returns all edges
func (h *GraphHandler) ListEdges(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.ListEdges(), http.StatusOK)
}

// GetEdge returns a single edge
func (h *GraphHandler) GetEdge(w http.ResponseWriter, r *http.Request) {
	edge, err := h.svc.GetEdge(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get edge", err)
		return
	}
	h.writeJSON(w, edge, http.StatusOK)
}

// CreateEdge creates a new edge
func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, "Invalid request body", err)
		return
	}
	kind, err := req.kind()
	if err != nil {
		h.writeServiceError(w, "Invalid edge", err)
		return
	}

	edge, err := h.svc.CreateEdge(r.Context(), req.From, req.To, kind)
	if err != nil {
		h.writeServiceError(w, "Failed to create edge", err)
		return
	}
	h.writeJSON(w, edge, http.StatusCreated)
}

// ExportDescription returns the render description
func (h *GraphHandler) ExportDescription(w http.ResponseWriter, r *http.Request) {
	desc, err := h.svc.Describe()
	if err != nil {
		h.writeServiceError(w, "Failed to export graph", err)
		return
	}
	h.writeJSON(w, desc, http.StatusOK)
}

// ExportDOT returns the graph in Graphviz DOT syntax
func (h *GraphHandler) ExportDOT(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.DOT()
	if err != nil {
		h.writeServiceError(w, "Failed to export DOT", err)
		return
	}

	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write(data)
}

// ExportJSON exports the graph as JSON
func (h *GraphHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportJSON(&buf); err != nil {
		h.writeServiceError(w, "Failed to export JSON", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=graph.json")
	w.Write(buf.Bytes())
}

// ExportYAML exports the graph as YAML
func (h *GraphHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportYAML(&buf); err != nil {
		h.writeServiceError(w, "Failed to export YAML", err)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", "attachment; filename=graph.yml")
	w.Write(buf.Bytes())
}

// ImportYAML imports a YAML graph fragment
func (h *GraphHandler) ImportYAML(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, h.svc.ImportYAML)
}

// ImportJSON imports a JSON graph fragment
func (h *GraphHandler) ImportJSON(w http.ResponseWriter, r *http.Request) {
	h.importWith(w, r, h.svc.ImportJSON)
}

type importFunc func(ctx context.Context, data []byte, strategy string) (*service.ImportResult, error)

func (h *GraphHandler) importWith(w http.ResponseWriter, r *http.Request, fn importFunc) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, "Failed to read request body", err.Error(), http.StatusBadRequest)
		return
	}

	result, err := fn(r.Context(), data, r.URL.Query().Get("strategy"))
	if err != nil {
		h.writeServiceError(w, "Failed to import graph", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// Render writes the graph image and returns where it went
func (h *GraphHandler) Render(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Render(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to render graph", err)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// Helper methods

func (h *GraphHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func (h *GraphHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Warn("failed to encode error response", zap.Error(err))
	}
}

// writeServiceError maps domain errors to status codes
func (h *GraphHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	h.writeError(w, message, err.Error(), status)
}

// statusFor maps an error to its HTTP status. RenderPrepError and
// infrastructure failures are server errors.
func statusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
