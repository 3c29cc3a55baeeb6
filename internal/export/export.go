// Package export turns a graph snapshot into a renderer-agnostic
// Description: one record per node, one per edge, in creation order.
//
// Nodes are addressed by name, not id. Two nodes sharing a name produce two
// records with the same identifier, which a layout engine draws as a single
// node; edges touching either merge onto it.
package export

import (
	"fmt"
	"sort"
	"strconv"

	"graphsketch/internal/domain"
)

// Graphviz attribute keys and values emitted by Export
const (
	AttrStyle     = "style"
	AttrFillColor = "fillcolor"
	AttrLabel     = "label"

	StyleFilled = "filled"
)

// Attrs holds styling attributes for a node or edge record
type Attrs map[string]string

// Keys returns attribute keys in sorted order
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NodeRecord describes one node, keyed by its display name
type NodeRecord struct {
	Name  string `json:"name"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

// EdgeRecord describes one directed edge between display names
type EdgeRecord struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

// Label returns the edge label and whether one is set
func (r EdgeRecord) Label() (string, bool) {
	l, ok := r.Attrs[AttrLabel]
	return l, ok
}

// Description is the graph description handed to a renderer
type Description struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// Snapshot is the read side of a graph store
type Snapshot interface {
	ListNodes() []*domain.Node
	ListEdges() []*domain.Edge
}

// RenderPrepError reports an edge whose endpoint is missing from the
// snapshot's node list. It means an upstream invariant was broken.
type RenderPrepError struct {
	EdgeID   string
	Endpoint string
	NodeID   string
}

func (e *RenderPrepError) Error() string {
	return fmt.Sprintf("edge %s: %s node %q is not in the snapshot", e.EdgeID, e.Endpoint, e.NodeID)
}

// Export builds a Description from src. Nodes and edges are read
// separately, so every edge endpoint is checked against the node list.
func Export(src Snapshot) (*Description, error) {
	nodes := src.ListNodes()
	edges := src.ListEdges()

	desc := &Description{
		Nodes: make([]NodeRecord, 0, len(nodes)),
		Edges: make([]EdgeRecord, 0, len(edges)),
	}

	present := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		present[n.ID()] = struct{}{}
		desc.Nodes = append(desc.Nodes, nodeRecord(n))
	}

	for _, e := range edges {
		if err := checkEndpoint(present, e, "above", e.Above()); err != nil {
			return nil, err
		}
		if err := checkEndpoint(present, e, "below", e.Below()); err != nil {
			return nil, err
		}
		desc.Edges = append(desc.Edges, edgeRecord(e))
	}

	return desc, nil
}

func checkEndpoint(present map[string]struct{}, e *domain.Edge, endpoint string, n *domain.Node) error {
	if n == nil {
		return &RenderPrepError{EdgeID: e.ID(), Endpoint: endpoint}
	}
	if _, ok := present[n.ID()]; !ok {
		return &RenderPrepError{EdgeID: e.ID(), Endpoint: endpoint, NodeID: n.ID()}
	}
	return nil
}

func nodeRecord(n *domain.Node) NodeRecord {
	rec := NodeRecord{Name: n.Name()}
	switch k := n.Kind().(type) {
	case domain.ColoredNode:
		rec.Attrs = Attrs{AttrStyle: StyleFilled, AttrFillColor: k.Color}
	case domain.PlainNode:
	}
	return rec
}

func edgeRecord(e *domain.Edge) EdgeRecord {
	rec := EdgeRecord{From: e.Above().Name(), To: e.Below().Name()}
	switch k := e.Kind().(type) {
	case domain.WeightedEdge:
		rec.Attrs = Attrs{AttrLabel: strconv.Itoa(k.Weight)}
	case domain.PlainEdge:
	}
	return rec
}
