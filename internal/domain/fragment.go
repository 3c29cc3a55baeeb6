package domain

import (
	"errors"
	"strconv"
)

// GraphFragment is the portable form of a graph used for import/export.
// Node ids are local keys: edges reference nodes by them, and an import
// assigns fresh ids.
type GraphFragment struct {
	Nodes []FragmentNode `json:"nodes" yaml:"nodes"`
	Edges []FragmentEdge `json:"edges" yaml:"edges"`
}

// FragmentNode is a node inside a GraphFragment
type FragmentNode struct {
	ID    string      `json:"id" yaml:"id,omitempty"`
	Name  string      `json:"name" yaml:"name"`
	Type  NodeVariant `json:"type" yaml:"type,omitempty"`
	Color string      `json:"color,omitempty" yaml:"color,omitempty"`
}

// FragmentEdge is an edge inside a GraphFragment
type FragmentEdge struct {
	ID     string      `json:"id,omitempty" yaml:"id,omitempty"`
	From   string      `json:"from" yaml:"from"`
	To     string      `json:"to" yaml:"to"`
	Type   EdgeVariant `json:"type" yaml:"type,omitempty"`
	Weight *int        `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// NewGraphFragment creates an empty graph fragment
func NewGraphFragment() *GraphFragment {
	return &GraphFragment{
		Nodes: make([]FragmentNode, 0),
		Edges: make([]FragmentEdge, 0),
	}
}

// AddNode adds a node to the fragment
func (g *GraphFragment) AddNode(node FragmentNode) {
	g.Nodes = append(g.Nodes, node)
}

// AddEdge adds an edge to the fragment
func (g *GraphFragment) AddEdge(edge FragmentEdge) {
	g.Edges = append(g.Edges, edge)
}

// Snapshot copies the node into its portable form
func (n *Node) Snapshot() FragmentNode {
	color, _ := n.Color()
	return FragmentNode{
		ID:    n.id,
		Name:  n.name,
		Type:  n.kind.Variant(),
		Color: color,
	}
}

// Snapshot copies the edge into its portable form. Endpoints are node ids.
func (e *Edge) Snapshot() FragmentEdge {
	fe := FragmentEdge{
		ID:   e.id,
		From: e.above.ID(),
		To:   e.below.ID(),
		Type: e.kind.Variant(),
	}
	if w, ok := e.Weight(); ok {
		fe.Weight = &w
	}
	return fe
}

// FragmentFrom captures nodes and edges, in order, as a fragment
func FragmentFrom(nodes []*Node, edges []*Edge) *GraphFragment {
	fragment := NewGraphFragment()
	for _, n := range nodes {
		fragment.AddNode(n.Snapshot())
	}
	for _, e := range edges {
		fragment.AddEdge(e.Snapshot())
	}
	return fragment
}

// Build validates the fragment and materializes it into a new store with
// fresh ids. Nodes without an id are keyed by name. An empty type is
// inferred from the presence of color or weight.
func (g *GraphFragment) Build() (*Store, error) {
	store := NewStore()
	keys := make(map[string]string, len(g.Nodes))

	for i, fn := range g.Nodes {
		key := fn.ID
		if key == "" {
			key = fn.Name
		}
		if _, dup := keys[key]; dup {
			return nil, newValidationError("nodes["+strconv.Itoa(i)+"].id", "duplicate node key "+strconv.Quote(key))
		}

		kind, err := NodeKindFor(string(fn.Type), fn.Color)
		if err != nil {
			return nil, atIndex(err, "nodes", i)
		}
		node, err := store.CreateNode(fn.Name, kind)
		if err != nil {
			return nil, err
		}
		keys[key] = node.ID()
	}

	for i, fe := range g.Edges {
		above, ok := keys[fe.From]
		if !ok {
			return nil, &NotFoundError{Kind: "node", ID: fe.From}
		}
		below, ok := keys[fe.To]
		if !ok {
			return nil, &NotFoundError{Kind: "node", ID: fe.To}
		}

		kind, err := EdgeKindFor(string(fe.Type), fe.Weight)
		if err != nil {
			return nil, atIndex(err, "edges", i)
		}

		if _, err := store.CreateEdge(above, below, kind); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// atIndex prefixes a validation error's field with the list position,
// e.g. "edges[2].weight"
func atIndex(err error, list string, i int) error {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	field := list + "[" + strconv.Itoa(i) + "]"
	if ve.Field != "" {
		field += "." + ve.Field
	}
	return newValidationError(field, ve.Message)
}
