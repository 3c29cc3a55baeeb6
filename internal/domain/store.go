package domain

import (
	"sync"

	"github.com/google/uuid"
)

// Store holds the nodes and edges of one graph in creation order.
//
// Reads are safe for concurrent use. Mutations are individually atomic, but
// a caller that persists entities elsewhere must serialize its
// prepare/persist/add sequence itself.
type Store struct {
	mu        sync.RWMutex
	nodes     []*Node
	edges     []*Edge
	nodeIndex map[string]*Node
	edgeIndex map[string]*Edge
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		nodes:     make([]*Node, 0),
		edges:     make([]*Edge, 0),
		nodeIndex: make(map[string]*Node),
		edgeIndex: make(map[string]*Edge),
	}
}

// CreateNode validates and registers a new node with a fresh id
func (s *Store) CreateNode(name string, kind NodeKind) (*Node, error) {
	node, err := NewNode(name, kind)
	if err != nil {
		return nil, err
	}
	if err := s.AddNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// AddNode registers an already built node
func (s *Store) AddNode(node *Node) error {
	if node == nil {
		return newValidationError("node", "node is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.nodeIndex[node.id]; dup {
		return newValidationError("id", "duplicate node id "+node.id)
	}
	s.nodes = append(s.nodes, node)
	s.nodeIndex[node.id] = node
	return nil
}

// CreateEdge resolves both endpoints and registers a new edge from above to below
func (s *Store) CreateEdge(aboveID, belowID string, kind EdgeKind) (*Edge, error) {
	edge, err := s.PrepareEdge(aboveID, belowID, kind)
	if err != nil {
		return nil, err
	}
	if err := s.AddEdge(edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// PrepareEdge resolves endpoints and validates kind without registering the edge
func (s *Store) PrepareEdge(aboveID, belowID string, kind EdgeKind) (*Edge, error) {
	return s.buildEdge(uuid.NewString(), aboveID, belowID, kind)
}

// RestoreEdge registers an edge with a known id, e.g. when loading from storage
func (s *Store) RestoreEdge(id, aboveID, belowID string, kind EdgeKind) (*Edge, error) {
	if id == "" {
		return nil, newValidationError("id", "edge id is required")
	}
	edge, err := s.buildEdge(id, aboveID, belowID, kind)
	if err != nil {
		return nil, err
	}
	if err := s.AddEdge(edge); err != nil {
		return nil, err
	}
	return edge, nil
}

func (s *Store) buildEdge(id, aboveID, belowID string, kind EdgeKind) (*Edge, error) {
	s.mu.RLock()
	above, aboveOK := s.nodeIndex[aboveID]
	below, belowOK := s.nodeIndex[belowID]
	s.mu.RUnlock()

	if !aboveOK {
		return nil, &NotFoundError{Kind: "node", ID: aboveID}
	}
	if !belowOK {
		return nil, &NotFoundError{Kind: "node", ID: belowID}
	}
	if err := validateEdgeKind(kind); err != nil {
		return nil, err
	}

	return &Edge{id: id, above: above, below: below, kind: kind}, nil
}

// AddEdge registers an already built edge. Both endpoints must be the
// nodes this store holds under their ids.
func (s *Store) AddEdge(edge *Edge) error {
	if edge == nil {
		return newValidationError("edge", "edge is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.edgeIndex[edge.id]; dup {
		return newValidationError("id", "duplicate edge id "+edge.id)
	}
	for _, end := range []*Node{edge.above, edge.below} {
		if end == nil {
			return &NotFoundError{Kind: "node"}
		}
		if s.nodeIndex[end.id] != end {
			return &NotFoundError{Kind: "node", ID: end.id}
		}
	}
	s.edges = append(s.edges, edge)
	s.edgeIndex[edge.id] = edge
	return nil
}

// Node returns the node registered under id
func (s *Store) Node(id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodeIndex[id]
	if !ok {
		return nil, &NotFoundError{Kind: "node", ID: id}
	}
	return node, nil
}

// Edge returns the edge registered under id
func (s *Store) Edge(id string) (*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edgeIndex[id]
	if !ok {
		return nil, &NotFoundError{Kind: "edge", ID: id}
	}
	return edge, nil
}

// ListNodes returns all nodes in creation order
func (s *Store) ListNodes() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// ListEdges returns all edges in creation order
func (s *Store) ListEdges() []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// AboveNeighbors returns the sources of all edges pointing at node (its predecessors).
// A nil node has none.
func (s *Store) AboveNeighbors(node *Node) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Node, 0)
	if node == nil {
		return out
	}
	for _, e := range s.edges {
		if e.below.id == node.id {
			out = append(out, e.above)
		}
	}
	return out
}

// BelowNeighbors returns the targets of all edges leaving node (its successors).
// A nil node has none.
func (s *Store) BelowNeighbors(node *Node) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Node, 0)
	if node == nil {
		return out
	}
	for _, e := range s.edges {
		if e.above.id == node.id {
			out = append(out, e.below)
		}
	}
	return out
}

// Counts returns the number of registered nodes and edges
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.edges)
}

// Clear removes every node and edge
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make([]*Node, 0)
	s.edges = make([]*Edge, 0)
	s.nodeIndex = make(map[string]*Node)
	s.edgeIndex = make(map[string]*Edge)
}
