package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EdgeVariant names an edge variant in forms, JSON and the database
type EdgeVariant string

const (
	EdgeVariantPlain    EdgeVariant = "plain"
	EdgeVariantWeighted EdgeVariant = "weighted"
)

// EdgeKind is one of PlainEdge or WeightedEdge
type EdgeKind interface {
	Variant() EdgeVariant
	isEdgeKind()
}

// PlainEdge is an edge with no extra attributes
type PlainEdge struct{}

// Variant returns EdgeVariantPlain
func (PlainEdge) Variant() EdgeVariant { return EdgeVariantPlain }
func (PlainEdge) isEdgeKind()          {}

// WeightedEdge is an edge carrying an integer weight
type WeightedEdge struct {
	Weight int
}

// Variant returns EdgeVariantWeighted
func (WeightedEdge) Variant() EdgeVariant { return EdgeVariantWeighted }
func (WeightedEdge) isEdgeKind()          {}

// ParseEdgeKind builds an EdgeKind from raw form values.
// "edgeweighted" is accepted as an alias for "weighted".
func ParseEdgeKind(variant, weight string) (EdgeKind, error) {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "":
		return nil, newValidationError("type", "edge type is required")
	case string(EdgeVariantPlain), "edge":
		return PlainEdge{}, nil
	case string(EdgeVariantWeighted), "edgeweighted":
		weight = strings.TrimSpace(weight)
		if weight == "" {
			return nil, newValidationError("weight", "weight is required for a weighted edge")
		}
		w, err := strconv.Atoi(weight)
		if err != nil {
			return nil, newValidationError("weight", "weight must be an integer, got "+strconv.Quote(weight))
		}
		return WeightedEdge{Weight: w}, nil
	default:
		return nil, newValidationError("type", "unknown edge type "+variant)
	}
}

// EdgeKindFor resolves structured input (JSON bodies, imported fragments).
// An empty variant is inferred from the weight, and a weight given for a
// plain edge is rejected rather than dropped.
func EdgeKindFor(variant string, weight *int) (EdgeKind, error) {
	if strings.TrimSpace(variant) == "" {
		variant = string(EdgeVariantPlain)
		if weight != nil {
			variant = string(EdgeVariantWeighted)
		}
	}
	var w string
	if weight != nil {
		w = strconv.Itoa(*weight)
	}
	kind, err := ParseEdgeKind(variant, w)
	if err != nil {
		return nil, err
	}
	if _, plain := kind.(PlainEdge); plain && weight != nil {
		return nil, newValidationError("weight", "a plain edge takes no weight")
	}
	return kind, nil
}

func validateEdgeKind(kind EdgeKind) error {
	switch kind.(type) {
	case PlainEdge, WeightedEdge:
		return nil
	default:
		return newValidationError("type", "edge type is required")
	}
}

// Edge is a directed connection from Above to Below.
// The endpoints are shared with the store; an edge does not own them.
type Edge struct {
	id    string
	above *Node
	below *Node
	kind  EdgeKind
}

// ID returns the edge's unique id
func (e *Edge) ID() string { return e.id }

// Above returns the source node
func (e *Edge) Above() *Node { return e.above }

// Below returns the target node
func (e *Edge) Below() *Node { return e.below }

// Kind returns the edge variant
func (e *Edge) Kind() EdgeKind { return e.kind }

// Weight returns the weight and true for weighted edges, 0 and false otherwise
func (e *Edge) Weight() (int, bool) {
	if k, ok := e.kind.(WeightedEdge); ok {
		return k.Weight, true
	}
	return 0, false
}

// String implements fmt.Stringer
func (e *Edge) String() string {
	if w, ok := e.Weight(); ok {
		return "WeightedEdge(" + e.above.String() + "," + e.below.String() + "," + strconv.Itoa(w) + ")"
	}
	return "Edge(" + e.above.String() + "," + e.below.String() + ")"
}

// MarshalJSON implements json.Marshaler. Endpoints are written as node ids.
func (e *Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Snapshot())
}
