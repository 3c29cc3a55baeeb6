package domain

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// NodeVariant names a node variant in forms, JSON and the database
type NodeVariant string

const (
	NodeVariantPlain   NodeVariant = "plain"
	NodeVariantColored NodeVariant = "colored"
)

// NodeKind is one of PlainNode or ColoredNode
type NodeKind interface {
	Variant() NodeVariant
	isNodeKind()
}

// PlainNode is a node with no extra attributes
type PlainNode struct{}

// Variant returns NodeVariantPlain
func (PlainNode) Variant() NodeVariant { return NodeVariantPlain }
func (PlainNode) isNodeKind()          {}

// ColoredNode is a node drawn filled with Color (any Graphviz color name)
type ColoredNode struct {
	Color string
}

// Variant returns NodeVariantColored
func (ColoredNode) Variant() NodeVariant { return NodeVariantColored }
func (ColoredNode) isNodeKind()          {}

// ParseNodeKind builds a NodeKind from raw form values.
// "nodeColored" is accepted as an alias for "colored".
func ParseNodeKind(variant, color string) (NodeKind, error) {
	switch strings.ToLower(strings.TrimSpace(variant)) {
	case "":
		return nil, newValidationError("type", "node type is required")
	case string(NodeVariantPlain), "node":
		return PlainNode{}, nil
	case string(NodeVariantColored), "nodecolored":
		kind := ColoredNode{Color: strings.TrimSpace(color)}
		if err := validateNodeKind(kind); err != nil {
			return nil, err
		}
		return kind, nil
	default:
		return nil, newValidationError("type", "unknown node type "+variant)
	}
}

// NodeKindFor resolves structured input (JSON bodies, imported fragments).
// An empty variant is inferred from the color, and a color given for a plain
// node is rejected rather than dropped.
func NodeKindFor(variant, color string) (NodeKind, error) {
	if strings.TrimSpace(variant) == "" {
		variant = string(NodeVariantPlain)
		if color != "" {
			variant = string(NodeVariantColored)
		}
	}
	kind, err := ParseNodeKind(variant, color)
	if err != nil {
		return nil, err
	}
	if _, plain := kind.(PlainNode); plain && strings.TrimSpace(color) != "" {
		return nil, newValidationError("color", "a plain node takes no color")
	}
	return kind, nil
}

func validateNodeKind(kind NodeKind) error {
	switch k := kind.(type) {
	case PlainNode:
		return nil
	case ColoredNode:
		if k.Color == "" {
			return newValidationError("color", "color is required for a colored node")
		}
		return nil
	default:
		return newValidationError("type", "node type is required")
	}
}

// Node is a vertex of the graph. The id never changes once assigned.
type Node struct {
	id   string
	name string
	kind NodeKind
}

// NewNode validates its input and returns an unregistered node with a fresh id
func NewNode(name string, kind NodeKind) (*Node, error) {
	return RestoreNode(uuid.NewString(), name, kind)
}

// RestoreNode rebuilds a node with a known id, e.g. when loading from storage
func RestoreNode(id, name string, kind NodeKind) (*Node, error) {
	if id == "" {
		return nil, newValidationError("id", "node id is required")
	}
	if name == "" {
		return nil, newValidationError("name", "node name is required")
	}
	if err := validateNodeKind(kind); err != nil {
		return nil, err
	}
	return &Node{id: id, name: name, kind: kind}, nil
}

// ID returns the node's unique id
func (n *Node) ID() string { return n.id }

// Name returns the display name. Names are not unique.
func (n *Node) Name() string { return n.name }

// Kind returns the node variant
func (n *Node) Kind() NodeKind { return n.kind }

// Color returns the fill color and true for colored nodes, "" and false otherwise
func (n *Node) Color() (string, bool) {
	if k, ok := n.kind.(ColoredNode); ok {
		return k.Color, true
	}
	return "", false
}

// SetName renames the node
func (n *Node) SetName(name string) error {
	if name == "" {
		return newValidationError("name", "node name is required")
	}
	n.name = name
	return nil
}

// SetColor changes the fill color of a colored node
func (n *Node) SetColor(color string) error {
	if _, ok := n.kind.(ColoredNode); !ok {
		return newValidationError("color", "only colored nodes have a color")
	}
	if color == "" {
		return newValidationError("color", "color is required for a colored node")
	}
	n.kind = ColoredNode{Color: color}
	return nil
}

// String implements fmt.Stringer
func (n *Node) String() string {
	if color, ok := n.Color(); ok {
		return "ColoredNode(" + n.name + ", " + color + ")"
	}
	return "Node(" + n.name + ")"
}

// MarshalJSON implements json.Marshaler
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Snapshot())
}
