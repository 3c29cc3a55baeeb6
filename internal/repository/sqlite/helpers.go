package sqlite

import (
	"database/sql"
	"fmt"

	"graphsketch/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the nodes table:
// 1. Add field to nodeRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update nodeColumns constant - APPEND to end
// 4. Update toDomain() to map the new field
// 5. Update nodeInsertArgs() if the column is writable
// 6. Add a migration in sqlite.go migrate()
//
// CRITICAL: Column order must match between nodeColumns and scanArgs().
// The same applies to edges.

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID    string
	Name  string
	Type  string
	Color sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly: id, name, type, color
func (r *nodeRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,    // 1
		&r.Name,  // 2
		&r.Type,  // 3
		&r.Color, // 4
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() (*domain.Node, error) {
	var kind domain.NodeKind
	switch domain.NodeVariant(r.Type) {
	case domain.NodeVariantPlain:
		kind = domain.PlainNode{}
	case domain.NodeVariantColored:
		kind = domain.ColoredNode{Color: nullToString(r.Color)}
	default:
		return nil, fmt.Errorf("node %s: unknown type %q", r.ID, r.Type)
	}
	return domain.RestoreNode(r.ID, r.Name, kind)
}

// nodeColumns is the SELECT column list for node queries
const nodeColumns = `id, name, type, color`

// nodeInsertArgs prepares arguments for node INSERT
// Returns: id, name, type, color
func nodeInsertArgs(node *domain.Node) []interface{} {
	color, _ := node.Color()
	return []interface{}{
		node.ID(),
		node.Name(),
		string(node.Kind().Variant()),
		stringToNull(color),
	}
}

// ============================================================================
// Edge Row Scanner
// ============================================================================

// edgeRow holds all columns from an edge query for scanning
type edgeRow struct {
	ID      string
	AboveID string
	BelowID string
	Type    string
	Weight  sql.NullInt64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match edgeColumns order exactly: id, above_id, below_id, type, weight
func (r *edgeRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,      // 1
		&r.AboveID, // 2
		&r.BelowID, // 3
		&r.Type,    // 4
		&r.Weight,  // 5
	}
}

// kind converts the type discriminator and weight column to a domain.EdgeKind
func (r *edgeRow) kind() (domain.EdgeKind, error) {
	switch domain.EdgeVariant(r.Type) {
	case domain.EdgeVariantPlain:
		return domain.PlainEdge{}, nil
	case domain.EdgeVariantWeighted:
		if !r.Weight.Valid {
			return nil, fmt.Errorf("edge %s: weighted edge has no weight", r.ID)
		}
		return domain.WeightedEdge{Weight: int(r.Weight.Int64)}, nil
	default:
		return nil, fmt.Errorf("edge %s: unknown type %q", r.ID, r.Type)
	}
}

// edgeColumns is the SELECT column list for edge queries
const edgeColumns = `id, above_id, below_id, type, weight`

// edgeInsertArgs prepares arguments for edge INSERT
// Returns: id, above_id, below_id, type, weight
func edgeInsertArgs(edge *domain.Edge) []interface{} {
	var weight sql.NullInt64
	if w, ok := edge.Weight(); ok {
		weight = sql.NullInt64{Int64: int64(w), Valid: true}
	}
	return []interface{}{
		edge.ID(),
		edge.Above().ID(),
		edge.Below().ID(),
		string(edge.Kind().Variant()),
		weight,
	}
}
