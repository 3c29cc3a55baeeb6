package repository

import (
	"context"

	"graphsketch/internal/domain"
)

// Repository defines the persistence contract for graph data
type Repository interface {
	// Write operations
	SaveNode(ctx context.Context, node *domain.Node) error
	UpdateNode(ctx context.Context, node *domain.Node) error
	SaveEdge(ctx context.Context, edge *domain.Edge) error

	// Load restores every stored entity into store, in insertion order
	Load(ctx context.Context, store *domain.Store) error
	// Counts returns the number of stored nodes and edges
	Counts(ctx context.Context) (nodes, edges int, err error)

	// Bulk operations
	Import(ctx context.Context, nodes []*domain.Node, edges []*domain.Edge, replace bool) error
	Clear(ctx context.Context) error

	// Close releases resources
	Close() error
}
