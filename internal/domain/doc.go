// Package domain defines the graph model for graphsketch.
//
// A graph is a set of nodes and directed edges held by a Store. Both entity
// kinds come in two variants:
//
//   - Node: PlainNode, or ColoredNode carrying a fill color.
//   - Edge: PlainEdge, or WeightedEdge carrying an integer weight.
//
// Variants are sealed interfaces (NodeKind, EdgeKind); callers switch on the
// concrete type to reach variant attributes.
//
// # Adjacency
//
// An edge points from its "above" node to its "below" node. Nodes keep no
// back-pointers: AboveNeighbors and BelowNeighbors are derived by scanning
// the store's edge list, in edge creation order.
//
// # Store lifecycle
//
// A Store is constructed once (per process, or per test) and passed to
// whoever needs it. Entities are only ever added; the store is emptied as a
// whole with Clear. Only a node's name and color may change after creation.
//
// # Errors
//
// Mutations fail with *ValidationError for missing or malformed input and
// *NotFoundError when a referenced id is not registered. A failed mutation
// leaves the store untouched.
package domain
