// Package service implements business logic for graphsketch.
//
// GraphService sits between the HTTP handlers and the persistence layer. It
// owns the in-memory domain.Store and keeps it consistent with the
// repository: every mutation is validated, written to the repository, and
// only then registered in the store, all under one mutex. A failed write
// leaves the store untouched.
//
// # Rendering
//
// Describe takes an export snapshot under the same mutex, so the node and
// edge lists it sees belong to one state of the graph. Render then runs
// Graphviz outside the lock.
//
// # Event System
//
// Mutations publish events via EventBus for real-time updates to connected
// clients via Server-Sent Events (SSE).
package service
