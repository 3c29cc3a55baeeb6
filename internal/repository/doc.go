// Package repository defines the data access interface for graphsketch.
//
// The in-memory domain.Store is the working copy of the graph; a Repository
// is where it survives restarts. On startup the service calls Load to
// rebuild the store, and every mutation is written to the repository before
// it is registered in the store.
//
// # SQLite Implementation
//
// The sqlite subpackage stores nodes and edges in two tables, each with a
// "type" discriminator column and a nullable variant column (color for
// nodes, weight for edges). An autoincrement seq column preserves creation
// order across reloads.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
