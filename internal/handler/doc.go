// Package handler implements the HTTP layer of graphsketch.
//
// # Handlers
//
// GraphHandler serves the JSON API under /api: node and edge creation,
// lookups, neighbors, rename/recolor, import, export and rendering.
//
// WebHandler serves the HTML form pages (/, /newNode, /newEdge, /newGraph).
// Form posts redirect back with a one-shot flash message kept in a cookie.
//
// # Errors
//
// Error responses are JSON with an {error, details} structure. Validation
// errors map to 400, missing nodes or edges to 404, everything else to 500.
//
// # Server-Sent Events
//
// The /events endpoint streams change events from the service's event bus.
package handler
