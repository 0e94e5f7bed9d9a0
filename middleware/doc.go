// Package middleware adapts the engine's authentication gate to net/http.
// It is a thin layer: reading the cookie, running the gate, and rendering
// every denial identically.
package middleware
