//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are installed globally via `go install` and are not tracked in
// go.mod since they are development tools, not runtime dependencies. The one
// exception is mockgen, which runs through `go run go.uber.org/mock/mockgen`
// in go:generate directives and therefore stays in go.mod.
package tools

// Development tools (install via `go install`):
//
// Air - Live reload for Go apps
//   Install: go install github.com/air-verse/air@v1.63.0
//   Version: v1.63.0 (pinned 2025-01-01)
//   Docs: https://github.com/air-verse/air
