// Package static embeds the frontend build output into the binary. The
// dist/ directory is populated by the frontend build before compiling; in
// development it may hold only a placeholder and a dev server serves the UI
// instead.
package static

import "embed"

// FrontendFS holds the built frontend. The all: prefix keeps dotfiles like
// the placeholder .gitkeep, so the embed never fails on an empty build.
//
//go:embed all:dist
var FrontendFS embed.FS
