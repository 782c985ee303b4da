package web

import "embed"

// FS holds the dashboard's embedded assets (HTML, CSS, JS) so the
// binary serves the UI without an install step.
//
//go:embed *.html *.css *.js
var FS embed.FS
