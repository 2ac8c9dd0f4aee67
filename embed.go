package pagecraft

import "embed"

// Assets holds the stylesheet and scripts served under /public/:
// pagecraft.css, editor.js and analytics.js. htmx.min.js is expected in the
// static directory.
//
//go:embed assets/*
var Assets embed.FS
