package postpage

import "embed"

// EmbeddedAssets holds comment.js, which submits the comment form in place.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
