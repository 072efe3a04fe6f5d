// Package web holds the embedded templates and static assets of the view server.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the chart script and stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
