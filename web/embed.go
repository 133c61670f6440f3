// Package web embeds the page templates and static assets of the server.
package web

import "embed"

// TemplatesFS embeds HTML templates for server-side rendering. layout.html
// defines the shared header and footer used by every page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds the stylesheet and the budget drilldown script.
//
//go:embed static/*.css static/*.js
var StaticFS embed.FS
