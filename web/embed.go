// Package web embeds the expense form page and its assets into the binary.
package web

import "embed"

// TemplatesFS holds the server-rendered pages.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the form's stylesheet and script.
//
//go:embed static/*
var StaticFS embed.FS
