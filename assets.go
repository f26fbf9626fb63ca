// Package faqdesk provides embedded assets for production builds.
package faqdesk

import "embed"

//go:embed all:frontend/static
var StaticFS embed.FS
