// Package dashboard embeds the live event page served at "/".
//
// The page opens an EventSource on /events and prepends each event as it
// arrives. The {{.Title}} placeholder is substituted by the server.
package dashboard

import "embed"

// Assets holds assets/index.html.
//
//go:embed assets/*
var Assets embed.FS
