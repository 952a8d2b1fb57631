// Package migrations embeds the SQL migrations of the checkpoint store.
package migrations

import "embed"

// FS holds every migration file
//
//go:embed *.sql
var FS embed.FS
