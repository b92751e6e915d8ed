// Package migrations embeds the SQL migrations of the directory store.
package migrations

import "embed"

// FS holds every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS
