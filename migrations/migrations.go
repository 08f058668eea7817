// Package migrations embeds the SQL schema for every supported storage backend.
package migrations

import "embed"

// FS holds one directory per backend: postgres and sqlite.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
