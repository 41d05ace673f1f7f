// Package migrations embeds the SQLite schema applied by goose when the
// credential database is opened.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
