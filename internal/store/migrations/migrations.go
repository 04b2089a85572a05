// Package migrations embeds the SQL schema migrations for the history
// database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
