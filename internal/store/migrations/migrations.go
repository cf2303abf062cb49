// Package migrations embeds the schema migrations for outreach.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
