// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the Postgres migrations, named {version}_{name}.sql.
//
//go:embed *.sql
var FS embed.FS
