// Package migrations embeds the postgres schema applied by
// database.RunMigrations when RUN_MIGRATIONS is set.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
