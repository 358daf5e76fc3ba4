// Package migrations holds the bun migrations for the quiz schema. Each file
// registers itself; its version is taken from the file name.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
