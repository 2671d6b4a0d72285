// Package migrations embeds the registry's SQL migration files into the
// binary and registers them with the database package on import.
package migrations

import (
	"embed"

	"github.com/nerrad567/workbench-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
