// Package migrations embeds the goose SQL migrations, one directory per
// database dialect. Every dialect carries the same version numbers.
package migrations

import (
	"embed"
	"path"
)

// FS holds the migration files under sql/<dialect>/.
//
//go:embed sql/*/*.sql
var FS embed.FS

// Dir returns the migrations directory inside FS for a goose dialect.
func Dir(dialect string) string {
	return path.Join("sql", dialect)
}
