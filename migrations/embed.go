// Package migrations embeds the SQL migration files so the migrate binary
// ships schema changes inside the same artifact as the code that needs them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
