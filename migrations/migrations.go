// Package migrations embeds the goose migration set the engine provisions
// its Postgres schema from.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
