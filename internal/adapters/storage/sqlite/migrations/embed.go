// Package migrations embeds the settlement store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
