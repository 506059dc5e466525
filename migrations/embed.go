// Package migrations embeds the numbered SQL migrations so the server binary
// can migrate without a checkout of this directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
