// Package migrations embebe los archivos SQL de migración.
package migrations

import "embed"

// FS contiene las migraciones del schema principal.
//
//go:embed *.sql
var FS embed.FS
