// Package migrations ships the hosted-store schema inside the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
