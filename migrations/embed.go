// Package migrations holds the SQL schema migrations applied by
// golang-migrate. They are embedded so the server and CLI binaries can run
// them without the source tree.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
