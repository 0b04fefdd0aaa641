// Package migrations embeds the SQL schema for every supported driver.
// Files live under a directory named after the driver and follow the
// golang-migrate naming scheme NNNN_name.{up,down}.sql.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
