package database

import "embed"

// embeddedMigrations carries the versioned schema so the deployed binary
// needs no files next to it.
//
//go:embed migrations/*.sql
var embeddedMigrations embed.FS
