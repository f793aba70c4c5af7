package notifications

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var migrationsDir embed.FS

// Migrations returns the goose migration set for every table the module
// owns. Exposed so hosts that manage migrations themselves can apply it
// through their own pipeline.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
