package easygoogle

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the credential table migrations, with the sqlite
// dialect variants under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
