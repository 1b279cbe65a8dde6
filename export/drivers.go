package export

// Database driver imports for side-effect registration with
// database/sql. The sqlite driver is CGO-free so exports work on any
// build.

import (
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver ("sqlite")
)
