// Package all registers every built-in storage backend. Binaries import it
// for side effects:
//
//	import _ "lodging/internal/storage/all"
//
// after which storage.New accepts the kinds "mssql", "mysql", "postgres" and
// "sqlite".
package all

import (
	_ "lodging/internal/storage/mssql"
	_ "lodging/internal/storage/mysql"
	_ "lodging/internal/storage/postgres"
	_ "lodging/internal/storage/sqlite"
)
