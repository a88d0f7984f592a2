// Package all wires every built-in storage backend into the storage factory.
// Importing it for side effects makes the kinds "mysql", "postgres", "sqlite"
// and "mssql" available to storage.New and storage.EnsureTable.
package all

import (
	_ "wikisync/internal/storage/mssql"
	_ "wikisync/internal/storage/mysql"
	_ "wikisync/internal/storage/postgres"
	_ "wikisync/internal/storage/sqlite"
)
