package ddl

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., BIGINT, VARBINARY(255), TEXT)
//   - Nullable: whether NULL is allowed
//   - Default: raw default expression (e.g., 0, '')
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
	Default  string
}

// TableDef holds the table name and an ordered list of columns. FQN may be
// dotted ("schema.table"); each segment is quoted by the dialect.
type TableDef struct {
	FQN        string
	Columns    []ColumnDef
	PrimaryKey []string
}

// Dialect carries the backend-specific parts of CREATE TABLE rendering.
type Dialect struct {
	// Quote quotes a single identifier segment. Nil leaves names as is.
	Quote func(string) string

	// IfNotExists adds IF NOT EXISTS after CREATE TABLE.
	IfNotExists bool
}
