// Package ddl defines a small, backend-agnostic model for SQL DDL and renders
// CREATE TABLE statements from it. Storage backends supply a Dialect (quoting,
// IF NOT EXISTS support) and a type mapping from schema.Type to SQL.
package ddl

import (
	"fmt"
	"strings"

	"wikisync/internal/schema"
)

// FromSchema builds a TableDef for t under the name fqn, asking sqlType for
// the SQL type of each column.
func FromSchema(t schema.Table, fqn string, sqlType func(schema.Column) string) TableDef {
	def := TableDef{FQN: fqn, PrimaryKey: append([]string(nil), t.Key...)}
	for _, c := range t.Columns {
		def.Columns = append(def.Columns, ColumnDef{
			Name:     c.Name,
			SQLType:  sqlType(c),
			Nullable: c.Nullable,
		})
	}
	return def
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Each column is rendered as
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// followed by a PRIMARY KEY clause when PrimaryKey is set. Default is emitted
// as raw SQL.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	quote := d.Quote
	if quote == nil {
		quote = func(s string) string { return s }
	}

	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	known := make(map[string]bool, len(t.Columns))
	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		known[name] = true

		var sb strings.Builder
		sb.WriteString(quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())
	}

	if len(t.PrimaryKey) > 0 {
		pks := make([]string, len(t.PrimaryKey))
		for i, k := range t.PrimaryKey {
			if !known[k] {
				return "", fmt.Errorf("ddl: primary key column %s not in table %s", k, fqn)
			}
			pks[i] = quote(k)
		}
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}

	create := "CREATE TABLE "
	if d.IfNotExists {
		create += "IF NOT EXISTS "
	}
	return fmt.Sprintf("%s%s (\n  %s\n);", create, strings.Join(parts, "."), strings.Join(cols, ",\n  ")), nil
}
