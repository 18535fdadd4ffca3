package services

import (
	"fmt"
	"strings"

	"db-schema-keeper/internal/models"
)

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func columnDefinition(col models.Column) string {
	parts := []string{quoteIdent(col.Name), col.Type}

	if !col.Nullable || col.PrimaryKey {
		parts = append(parts, "NOT NULL")
	}

	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if col.Extra != "" {
		parts = append(parts, col.Extra)
	}

	return strings.Join(parts, " ")
}

func foreignKeyClause(m models.Model, fk models.ForeignKey) string {
	clause := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteIdent(m.ForeignKeyName(fk)),
		quoteIdent(fk.ColumnName),
		quoteIdent(fk.ReferencedTableName),
		quoteIdent(fk.ReferencedColumnName))
	if fk.OnDelete != "" {
		clause += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return clause
}

func indexClause(m models.Model, idx models.Index) string {
	kind := "KEY"
	if idx.Unique {
		kind = "UNIQUE KEY"
	}
	return fmt.Sprintf("%s %s (%s)", kind, quoteIdent(m.IndexName(idx)), quoteIdents(idx.Columns))
}

// generateCreateTableStatement renders the full CREATE TABLE for a model,
// including its indexes and foreign keys.
func generateCreateTableStatement(m models.Model) string {
	var defs []string
	for _, col := range m.Columns {
		defs = append(defs, columnDefinition(col))
	}
	if pk := m.PrimaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteIdents(pk)))
	}
	for _, idx := range m.Indexes {
		defs = append(defs, indexClause(m, idx))
	}
	for _, fk := range m.ForeignKeys {
		defs = append(defs, foreignKeyClause(m, fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", quoteIdent(m.TableName), strings.Join(defs, ",\n  "))
}

func generateDropTableStatement(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))
}

func generateAddColumnStatement(tableName string, col models.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(tableName), columnDefinition(col))
}

func generateModifyColumnStatement(tableName string, col models.Column) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", quoteIdent(tableName), columnDefinition(col))
}

func generateCreateIndexStatement(m models.Model, idx models.Index) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", quoteIdent(m.TableName), indexClause(m, idx))
}

func generateAddForeignKeyStatement(m models.Model, fk models.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", quoteIdent(m.TableName), foreignKeyClause(m, fk))
}

func generateDropForeignKeyStatement(tableName, constraintName string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", quoteIdent(tableName), quoteIdent(constraintName))
}

func generateDropIndexStatement(tableName, indexName string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s", quoteIdent(indexName), quoteIdent(tableName))
}

// columnsDifferent compares a declared column with the live one from
// information_schema. MySQL reports types and extras in lower case.
func columnsDifferent(want models.Column, have models.ColumnInfo) bool {
	nullable := "YES"
	if !want.Nullable || want.PrimaryKey {
		nullable = "NO"
	}
	return !strings.EqualFold(normalizeType(want.Type), normalizeType(have.ColumnType)) ||
		nullable != have.IsNullable ||
		!strings.EqualFold(strings.TrimSpace(want.Extra), strings.TrimSpace(have.Extra))
}

// normalizeType drops display widths MySQL 8 no longer reports, so that
// INT(11) and int compare equal.
func normalizeType(t string) string {
	t = strings.ToLower(strings.Join(strings.Fields(t), " "))
	for _, intType := range []string{"tinyint", "smallint", "mediumint", "bigint", "int"} {
		if !strings.HasPrefix(t, intType+"(") {
			continue
		}
		if end := strings.IndexByte(t, ')'); end > 0 {
			t = intType + t[end+1:]
		}
		break
	}
	return t
}

// generateAlterStatements diffs the declared columns against the live ones
// and returns ADD/MODIFY statements in declaration order. Columns present
// only in the database are left alone.
func generateAlterStatements(m models.Model, live []models.ColumnInfo) []string {
	liveCols := make(map[string]models.ColumnInfo, len(live))
	for _, col := range live {
		liveCols[strings.ToLower(col.ColumnName)] = col
	}

	var stmts []string
	for _, col := range m.Columns {
		have, exists := liveCols[strings.ToLower(col.Name)]
		if !exists {
			stmts = append(stmts, generateAddColumnStatement(m.TableName, col))
		} else if columnsDifferent(col, have) {
			stmts = append(stmts, generateModifyColumnStatement(m.TableName, col))
		}
	}
	return stmts
}
