package models

import (
	"fmt"
	"strings"
	"time"
)

// PrimaryIndexName is the name MySQL gives every primary-key index.
const PrimaryIndexName = "PRIMARY"

// SyncMode selects how a table is brought in line with its model.
type SyncMode string

const (
	SyncNone  SyncMode = ""
	SyncForce SyncMode = "force"
	SyncAlter SyncMode = "alter"
)

func ParseSyncMode(s string) (SyncMode, error) {
	switch mode := SyncMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case SyncNone, SyncForce, SyncAlter:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", s)
	}
}

// TableConstraint identifies a foreign-key constraint.
type TableConstraint struct {
	TableName      string `json:"table_name"`
	ConstraintName string `json:"constraint_name"`
}

// TableIndex identifies an index. Columns are listed in index order.
type TableIndex struct {
	TableName string   `json:"table_name"`
	Name      string   `json:"name"`
	Unique    bool     `json:"unique"`
	Columns   []string `json:"columns,omitempty"`
}

// IsPrimary reports whether the index backs the primary key.
func (i TableIndex) IsPrimary() bool {
	return strings.EqualFold(i.Name, PrimaryIndexName)
}

type ColumnInfo struct {
	ColumnName    string  `json:"column_name" db:"COLUMN_NAME"`
	DataType      string  `json:"data_type" db:"DATA_TYPE"`
	ColumnType    string  `json:"column_type" db:"COLUMN_TYPE"`
	IsNullable    string  `json:"is_nullable" db:"IS_NULLABLE"`
	ColumnKey     string  `json:"column_key" db:"COLUMN_KEY"`
	ColumnDefault *string `json:"column_default" db:"COLUMN_DEFAULT"`
	Extra         string  `json:"extra" db:"EXTRA"`
}

// Column is a declared column of a Model.
type Column struct {
	Name       string  `yaml:"name" json:"name"`
	Type       string  `yaml:"type" json:"type"`
	Nullable   bool    `yaml:"nullable" json:"nullable"`
	Default    *string `yaml:"default" json:"default,omitempty"`
	Extra      string  `yaml:"extra" json:"extra,omitempty"`
	PrimaryKey bool    `yaml:"primary_key" json:"primary_key"`
}

// Index is a declared secondary index of a Model.
type Index struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique" json:"unique"`
}

// Model is the declared structure of one table.
type Model struct {
	TableName   string       `yaml:"table" json:"table"`
	Columns     []Column     `yaml:"columns" json:"columns"`
	Indexes     []Index      `yaml:"indexes" json:"indexes,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys" json:"foreign_keys,omitempty"`
	Sync        SyncMode     `yaml:"sync" json:"sync,omitempty"`
}

// PrimaryKey returns the primary-key column names in declaration order.
func (m Model) PrimaryKey() []string {
	var pk []string
	for _, c := range m.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// IndexName returns the declared name or a generated idx_/uniq_ name.
func (m Model) IndexName(idx Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	prefix := "idx"
	if idx.Unique {
		prefix = "uniq"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, m.TableName, strings.Join(idx.Columns, "_"))
}

// ForeignKeyName returns the declared constraint name or fk_<table>_<column>.
func (m Model) ForeignKeyName(fk ForeignKey) string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", m.TableName, fk.ColumnName)
}

// Validate checks the declaration for problems that would only surface as
// SQL errors later.
func (m Model) Validate() error {
	if m.TableName == "" {
		return fmt.Errorf("model has no table name")
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("model %s declares no columns", m.TableName)
	}
	seen := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("model %s: column needs name and type", m.TableName)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("model %s: duplicate column %s", m.TableName, c.Name)
		}
		seen[key] = true
	}
	for _, idx := range m.Indexes {
		if len(idx.Columns) == 0 {
			return fmt.Errorf("model %s: index %q has no columns", m.TableName, idx.Name)
		}
		for _, col := range idx.Columns {
			if !seen[strings.ToLower(col)] {
				return fmt.Errorf("model %s: index %q references unknown column %s", m.TableName, idx.Name, col)
			}
		}
	}
	for _, fk := range m.ForeignKeys {
		if !seen[strings.ToLower(fk.ColumnName)] {
			return fmt.Errorf("model %s: foreign key references unknown column %s", m.TableName, fk.ColumnName)
		}
		if fk.ReferencedTableName == "" || fk.ReferencedColumnName == "" {
			return fmt.Errorf("model %s: foreign key on %s needs a referenced table and column", m.TableName, fk.ColumnName)
		}
	}
	if _, err := ParseSyncMode(string(m.Sync)); err != nil {
		return fmt.Errorf("model %s: %w", m.TableName, err)
	}
	return nil
}

// TableStatus is the outcome of the last maintenance pass over one table.
type TableStatus struct {
	TableName    string    `json:"table_name"`
	Mode         SyncMode  `json:"mode"`
	LastRunTime  time.Time `json:"last_run_time"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
