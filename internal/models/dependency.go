package models

// ForeignKey is a declared or introspected foreign key relationship.
type ForeignKey struct {
	TableName            string `json:"table_name" yaml:"-"`
	ColumnName           string `json:"column_name" yaml:"column"`
	ReferencedTableName  string `json:"referenced_table_name" yaml:"references_table"`
	ReferencedColumnName string `json:"referenced_column_name" yaml:"references_column"`
	ConstraintName       string `json:"constraint_name" yaml:"name"`
	OnDelete             string `json:"on_delete,omitempty" yaml:"on_delete"`
	OnUpdate             string `json:"on_update,omitempty" yaml:"on_update"`
}

type TableDependency struct {
	TableName   string   `json:"table_name"`
	DependsOn   []string `json:"depends_on"`   // Tables that must be created first
	Level       int      `json:"level"`        // Depth level in dependency tree
	HasCircular bool     `json:"has_circular"` // Has circular dependency
}
