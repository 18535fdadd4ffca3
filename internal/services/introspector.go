package services

import (
	"context"

	"db-schema-keeper/internal/models"
)

// SyncOptions controls SynchronizeTable. Recreate drops and recreates the
// table, discarding its rows; otherwise the table is altered in place.
type SyncOptions struct {
	Recreate bool
}

// SchemaIntrospector is the metadata surface of the relational driver that
// the resetter drives.
type SchemaIntrospector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListForeignKeys(ctx context.Context, tableName string) ([]models.TableConstraint, error)
	RemoveConstraint(ctx context.Context, tableName, constraintName string) error
	ListIndexes(ctx context.Context, tableName string) ([]models.TableIndex, error)
	RemoveIndex(ctx context.Context, tableName, indexName string) error
	SynchronizeTable(ctx context.Context, model models.Model, opts SyncOptions) error
}

// ForeignKeyDescriber is implemented by introspectors that can report the
// columns and referential rules behind each foreign key.
type ForeignKeyDescriber interface {
	DescribeForeignKeys(ctx context.Context, tableName string) ([]models.ForeignKey, error)
}
