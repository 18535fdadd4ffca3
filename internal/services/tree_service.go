package services

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"db-schema-keeper/internal/tree"
)

// TableLister is the part of SchemaIntrospector TreeService needs.
type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

// TreeService builds trees from in-memory records or from the rows of a
// self-referencing table.
type TreeService struct {
	db     *sqlx.DB
	tables TableLister
	logger *zap.Logger
}

func NewTreeService(db *sqlx.DB, tables TableLister, logger *zap.Logger) *TreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreeService{db: db, tables: tables, logger: logger}
}

func (s *TreeService) Build(cfg tree.Config) ([]*tree.Record, error) {
	return tree.Build(cfg)
}

// TableTree loads every row of table and nests it. Any OriginArr in cfg is
// replaced by the rows. The table must exist in the current database.
func (s *TreeService) TableTree(ctx context.Context, table string, cfg tree.Config) ([]*tree.Record, error) {
	tables, err := s.tables.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tables {
		if t == table {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := s.db.QueryxContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	records, err := tree.ScanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}

	cfg.OriginArr = records
	nodes, err := tree.Build(cfg)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Tree built",
		zap.String("table", table),
		zap.Int("rows", len(records)),
		zap.Int("roots", len(nodes)))
	return nodes, nil
}
