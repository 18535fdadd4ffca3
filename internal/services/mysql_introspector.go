package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
)

// MySQL error numbers treated as "already in the desired state".
const (
	errCantDropFieldOrKey = 1091 // ER_CANT_DROP_FIELD_OR_KEY
	errDupKeyName         = 1061 // ER_DUP_KEYNAME
)

// MySQLIntrospector implements SchemaIntrospector against the current
// database of a MySQL connection pool.
type MySQLIntrospector struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var (
	_ SchemaIntrospector  = (*MySQLIntrospector)(nil)
	_ ForeignKeyDescriber = (*MySQLIntrospector)(nil)
)

func NewMySQLIntrospector(db *sqlx.DB, logger *zap.Logger) *MySQLIntrospector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLIntrospector{db: db, logger: logger}
}

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

func (s *MySQLIntrospector) ListTables(ctx context.Context) ([]string, error) {
	query := `SELECT TABLE_NAME
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_TYPE = 'BASE TABLE'
	          ORDER BY TABLE_NAME`

	var tables []string
	if err := s.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	return tables, nil
}

func (s *MySQLIntrospector) ListForeignKeys(ctx context.Context, tableName string) ([]models.TableConstraint, error) {
	query := `SELECT TABLE_NAME, CONSTRAINT_NAME
	          FROM information_schema.TABLE_CONSTRAINTS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          AND CONSTRAINT_TYPE = 'FOREIGN KEY'
	          ORDER BY CONSTRAINT_NAME`

	var rows []struct {
		TableName      string `db:"TABLE_NAME"`
		ConstraintName string `db:"CONSTRAINT_NAME"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, tableName); err != nil {
		return nil, fmt.Errorf("failed to get foreign keys of %s: %w", tableName, err)
	}

	constraints := make([]models.TableConstraint, 0, len(rows))
	for _, r := range rows {
		constraints = append(constraints, models.TableConstraint{TableName: r.TableName, ConstraintName: r.ConstraintName})
	}
	return constraints, nil
}

// DescribeForeignKeys returns one entry per constrained column of each
// foreign key on a table, with its ON DELETE and ON UPDATE rules.
func (s *MySQLIntrospector) DescribeForeignKeys(ctx context.Context, tableName string) ([]models.ForeignKey, error) {
	query := `SELECT
	            kcu.CONSTRAINT_NAME,
	            kcu.COLUMN_NAME,
	            kcu.REFERENCED_TABLE_NAME,
	            kcu.REFERENCED_COLUMN_NAME,
	            rc.DELETE_RULE,
	            rc.UPDATE_RULE
	          FROM information_schema.KEY_COLUMN_USAGE kcu
	          JOIN information_schema.REFERENTIAL_CONSTRAINTS rc
	            ON rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
	            AND rc.TABLE_NAME = kcu.TABLE_NAME
	            AND rc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
	          WHERE kcu.TABLE_SCHEMA = DATABASE()
	          AND kcu.TABLE_NAME = ?
	          ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	var rows []struct {
		ConstraintName       string `db:"CONSTRAINT_NAME"`
		ColumnName           string `db:"COLUMN_NAME"`
		ReferencedTableName  string `db:"REFERENCED_TABLE_NAME"`
		ReferencedColumnName string `db:"REFERENCED_COLUMN_NAME"`
		DeleteRule           string `db:"DELETE_RULE"`
		UpdateRule           string `db:"UPDATE_RULE"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, tableName); err != nil {
		return nil, fmt.Errorf("failed to describe foreign keys of %s: %w", tableName, err)
	}

	fks := make([]models.ForeignKey, 0, len(rows))
	for _, r := range rows {
		fks = append(fks, models.ForeignKey{
			TableName:            tableName,
			ConstraintName:       r.ConstraintName,
			ColumnName:           r.ColumnName,
			ReferencedTableName:  r.ReferencedTableName,
			ReferencedColumnName: r.ReferencedColumnName,
			OnDelete:             r.DeleteRule,
			OnUpdate:             r.UpdateRule,
		})
	}
	return fks, nil
}

func (s *MySQLIntrospector) RemoveConstraint(ctx context.Context, tableName, constraintName string) error {
	_, err := s.db.ExecContext(ctx, generateDropForeignKeyStatement(tableName, constraintName))
	if isMySQLError(err, errCantDropFieldOrKey) {
		s.logger.Debug("Foreign key already removed",
			zap.String("table", tableName),
			zap.String("constraint", constraintName))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to drop foreign key %s.%s: %w", tableName, constraintName, err)
	}
	return nil
}

func (s *MySQLIntrospector) ListIndexes(ctx context.Context, tableName string) ([]models.TableIndex, error) {
	query := `SELECT TABLE_NAME, INDEX_NAME, NON_UNIQUE, COLUMN_NAME
	          FROM information_schema.STATISTICS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	var rows []struct {
		TableName  string  `db:"TABLE_NAME"`
		IndexName  string  `db:"INDEX_NAME"`
		NonUnique  int     `db:"NON_UNIQUE"`
		ColumnName *string `db:"COLUMN_NAME"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, tableName); err != nil {
		return nil, fmt.Errorf("failed to get indexes of %s: %w", tableName, err)
	}

	return groupIndexRows(len(rows), func(i int) (string, string, bool, *string) {
		r := rows[i]
		return r.TableName, r.IndexName, r.NonUnique == 0, r.ColumnName
	}), nil
}

// groupIndexRows folds one-row-per-column statistics into one entry per
// index, preserving first-seen index order.
func groupIndexRows(n int, row func(i int) (table, name string, unique bool, column *string)) []models.TableIndex {
	var indexes []models.TableIndex
	pos := make(map[string]int)
	for i := 0; i < n; i++ {
		table, name, unique, column := row(i)
		at, ok := pos[name]
		if !ok {
			at = len(indexes)
			pos[name] = at
			indexes = append(indexes, models.TableIndex{TableName: table, Name: name, Unique: unique})
		}
		// functional index parts have no column name
		if column != nil {
			indexes[at].Columns = append(indexes[at].Columns, *column)
		}
	}
	return indexes
}

func (s *MySQLIntrospector) RemoveIndex(ctx context.Context, tableName, indexName string) error {
	if strings.EqualFold(indexName, models.PrimaryIndexName) {
		return fmt.Errorf("refusing to drop primary key index of %s", tableName)
	}
	_, err := s.db.ExecContext(ctx, generateDropIndexStatement(tableName, indexName))
	if isMySQLError(err, errCantDropFieldOrKey) {
		s.logger.Debug("Index already removed",
			zap.String("table", tableName),
			zap.String("index", indexName))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to drop index %s.%s: %w", tableName, indexName, err)
	}
	return nil
}

func (s *MySQLIntrospector) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `SELECT COUNT(*)
	          FROM information_schema.TABLES
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?`

	var count int
	if err := s.db.GetContext(ctx, &count, query, tableName); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MySQLIntrospector) GetTableSchema(ctx context.Context, tableName string) ([]models.ColumnInfo, error) {
	query := `SELECT
	            COLUMN_NAME,
	            DATA_TYPE,
	            COLUMN_TYPE,
	            IS_NULLABLE,
	            COLUMN_KEY,
	            COLUMN_DEFAULT,
	            EXTRA
	          FROM information_schema.COLUMNS
	          WHERE TABLE_SCHEMA = DATABASE()
	          AND TABLE_NAME = ?
	          ORDER BY ORDINAL_POSITION`

	var columns []models.ColumnInfo
	if err := s.db.SelectContext(ctx, &columns, query, tableName); err != nil {
		return nil, fmt.Errorf("failed to get table schema: %w", err)
	}
	return columns, nil
}

func (s *MySQLIntrospector) exec(ctx context.Context, stmt string) error {
	s.logger.Debug("Executing statement", zap.String("sql", stmt))
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// SynchronizeTable brings a table in line with its model. With Recreate the
// table is dropped and created from scratch. Otherwise a missing table is
// created and an existing one gains missing or changed columns, missing
// indexes, and declared foreign keys that are absent.
func (s *MySQLIntrospector) SynchronizeTable(ctx context.Context, model models.Model, opts SyncOptions) error {
	if err := model.Validate(); err != nil {
		return err
	}

	if opts.Recreate {
		if err := s.exec(ctx, generateDropTableStatement(model.TableName)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", model.TableName, err)
		}
		return s.createTable(ctx, model)
	}

	exists, err := s.TableExists(ctx, model.TableName)
	if err != nil {
		return err
	}
	if !exists {
		return s.createTable(ctx, model)
	}

	live, err := s.GetTableSchema(ctx, model.TableName)
	if err != nil {
		return err
	}

	stmts := generateAlterStatements(model, live)

	indexes, err := s.ListIndexes(ctx, model.TableName)
	if err != nil {
		return err
	}
	haveIdx := make(map[string]bool, len(indexes))
	for _, idx := range indexes {
		haveIdx[strings.ToLower(idx.Name)] = true
	}
	for _, idx := range model.Indexes {
		if !haveIdx[strings.ToLower(model.IndexName(idx))] {
			stmts = append(stmts, generateCreateIndexStatement(model, idx))
		}
	}

	fks, err := s.ListForeignKeys(ctx, model.TableName)
	if err != nil {
		return err
	}
	haveFK := make(map[string]bool, len(fks))
	for _, fk := range fks {
		haveFK[strings.ToLower(fk.ConstraintName)] = true
	}
	for _, fk := range model.ForeignKeys {
		if !haveFK[strings.ToLower(model.ForeignKeyName(fk))] {
			stmts = append(stmts, generateAddForeignKeyStatement(model, fk))
		}
	}

	if len(stmts) == 0 {
		s.logger.Info("Schema already in sync", zap.String("table", model.TableName))
		return nil
	}

	s.logger.Info("Applying schema differences",
		zap.String("table", model.TableName),
		zap.Int("statements", len(stmts)))

	for _, stmt := range stmts {
		err := s.exec(ctx, stmt)
		if isMySQLError(err, errDupKeyName) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to execute alter statement on %s: %w", model.TableName, err)
		}
	}
	return nil
}

func (s *MySQLIntrospector) createTable(ctx context.Context, model models.Model) error {
	if err := s.exec(ctx, generateCreateTableStatement(model)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", model.TableName, err)
	}
	s.logger.Info("Table created", zap.String("table", model.TableName))
	return nil
}
