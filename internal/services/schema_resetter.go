package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
)

const defaultResetConcurrency = 8

// ResetPlan is the set of mutations gathered before a reset pass touches
// anything.
type ResetPlan struct {
	Tables      []string                 `json:"tables"`
	ForeignKeys []models.TableConstraint `json:"foreign_keys"`
	Indexes     []models.TableIndex      `json:"indexes"`

	// ForeignKeyColumns is filled by PlanReset only, for display.
	ForeignKeyColumns []models.ForeignKey `json:"foreign_key_columns,omitempty"`
}

// Empty reports whether applying the plan would issue no statements.
func (p *ResetPlan) Empty() bool {
	return p == nil || (len(p.ForeignKeys) == 0 && len(p.Indexes) == 0)
}

// SchemaResetter removes foreign keys and secondary indexes across the
// database and resynchronizes tables against their models.
type SchemaResetter struct {
	introspector SchemaIntrospector
	logger       *zap.Logger
	concurrency  int
	timeout      time.Duration
	locker       Locker
}

type ResetterOption func(*SchemaResetter)

// WithConcurrency bounds the number of in-flight metadata calls per phase.
// Zero or less means unbounded.
func WithConcurrency(n int) ResetterOption {
	return func(r *SchemaResetter) { r.concurrency = n }
}

// WithTimeout puts a deadline on every top-level reset call.
func WithTimeout(d time.Duration) ResetterOption {
	return func(r *SchemaResetter) { r.timeout = d }
}

func WithLocker(l Locker) ResetterOption {
	return func(r *SchemaResetter) {
		if l != nil {
			r.locker = l
		}
	}
}

func NewSchemaResetter(introspector SchemaIntrospector, logger *zap.Logger, opts ...ResetterOption) *SchemaResetter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SchemaResetter{
		introspector: introspector,
		logger:       logger,
		concurrency:  defaultResetConcurrency,
		locker:       noopLocker{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SchemaResetter) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SchemaResetter) listTables(ctx context.Context) ([]string, error) {
	tables, err := r.introspector.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	r.logger.Info("Tables discovered", zap.Strings("tables", tables))
	return tables, nil
}

// PlanForeignKeyRemoval lists every table and fetches the foreign keys of
// all of them. Nothing is removed.
func (r *SchemaResetter) PlanForeignKeyRemoval(ctx context.Context) (*ResetPlan, error) {
	tables, err := r.listTables(ctx)
	if err != nil {
		return nil, err
	}
	plan := &ResetPlan{Tables: tables}
	if len(tables) == 0 {
		return plan, nil
	}

	perTable := make([][]models.TableConstraint, len(tables))
	err = fanOut(ctx, len(tables), r.concurrency, func(ctx context.Context, i int) error {
		fks, err := r.introspector.ListForeignKeys(ctx, tables[i])
		if err != nil {
			return fmt.Errorf("failed to list foreign keys of %s: %w", tables[i], err)
		}
		perTable[i] = fks
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, fks := range perTable {
		names := make([]string, len(fks))
		for j, fk := range fks {
			names[j] = fk.ConstraintName
		}
		r.logger.Info("Foreign keys discovered",
			zap.String("table", tables[i]),
			zap.Strings("constraints", names))
		plan.ForeignKeys = append(plan.ForeignKeys, fks...)
	}
	return plan, nil
}

// PlanIndexRemoval lists every table and fetches all of their indexes,
// keeping everything except PRIMARY.
func (r *SchemaResetter) PlanIndexRemoval(ctx context.Context) (*ResetPlan, error) {
	tables, err := r.listTables(ctx)
	if err != nil {
		return nil, err
	}
	plan := &ResetPlan{Tables: tables}
	if len(tables) == 0 {
		return plan, nil
	}

	perTable := make([][]models.TableIndex, len(tables))
	err = fanOut(ctx, len(tables), r.concurrency, func(ctx context.Context, i int) error {
		indexes, err := r.introspector.ListIndexes(ctx, tables[i])
		if err != nil {
			return fmt.Errorf("failed to list indexes of %s: %w", tables[i], err)
		}
		perTable[i] = indexes
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, indexes := range perTable {
		var names []string
		for _, idx := range indexes {
			if idx.IsPrimary() {
				continue
			}
			names = append(names, idx.Name)
			plan.Indexes = append(plan.Indexes, idx)
		}
		r.logger.Info("Indexes discovered",
			zap.String("table", tables[i]),
			zap.Strings("indexes", names))
	}
	return plan, nil
}

// PlanReset gathers both foreign keys and secondary indexes. When the
// introspector can describe foreign keys, the plan also carries their
// column-level detail.
func (r *SchemaResetter) PlanReset(ctx context.Context) (*ResetPlan, error) {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	plan, err := r.planReset(ctx)
	if err != nil {
		return nil, err
	}

	describer, ok := r.introspector.(ForeignKeyDescriber)
	if !ok {
		return plan, nil
	}
	perTable := make([][]models.ForeignKey, len(plan.Tables))
	err = fanOut(ctx, len(plan.Tables), r.concurrency, func(ctx context.Context, i int) error {
		fks, err := describer.DescribeForeignKeys(ctx, plan.Tables[i])
		if err != nil {
			return fmt.Errorf("failed to describe foreign keys of %s: %w", plan.Tables[i], err)
		}
		perTable[i] = fks
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, fks := range perTable {
		plan.ForeignKeyColumns = append(plan.ForeignKeyColumns, fks...)
	}
	return plan, nil
}

func (r *SchemaResetter) planReset(ctx context.Context) (*ResetPlan, error) {
	fkPlan, err := r.PlanForeignKeyRemoval(ctx)
	if err != nil {
		return nil, err
	}
	idxPlan, err := r.PlanIndexRemoval(ctx)
	if err != nil {
		return nil, err
	}
	return &ResetPlan{
		Tables:      idxPlan.Tables,
		ForeignKeys: fkPlan.ForeignKeys,
		Indexes:     idxPlan.Indexes,
	}, nil
}

// Apply executes a plan: all foreign-key removals first, then all index
// removals. A failing removal does not stop the others in its phase; the
// returned error carries every failure.
func (r *SchemaResetter) Apply(ctx context.Context, plan *ResetPlan) error {
	if plan.Empty() {
		return nil
	}

	fkErr := fanOut(ctx, len(plan.ForeignKeys), r.concurrency, func(ctx context.Context, i int) error {
		fk := plan.ForeignKeys[i]
		return r.introspector.RemoveConstraint(ctx, fk.TableName, fk.ConstraintName)
	})

	idxErr := fanOut(ctx, len(plan.Indexes), r.concurrency, func(ctx context.Context, i int) error {
		idx := plan.Indexes[i]
		if idx.IsPrimary() {
			return nil
		}
		return r.introspector.RemoveIndex(ctx, idx.TableName, idx.Name)
	})

	return multierr.Append(fkErr, idxErr)
}

// RemoveAllForeignKeys drops every foreign-key constraint in the database.
// Constraints removed before a failure stay removed.
func (r *SchemaResetter) RemoveAllForeignKeys(ctx context.Context) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	unlock, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.removeAllForeignKeys(ctx); err != nil {
		r.logger.Error("Failed to remove all foreign keys", zap.Error(err))
		return err
	}
	r.logger.Info("Removed all foreign keys")
	return nil
}

func (r *SchemaResetter) removeAllForeignKeys(ctx context.Context) error {
	plan, err := r.PlanForeignKeyRemoval(ctx)
	if err != nil {
		return err
	}
	return r.Apply(ctx, plan)
}

// RemoveAllNonPrimaryIndexes drops every index except PRIMARY. MySQL refuses
// to drop an index that a live foreign key needs, so those removals fail
// until the foreign keys are gone; RemoveAllKeys does both in order.
func (r *SchemaResetter) RemoveAllNonPrimaryIndexes(ctx context.Context) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	unlock, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.removeAllNonPrimaryIndexes(ctx); err != nil {
		r.logger.Error("Failed to remove all indexes", zap.Error(err))
		return err
	}
	r.logger.Info("Removed all non-primary indexes")
	return nil
}

func (r *SchemaResetter) removeAllNonPrimaryIndexes(ctx context.Context) error {
	plan, err := r.PlanIndexRemoval(ctx)
	if err != nil {
		return err
	}
	return r.Apply(ctx, plan)
}

// RemoveAllKeys removes every foreign key and then every non-primary index
// under one lock, leaving only PRIMARY on each table.
func (r *SchemaResetter) RemoveAllKeys(ctx context.Context) error {
	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	unlock, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	plan, err := r.planReset(ctx)
	if err == nil {
		err = r.Apply(ctx, plan)
	}
	if err != nil {
		r.logger.Error("Failed to remove all keys", zap.Error(err))
		return err
	}
	r.logger.Info("Removed all foreign keys and non-primary indexes",
		zap.Int("foreign_keys", len(plan.ForeignKeys)),
		zap.Int("indexes", len(plan.Indexes)))
	return nil
}

func (r *SchemaResetter) acquire(ctx context.Context) (func(), error) {
	release, err := r.locker.Acquire(ctx)
	if errors.Is(err, ErrLockHeld) {
		return nil, ErrResetInProgress
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn("Failed to release reset lock", zap.Error(err))
		}
	}, nil
}

// ResetTable brings one table in line with its model. Force recreates the
// table and discards its rows, alter changes it in place, and an empty mode
// only records that the model was loaded. Both structural modes remove
// every foreign key in the database first; if that fails the table is left
// untouched.
func (r *SchemaResetter) ResetTable(ctx context.Context, model models.Model, mode models.SyncMode) error {
	if _, err := models.ParseSyncMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSyncMode, mode)
	}
	if mode == models.SyncNone {
		r.logger.Info("Model loaded without structural change", zap.String("table", model.TableName))
		return nil
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	unlock, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.removeAllForeignKeys(ctx); err != nil {
		r.logger.Error("Failed to remove all foreign keys", zap.Error(err))
		return fmt.Errorf("reset of %s aborted: %w", model.TableName, err)
	}
	return r.syncTable(ctx, model, mode)
}

func (r *SchemaResetter) syncTable(ctx context.Context, model models.Model, mode models.SyncMode) error {
	err := r.introspector.SynchronizeTable(ctx, model, SyncOptions{Recreate: mode == models.SyncForce})
	if err != nil {
		r.logger.Error("Table sync failed",
			zap.String("table", model.TableName),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return fmt.Errorf("failed to sync %s: %w", model.TableName, err)
	}
	r.logger.Info("Table synced",
		zap.String("table", model.TableName),
		zap.String("mode", string(mode)))
	return nil
}

// ResetTableAsync runs ResetTable in the background, detached from the
// caller's cancellation. Failures are logged; the returned channel yields
// the outcome once and is then closed, and may be ignored.
func (r *SchemaResetter) ResetTableAsync(ctx context.Context, model models.Model, mode models.SyncMode) <-chan error {
	done := make(chan error, 1)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		err := r.ResetTable(ctx, model, mode)
		if err != nil {
			r.logger.Error("Background table reset failed",
				zap.String("table", model.TableName),
				zap.Error(err))
		}
		done <- err
	}()

	return done
}

// ResetTables resets every model using its own sync mode. Foreign keys are
// removed once, then tables are synced one at a time with referenced
// tables first. A failing table does not stop the rest.
func (r *SchemaResetter) ResetTables(ctx context.Context, ms []models.Model) error {
	return r.ResetTablesWithReport(ctx, ms, nil)
}

// ResetTablesWithReport is ResetTables with a callback invoked after each
// table sync. It is not called for tables skipped by an aborted pass.
func (r *SchemaResetter) ResetTablesWithReport(ctx context.Context, ms []models.Model, report func(models.Model, error)) error {
	structural := make([]models.Model, 0, len(ms))
	for _, m := range ms {
		if _, err := models.ParseSyncMode(string(m.Sync)); err != nil {
			return fmt.Errorf("%w: %s: %q", ErrInvalidSyncMode, m.TableName, m.Sync)
		}
		if m.Sync == models.SyncNone {
			r.logger.Info("Model loaded without structural change", zap.String("table", m.TableName))
			continue
		}
		structural = append(structural, m)
	}
	if len(structural) == 0 {
		return nil
	}

	ctx, cancel := r.withDeadline(ctx)
	defer cancel()

	unlock, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	start := time.Now()
	if err := r.removeAllForeignKeys(ctx); err != nil {
		r.logger.Error("Failed to remove all foreign keys", zap.Error(err))
		return fmt.Errorf("reset aborted: %w", err)
	}

	ordered, deps := orderModelsByDependencies(structural, r.logger)
	var errs error
	for i, m := range ordered {
		dep := deps[i]
		r.logger.Info("Resetting table",
			zap.String("table", m.TableName),
			zap.Int("level", dep.Level),
			zap.Strings("depends_on", dep.DependsOn),
			zap.Bool("circular", dep.HasCircular))

		err := r.syncTable(ctx, m, m.Sync)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		if report != nil {
			report(m, err)
		}
	}

	r.logger.Info("Reset pass finished",
		zap.Int("tables", len(ordered)),
		zap.Int("failed", len(multierr.Errors(errs))),
		zap.Duration("elapsed", time.Since(start)))
	return errs
}
