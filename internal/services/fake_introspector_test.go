package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"db-schema-keeper/internal/models"
)

type fakeTable struct {
	fks     []string
	indexes []models.TableIndex
}

// fakeIntrospector keeps a schema in memory and records every call in
// order as "op:table[.name]".
type fakeIntrospector struct {
	mu     sync.Mutex
	tables map[string]*fakeTable
	calls  []string
	synced []syncCall

	listTablesErr error
	listFKErr     map[string]error
	listIdxErr    map[string]error
	removeErr     map[string]error // keyed "table.name"
	syncErr       map[string]error
	block         bool // calls wait for ctx to end

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

type syncCall struct {
	table    string
	recreate bool
}

var errInjected = errors.New("injected failure")

func newFakeIntrospector() *fakeIntrospector {
	return &fakeIntrospector{
		tables:     make(map[string]*fakeTable),
		listFKErr:  make(map[string]error),
		listIdxErr: make(map[string]error),
		removeErr:  make(map[string]error),
		syncErr:    make(map[string]error),
	}
}

// addTable registers a table with a PRIMARY index, the given foreign keys,
// and one secondary index per name in idx.
func (f *fakeIntrospector) addTable(name string, fks []string, idx ...string) {
	t := &fakeTable{fks: append([]string(nil), fks...)}
	t.indexes = append(t.indexes, models.TableIndex{TableName: name, Name: models.PrimaryIndexName, Unique: true, Columns: []string{"id"}})
	for _, n := range idx {
		t.indexes = append(t.indexes, models.TableIndex{TableName: name, Name: n, Columns: []string{n}})
	}
	f.tables[name] = t
}

func (f *fakeIntrospector) enter(ctx context.Context, call string) error {
	n := f.inFlight.Add(1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		f.inFlight.Add(-1)
		return ctx.Err()
	}
	return nil
}

func (f *fakeIntrospector) leave() { f.inFlight.Add(-1) }

func (f *fakeIntrospector) ListTables(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx, "tables"); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTablesErr != nil {
		return nil, f.listTablesErr
	}
	names := make([]string, 0, len(f.tables))
	for n := range f.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeIntrospector) ListForeignKeys(ctx context.Context, table string) ([]models.TableConstraint, error) {
	if err := f.enter(ctx, "listfk:"+table); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listFKErr[table]; err != nil {
		return nil, err
	}
	var out []models.TableConstraint
	for _, fk := range f.tables[table].fks {
		out = append(out, models.TableConstraint{TableName: table, ConstraintName: fk})
	}
	return out, nil
}

func (f *fakeIntrospector) RemoveConstraint(ctx context.Context, table, constraint string) error {
	if err := f.enter(ctx, "dropfk:"+table+"."+constraint); err != nil {
		return err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[table+"."+constraint]; err != nil {
		return err
	}
	t := f.tables[table]
	for i, fk := range t.fks {
		if fk == constraint {
			t.fks = append(t.fks[:i], t.fks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeIntrospector) ListIndexes(ctx context.Context, table string) ([]models.TableIndex, error) {
	if err := f.enter(ctx, "listidx:"+table); err != nil {
		return nil, err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listIdxErr[table]; err != nil {
		return nil, err
	}
	return append([]models.TableIndex(nil), f.tables[table].indexes...), nil
}

func (f *fakeIntrospector) RemoveIndex(ctx context.Context, table, index string) error {
	if err := f.enter(ctx, "dropidx:"+table+"."+index); err != nil {
		return err
	}
	defer f.leave()

	if strings.EqualFold(index, models.PrimaryIndexName) {
		return fmt.Errorf("refusing to drop primary key index of %s", table)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[table+"."+index]; err != nil {
		return err
	}
	t := f.tables[table]
	for i, idx := range t.indexes {
		if idx.Name == index {
			t.indexes = append(t.indexes[:i], t.indexes[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeIntrospector) SynchronizeTable(ctx context.Context, model models.Model, opts SyncOptions) error {
	if err := f.enter(ctx, "sync:"+model.TableName); err != nil {
		return err
	}
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced = append(f.synced, syncCall{table: model.TableName, recreate: opts.Recreate})
	return f.syncErr[model.TableName]
}

func (f *fakeIntrospector) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeIntrospector) syncLog() []syncCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]syncCall(nil), f.synced...)
}

func (f *fakeIntrospector) fkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tables {
		n += len(t.fks)
	}
	return n
}

func (f *fakeIntrospector) indexNames(table string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, idx := range f.tables[table].indexes {
		names = append(names, idx.Name)
	}
	return names
}

// firstIndex returns the position of the first call with the prefix, or -1.
func firstIndex(calls []string, prefix string) int {
	for i, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func lastIndex(calls []string, prefix string) int {
	for i := len(calls) - 1; i >= 0; i-- {
		if strings.HasPrefix(calls[i], prefix) {
			return i
		}
	}
	return -1
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) Acquire(context.Context) (func(context.Context) error, error) {
	if l.held {
		return nil, fmt.Errorf("test-lock: %w", ErrLockHeld)
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}
