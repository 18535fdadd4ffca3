package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"db-schema-keeper/internal/models"
	"db-schema-keeper/internal/testhelpers"
)

func integrationModels() (users, posts models.Model) {
	users = models.Model{
		TableName: "it_users",
		Columns: []models.Column{
			{Name: "id", Type: "BIGINT UNSIGNED", PrimaryKey: true, Extra: "AUTO_INCREMENT"},
			{Name: "email", Type: "VARCHAR(191)"},
		},
		Indexes: []models.Index{{Columns: []string{"email"}, Unique: true}},
	}
	posts = models.Model{
		TableName: "it_posts",
		Columns: []models.Column{
			{Name: "id", Type: "BIGINT UNSIGNED", PrimaryKey: true, Extra: "AUTO_INCREMENT"},
			{Name: "user_id", Type: "BIGINT UNSIGNED"},
			{Name: "title", Type: "VARCHAR(255)"},
		},
		Indexes: []models.Index{{Name: "idx_it_posts_author", Columns: []string{"user_id", "id"}}},
		ForeignKeys: []models.ForeignKey{
			{ColumnName: "user_id", ReferencedTableName: "it_users", ReferencedColumnName: "id", OnDelete: "CASCADE"},
		},
	}
	return users, posts
}

func setupIntrospector(t *testing.T) (*MySQLIntrospector, models.Model, models.Model) {
	t.Helper()
	tdb := testhelpers.GetTestMySQL(t)
	ctx := context.Background()

	drop := func() {
		tdb.DB.MustExec("DROP TABLE IF EXISTS `it_posts`")
		tdb.DB.MustExec("DROP TABLE IF EXISTS `it_users`")
	}
	drop()
	t.Cleanup(drop)

	s := NewMySQLIntrospector(tdb.DB, zap.NewNop())
	users, posts := integrationModels()
	require.NoError(t, s.SynchronizeTable(ctx, users, SyncOptions{}))
	require.NoError(t, s.SynchronizeTable(ctx, posts, SyncOptions{}))
	return s, users, posts
}

func TestMySQLIntrospector_Metadata(t *testing.T) {
	s, _, _ := setupIntrospector(t)
	ctx := context.Background()

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	assert.Subset(t, tables, []string{"it_posts", "it_users"})

	fks, err := s.ListForeignKeys(ctx, "it_posts")
	require.NoError(t, err)
	assert.Equal(t, []models.TableConstraint{{TableName: "it_posts", ConstraintName: "fk_it_posts_user_id"}}, fks)

	described, err := s.DescribeForeignKeys(ctx, "it_posts")
	require.NoError(t, err)
	require.Len(t, described, 1)
	fk := described[0]
	assert.Equal(t, "it_posts", fk.TableName)
	assert.Equal(t, "fk_it_posts_user_id", fk.ConstraintName)
	assert.Equal(t, "user_id", fk.ColumnName)
	assert.Equal(t, "it_users", fk.ReferencedTableName)
	assert.Equal(t, "id", fk.ReferencedColumnName)
	assert.Equal(t, "CASCADE", fk.OnDelete)
	assert.NotEmpty(t, fk.OnUpdate)

	indexes, err := s.ListIndexes(ctx, "it_posts")
	require.NoError(t, err)
	byName := make(map[string]models.TableIndex)
	for _, idx := range indexes {
		byName[idx.Name] = idx
	}
	assert.True(t, byName["PRIMARY"].IsPrimary())
	assert.Equal(t, []string{"user_id", "id"}, byName["idx_it_posts_author"].Columns)

	exists, err := s.TableExists(ctx, "it_nothing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMySQLIntrospector_RemoveIsIdempotent(t *testing.T) {
	s, _, _ := setupIntrospector(t)
	ctx := context.Background()

	require.NoError(t, s.RemoveConstraint(ctx, "it_posts", "fk_it_posts_user_id"))
	require.NoError(t, s.RemoveConstraint(ctx, "it_posts", "fk_it_posts_user_id"))

	require.NoError(t, s.RemoveIndex(ctx, "it_posts", "idx_it_posts_author"))
	require.NoError(t, s.RemoveIndex(ctx, "it_posts", "idx_it_posts_author"))

	assert.Error(t, s.RemoveIndex(ctx, "it_posts", "PRIMARY"))
}

func TestMySQLIntrospector_ResetAndReapply(t *testing.T) {
	s, users, posts := setupIntrospector(t)
	ctx := context.Background()
	r := NewSchemaResetter(s, zap.NewNop())

	for i := 0; i < 2; i++ {
		require.NoError(t, r.RemoveAllForeignKeys(ctx))
		require.NoError(t, r.RemoveAllNonPrimaryIndexes(ctx))
	}

	for _, table := range []string{"it_users", "it_posts"} {
		fks, err := s.ListForeignKeys(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, fks, table)

		indexes, err := s.ListIndexes(ctx, table)
		require.NoError(t, err)
		require.Len(t, indexes, 1, table)
		assert.True(t, indexes[0].IsPrimary(), table)
	}

	// alter sync puts declared keys back
	require.NoError(t, r.ResetTables(ctx, []models.Model{
		withSync(posts, models.SyncAlter),
		withSync(users, models.SyncAlter),
	}))

	fks, err := s.ListForeignKeys(ctx, "it_posts")
	require.NoError(t, err)
	assert.Len(t, fks, 1)
}

func TestMySQLIntrospector_RemoveAllKeys(t *testing.T) {
	s, _, _ := setupIntrospector(t)
	ctx := context.Background()
	r := NewSchemaResetter(s, zap.NewNop())

	// the author index backs the live foreign key
	err := r.RemoveAllNonPrimaryIndexes(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idx_it_posts_author")

	require.NoError(t, r.RemoveAllKeys(ctx))
	for _, table := range []string{"it_users", "it_posts"} {
		fks, err := s.ListForeignKeys(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, fks, table)

		indexes, err := s.ListIndexes(ctx, table)
		require.NoError(t, err)
		require.Len(t, indexes, 1, table)
		assert.True(t, indexes[0].IsPrimary(), table)
	}

	plan, err := r.PlanReset(ctx)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestMySQLIntrospector_AlterPreservesRows(t *testing.T) {
	s, users, _ := setupIntrospector(t)
	ctx := context.Background()
	db := testhelpers.GetTestMySQL(t).DB

	db.MustExec("INSERT INTO `it_users` (email) VALUES ('a@example.com'), ('b@example.com')")

	users.Columns = append(users.Columns, models.Column{Name: "nickname", Type: "VARCHAR(64)", Nullable: true})
	users.Columns[1].Type = "VARCHAR(255)"
	r := NewSchemaResetter(s, zap.NewNop())
	require.NoError(t, r.ResetTable(ctx, users, models.SyncAlter))

	cols, err := s.GetTableSchema(ctx, "it_users")
	require.NoError(t, err)
	var names []string
	for _, c := range cols {
		names = append(names, c.ColumnName)
		if c.ColumnName == "email" {
			assert.Equal(t, "varchar(255)", c.ColumnType)
		}
	}
	assert.Equal(t, []string{"id", "email", "nickname"}, names)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM `it_users`"))
	assert.Equal(t, 2, n)
}

func TestMySQLIntrospector_ForceDiscardsRows(t *testing.T) {
	s, users, _ := setupIntrospector(t)
	ctx := context.Background()
	db := testhelpers.GetTestMySQL(t).DB

	db.MustExec("INSERT INTO `it_users` (email) VALUES ('a@example.com')")

	r := NewSchemaResetter(s, zap.NewNop())
	require.NoError(t, r.ResetTable(ctx, users, models.SyncForce))

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM `it_users`"))
	assert.Equal(t, 0, n)
}

func withSync(m models.Model, mode models.SyncMode) models.Model {
	m.Sync = mode
	return m
}
