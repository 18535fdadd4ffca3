package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"db-schema-keeper/internal/models"
)

func strPtr(s string) *string { return &s }

func postsModel() models.Model {
	return models.Model{
		TableName: "posts",
		Columns: []models.Column{
			{Name: "id", Type: "BIGINT UNSIGNED", PrimaryKey: true, Extra: "AUTO_INCREMENT"},
			{Name: "user_id", Type: "BIGINT UNSIGNED"},
			{Name: "slug", Type: "VARCHAR(191)"},
			{Name: "title", Type: "VARCHAR(255)", Nullable: true, Default: strPtr("''")},
		},
		Indexes: []models.Index{
			{Columns: []string{"slug"}, Unique: true},
			{Name: "idx_posts_author", Columns: []string{"user_id", "id"}},
		},
		ForeignKeys: []models.ForeignKey{
			{ColumnName: "user_id", ReferencedTableName: "users", ReferencedColumnName: "id", OnDelete: "cascade"},
		},
	}
}

func TestGenerateCreateTableStatement(t *testing.T) {
	want := "CREATE TABLE `posts` (\n" +
		"  `id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,\n" +
		"  `user_id` BIGINT UNSIGNED NOT NULL,\n" +
		"  `slug` VARCHAR(191) NOT NULL,\n" +
		"  `title` VARCHAR(255) DEFAULT '',\n" +
		"  PRIMARY KEY (`id`),\n" +
		"  UNIQUE KEY `uniq_posts_slug` (`slug`),\n" +
		"  KEY `idx_posts_author` (`user_id`, `id`),\n" +
		"  CONSTRAINT `fk_posts_user_id` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON DELETE CASCADE\n" +
		")"

	assert.Equal(t, want, generateCreateTableStatement(postsModel()))
}

func TestDropStatements(t *testing.T) {
	assert.Equal(t, "DROP TABLE IF EXISTS `posts`", generateDropTableStatement("posts"))
	assert.Equal(t, "ALTER TABLE `posts` DROP FOREIGN KEY `fk_posts_user_id`", generateDropForeignKeyStatement("posts", "fk_posts_user_id"))
	assert.Equal(t, "DROP INDEX `idx_posts_author` ON `posts`", generateDropIndexStatement("posts", "idx_posts_author"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`plain`", quoteIdent("plain"))
	assert.Equal(t, "`we``ird`", quoteIdent("we`ird"))
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"INT(11)":              "int",
		"int(10) unsigned":     "int unsigned",
		"BIGINT(20)  UNSIGNED": "bigint unsigned",
		"varchar(255)":         "varchar(255)",
		"DECIMAL(10,2)":        "decimal(10,2)",
		"tinyint(1)":           "tinyint",
		"enum('a','b')":        "enum('a','b')",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeType(in), in)
	}
}

func TestGenerateAlterStatements(t *testing.T) {
	live := []models.ColumnInfo{
		{ColumnName: "id", ColumnType: "bigint unsigned", IsNullable: "NO", Extra: "auto_increment"},
		{ColumnName: "USER_ID", ColumnType: "bigint(20) unsigned", IsNullable: "NO"},
		{ColumnName: "slug", ColumnType: "varchar(100)", IsNullable: "NO"},
		{ColumnName: "legacy", ColumnType: "text", IsNullable: "YES"},
	}

	stmts := generateAlterStatements(postsModel(), live)

	assert.Equal(t, []string{
		"ALTER TABLE `posts` MODIFY COLUMN `slug` VARCHAR(191) NOT NULL",
		"ALTER TABLE `posts` ADD COLUMN `title` VARCHAR(255) DEFAULT ''",
	}, stmts)
}

func TestGenerateAddStatements(t *testing.T) {
	m := postsModel()
	assert.Equal(t, "ALTER TABLE `posts` ADD UNIQUE KEY `uniq_posts_slug` (`slug`)", generateCreateIndexStatement(m, m.Indexes[0]))
	assert.Equal(t,
		"ALTER TABLE `posts` ADD CONSTRAINT `fk_posts_user_id` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON DELETE CASCADE",
		generateAddForeignKeyStatement(m, m.ForeignKeys[0]))
}

func TestGroupIndexRows(t *testing.T) {
	col := func(s string) *string { return &s }
	rows := []struct {
		name   string
		unique bool
		column *string
	}{
		{"PRIMARY", true, col("id")},
		{"idx_author", false, col("user_id")},
		{"idx_author", false, col("id")},
		{"idx_expr", false, nil},
	}

	got := groupIndexRows(len(rows), func(i int) (string, string, bool, *string) {
		return "posts", rows[i].name, rows[i].unique, rows[i].column
	})

	assert.Equal(t, []models.TableIndex{
		{TableName: "posts", Name: "PRIMARY", Unique: true, Columns: []string{"id"}},
		{TableName: "posts", Name: "idx_author", Columns: []string{"user_id", "id"}},
		{TableName: "posts", Name: "idx_expr"},
	}, got)
}
