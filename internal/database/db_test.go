package database

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	config := DefaultConfig()
	config.Password = "secret"
	config.DBName = "ingest_test"

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=ingest_test sslmode=disable",
		config.DSN())
}

func TestDatabaseSchema(t *testing.T) {
	// Skip if no test database is available
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	config := DefaultConfig()
	config.DBName = "rss_platform_test"

	ctx := context.Background()
	db, err := NewDB(ctx, config)
	if err != nil {
		t.Skipf("Could not connect to test database: %v", err)
	}
	defer db.Close()

	migrator := NewMigrator(db.DB, logr.Discard())
	require.NoError(t, migrator.RunMigrations(ctx))
	// A second run finds everything applied.
	require.NoError(t, migrator.RunMigrations(ctx))

	version, err := migrator.GetMigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0001_content_sources_articles.sql", version)

	for _, table := range []string{"content_sources", "articles", "schema_migrations"} {
		var exists bool
		err := db.GetContext(ctx, &exists, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)`, table)
		assert.NoError(t, err, "Should be able to check table existence for %s", table)
		assert.True(t, exists, "Table %s should exist", table)
	}

	articleColumns := []string{
		"id", "title", "content", "url", "author", "published_at", "source_id", "source_type",
		"is_read", "images", "summary", "keywords", "category", "word_count", "created_at", "updated_at",
	}
	for _, column := range articleColumns {
		var exists bool
		err := db.GetContext(ctx, &exists, `
			SELECT EXISTS (
				SELECT FROM information_schema.columns
				WHERE table_schema = 'public'
				AND table_name = 'articles'
				AND column_name = $1
			)`, column)
		assert.NoError(t, err, "Should be able to check column existence for %s", column)
		assert.True(t, exists, "Column %s should exist in articles table", column)
	}
}
