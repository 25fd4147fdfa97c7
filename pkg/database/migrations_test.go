package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoad_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("SELECT 1;")},
		"002_second.sql": {Data: []byte("SELECT 1;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("ignored")},
	}

	migrations, err := Load(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "first", migrations[0].Name)
}

func TestLoad_RejectsBadNames(t *testing.T) {
	_, err := Load(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = Load(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_items.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);")},
		"002_index.sql": {Data: []byte("CREATE INDEX idx_items_id ON items(id);")},
	}
	m := NewMigrator(db, zap.NewNop())

	applied, err := m.Run(fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = m.Run(fsys)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE broken (id TEXT); INSERT INTO missing VALUES (1);")},
	}

	applied, err := NewMigrator(db, zap.NewNop()).Run(fsys)
	assert.Error(t, err)
	assert.Equal(t, 1, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}
