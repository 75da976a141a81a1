package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedMigrations(t *testing.T) {
	migrations, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "init", migrations[0].Name)
	for _, table := range []string{"users", "stations", "rain_records", "audit_logs"} {
		assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, migrations[0].SQL, "ON DELETE RESTRICT")
	assert.Contains(t, migrations[0].SQL, "CHECK (rainfall_mm >= 0)")
}

func TestLoadSortsAndSkipsDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000002_second.up.sql":    {Data: []byte("SELECT 2;")},
		"sql/000001_first.up.sql":     {Data: []byte("SELECT 1;")},
		"sql/000001_first.down.sql":   {Data: []byte("SELECT 0;")},
		"sql/000010_add_index.up.sql": {Data: []byte("SELECT 10;")},
	}
	migrations, err := load(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "add_index", migrations[2].Name)
}

func TestLoadRejectsDuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/000001_a.up.sql": {Data: []byte("SELECT 1;")},
		"sql/1_b.up.sql":      {Data: []byte("SELECT 1;")},
	}
	_, err := load(fsys, "sql")
	assert.Error(t, err)
}
