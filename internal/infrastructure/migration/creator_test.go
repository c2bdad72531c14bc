package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add drafts table", "add_drafts_table"},
		{"Add-Drafts-Table", "add_drafts_table"},
		{"ADD_DRAFTS_TABLE", "add_drafts_table"},
		{"add__drafts__table", "add_drafts_table"},
		{"Index EAN 13", "index_ean_13"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"Größe", "gre"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)

	mf, err := CreateMigration(dir, "add draft expiry", "Expire saved drafts after 30 days", now)
	require.NoError(t, err)

	assert.Equal(t, "20260301091500", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20260301091500_add_draft_expiry.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20260301091500_add_draft_expiry.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add draft expiry")
	assert.Contains(t, string(up), "Expire saved drafts after 30 days")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
}

func TestCreateMigration_Rejects(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)

	_, err := CreateMigration(dir, "!!!", "", now)
	assert.Error(t, err)

	_, err = CreateMigration(dir, "once", "", now)
	require.NoError(t, err)
	_, err = CreateMigration(dir, "once", "", now)
	assert.Error(t, err, "existing files are never overwritten")
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"20260302_b.up.sql":   {},
		"20260302_b.down.sql": {},
		"20260301_a.up.sql":   {},
		"20260301_a.down.sql": {},
		"README.md":           {},
	}
	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301_a", "20260302_b"}, names)
}

func TestEmbeddedSchema(t *testing.T) {
	names, err := ListMigrations(Schema())
	require.NoError(t, err)
	require.Len(t, names, 3)
	assert.True(t, strings.HasSuffix(names[0], "create_catalog_products"))
	assert.True(t, strings.HasSuffix(names[1], "create_order_drafts"))
	assert.True(t, strings.HasSuffix(names[2], "create_scheduler_jobs"))

	for _, name := range names {
		_, err := os.Stat(filepath.Join("sql", name+".down.sql"))
		assert.NoError(t, err, "%s needs a down migration", name)
	}
}
