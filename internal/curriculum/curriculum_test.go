package curriculum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, c.Projects)

	first := c.First()
	assert.Equal(t, "01_cli_file_processor", first.ID)
	assert.NotEmpty(t, first.Checks)
	assert.Equal(t, 1, c.Position(first.ID))

	next, ok, err := c.Next(first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "02_async_data_fetcher", next.ID)

	last := c.Projects[len(c.Projects)-1]
	_, ok, err = c.Next(last.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Next("99_nope")
	assert.ErrorIs(t, err, ErrUnknownProject)
	_, err = c.Get("99_nope")
	assert.ErrorIs(t, err, ErrUnknownProject)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "projects: []"},
		{"missing name", "projects:\n  - id: a"},
		{"duplicate", "projects:\n  - {id: a, name: A}\n  - {id: a, name: B}"},
		{"bad check", "projects:\n  - id: a\n    name: A\n    checks:\n      - name: tests"},
		{"not yaml", "projects: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects:\n  - {id: go_cli, name: Go CLI}\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "go_cli", c.First().ID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
