package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,city,value
k1,oslo,10
k2,bergen,20
k3,oslo,30
`

func TestRead(t *testing.T) {
	t.Run("parses header and rows", func(t *testing.T) {
		table, err := Read(strings.NewReader(sampleCSV))
		require.NoError(t, err)

		assert.Equal(t, 3, table.NumRows())
		assert.Equal(t, []string{"id", "city", "value"}, table.Columns())

		ids, err := table.Column("id")
		require.NoError(t, err)
		assert.Equal(t, []string{"k1", "k2", "k3"}, ids)
	})

	t.Run("rejects unknown column", func(t *testing.T) {
		table, err := Read(strings.NewReader(sampleCSV))
		require.NoError(t, err)

		_, err = table.Column("nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := Read(strings.NewReader(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no header")
	})

	t.Run("rejects duplicate column names", func(t *testing.T) {
		_, err := Read(strings.NewReader("id,id\nk1,k2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate column")
	})

	t.Run("header-only file has zero rows", func(t *testing.T) {
		table, err := Read(strings.NewReader("id,city\n"))
		require.NoError(t, err)
		assert.Equal(t, 0, table.NumRows())
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads a CSV file from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.csv")
		require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

		table, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, table.NumRows())
	})

	t.Run("missing file fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
		require.Error(t, err)
	})
}
