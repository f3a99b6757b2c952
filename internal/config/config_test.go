package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.2, cfg.Training.TestSplit)
	assert.Equal(t, 5, cfg.Training.CVFolds)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 200, cfg.Training.ForestTrees)
	assert.Equal(t, 200, cfg.Training.BoostingRounds)
	assert.NotEmpty(t, cfg.Data.CSVPath)
	assert.NotEmpty(t, cfg.Artifact.Path)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flightprice.yaml")
	content := `
log_level: debug
data:
  csv_path: /data/listings.csv
artifact:
  path: /data/bundle.json
training:
  cv_folds: 3
  forest_trees: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/data/listings.csv", cfg.Data.CSVPath)
	assert.Equal(t, 3, cfg.Training.CVFolds)
	assert.Equal(t, 50, cfg.Training.ForestTrees)
	// untouched keys keep their defaults
	assert.Equal(t, 0.2, cfg.Training.TestSplit)
}

func TestLoadValidation(t *testing.T) {
	t.Run("BadTestSplit", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flightprice.yaml")
		require.NoError(t, os.WriteFile(path, []byte("training:\n  test_split: 1.5\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "test_split")
	})

	t.Run("BadFolds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flightprice.yaml")
		require.NoError(t, os.WriteFile(path, []byte("training:\n  cv_folds: 1\n"), 0o644))
		_, err := Load(path)
		assert.ErrorContains(t, err, "cv_folds")
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
