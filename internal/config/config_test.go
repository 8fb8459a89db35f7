package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 64*1024, cfg.Fetch.QuickHashBytes)
	assert.False(t, cfg.Fetch.TrustValidators)
	assert.Equal(t, 80.0, cfg.Resolve.HighSimilarity)
	assert.Equal(t, 50.0, cfg.Resolve.LowSimilarity)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  host: localhost
  port: 5432
  user: formwatch
  dbname: formwatch
resolve:
  high_similarity: 85
  low_similarity: 40
cycle:
  workers: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 85.0, cfg.Resolve.HighSimilarity)
	assert.Equal(t, 40.0, cfg.Resolve.LowSimilarity)
	assert.Equal(t, 8, cfg.Cycle.Workers)
	// Untouched sections keep defaults.
	assert.Equal(t, 30, cfg.Fetch.TimeoutSeconds)
}

func TestValidate_ThresholdOrdering(t *testing.T) {
	cfg := Default()
	cfg.Resolve.HighSimilarity = 40
	cfg.Resolve.LowSimilarity = 60

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "low_similarity")
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "s3"

	require.Error(t, cfg.Validate())

	cfg.Storage.Bucket = "formwatch-blobs"
	cfg.Storage.Region = "us-east-1"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "mysql"
	require.Error(t, cfg.Validate())
}
