package gateway

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, arbiter.DefaultLayout, settings.PoolLayout)
	assert.Zero(t, settings.SweepPeriod)
}

func TestLoadSettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
pool_layout:
  data: 2
  hashes: 3
  tags: 1
  namespace_index: 4
  index: 1
hash_cache_size: 128
scan_timeout: 90s
sweep_period: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, arbiter.Layout{Data: 2, Hashes: 3, Tags: 1, NamespaceIndex: 4, Index: 1}, settings.PoolLayout)
	assert.Equal(t, 128, settings.HashCacheSize)
	assert.Equal(t, 90*time.Second, settings.ScanTimeout.Std())
	assert.Equal(t, 5*time.Minute, settings.SweepPeriod.Std())
}

func TestLoadSettingsPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hash_cache_size: 16\n"), 0o644))

	settings, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 16, settings.HashCacheSize)
	assert.Equal(t, arbiter.DefaultLayout, settings.PoolLayout)
}

func TestLoadSettingsRejectsBadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
pool_layout:
  data: 1
  namespace_index: 1
  index: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestLoadSettingsRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_timeout: soon\n"), 0o644))

	_, err := LoadSettings(path)
	assert.Error(t, err)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
