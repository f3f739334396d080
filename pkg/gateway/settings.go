package gateway

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plattproject/cluster-gateway/pkg/arbiter"
)

// Duration is a time.Duration that reads from YAML strings like "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings are the tunables of the gateway, loadable from a YAML file.
// Zero values select the component defaults.
type Settings struct {
	// PoolLayout partitions the cluster connection pool.
	PoolLayout arbiter.Layout `yaml:"pool_layout"`
	// HashCacheSize bounds the sha1 lookup cache.
	HashCacheSize int `yaml:"hash_cache_size"`
	// ScanTimeout bounds one namespace scan during a full sweep.
	ScanTimeout Duration `yaml:"scan_timeout"`
	// WarmUp delays the first sweep after start.
	WarmUp Duration `yaml:"warm_up"`
	// SweepPeriod is the interval between periodic sweeps.
	SweepPeriod Duration `yaml:"sweep_period"`
	// SnapshotTimeout bounds the wait for an index snapshot.
	SnapshotTimeout Duration `yaml:"snapshot_timeout"`
	// DownloadTimeout bounds the wait for object data.
	DownloadTimeout Duration `yaml:"download_timeout"`
}

// DefaultSettings returns the standard configuration.
func DefaultSettings() Settings {
	return Settings{PoolLayout: arbiter.DefaultLayout}
}

// LoadSettings reads a settings file. An empty path yields the
// defaults; fields missing from the file keep their defaults.
func LoadSettings(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing settings file: %w", err)
	}
	if err := settings.PoolLayout.Validate(); err != nil {
		return settings, fmt.Errorf("settings file: %w", err)
	}
	return settings, nil
}
