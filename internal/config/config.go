// Package config loads the daemon's YAML configuration file into the job
// definitions the rest of the daemon works with.
package config

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/cassian-io/taskmasterd/internal/job"
)

// DefaultPaths is the search order used when no explicit -c/--config flag
// is given, per spec.md §6 and original_source/taskmasterd/src/job.rs's
// DEFAULT_CONFIG_PATHS.
var DefaultPaths = []string{"config.yml", "../config.yml", "/etc/taskmasterd/config.yml"}

// file is the top-level shape of the YAML document.
type file struct {
	Programs map[string]job.Config `mapstructure:"programs"`
}

// Resolve returns explicit if non-empty, otherwise the first of
// DefaultPaths that exists on disk.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config: no config file found in %v", DefaultPaths)
}

// Load reads and validates the config file at path, returning the decoded
// and defaulted job configs keyed by program name.
func Load(path string) (map[string]job.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f file
	decodeOpt := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&f, decodeOpt); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	programs := make(map[string]job.Config, len(f.Programs))
	for name, cfg := range f.Programs {
		cfg = cfg.Defaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: program %s: %w", name, err)
		}
		programs[name] = cfg
	}
	return programs, nil
}
