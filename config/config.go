// Package config handles run configuration loading and the merge with
// the host CLI surface
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/chronon/core"
	"github.com/lixenwraith/chronon/engine"
)

// Run holds one simulation run's configuration
type Run struct {
	Seed        uint64 `yaml:"seed"`
	MaxSecs     string `yaml:"max_secs"`  // simulated-time bound, duration notation
	MaxWall     string `yaml:"max_wall"`  // wall-clock bound, duration notation
	MaxEvents   uint64 `yaml:"max_events"`
	Workers     int    `yaml:"workers"`
	StrictStore bool   `yaml:"strict_store"`
	LogLevel    string `yaml:"log_level"`
	LogGlob     string `yaml:"log_glob"`

	Debug DebugConfig `yaml:"debug"`
}

// DebugConfig configures the optional introspection server
type DebugConfig struct {
	// Listen is the local address for the debug HTTP server; empty
	// disables it
	Listen string `yaml:"listen"`
}

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./chronon.yaml, ~/.config/chronon/config.yaml, /etc/chronon/config.yaml
func DefaultSearchPaths() []string {
	paths := []string{"chronon.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "chronon", "config.yaml"))
	}
	paths = append(paths, "/etc/chronon/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise searches DefaultSearchPaths and returns the first
// that exists; an empty path with nil error means "no file, defaults"
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// Load reads and parses a yaml config file
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var r Run
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &r, nil
}

// Validate checks field syntax without resolving anything
func (r *Run) Validate() error {
	if r.MaxSecs != "" {
		if _, err := core.ParseDuration(r.MaxSecs); err != nil {
			return fmt.Errorf("max_secs: %w", err)
		}
	}
	if r.MaxWall != "" {
		if _, err := core.ParseDuration(r.MaxWall); err != nil {
			return fmt.Errorf("max_wall: %w", err)
		}
	}
	if _, err := core.ParseLevel(r.LogLevel); err != nil {
		return err
	}
	if r.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", r.Workers)
	}
	return nil
}

// StopCondition resolves the configured bounds
func (r *Run) StopCondition() (engine.StopCondition, error) {
	var stop engine.StopCondition
	if r.MaxSecs != "" {
		d, err := core.ParseDuration(r.MaxSecs)
		if err != nil {
			return stop, err
		}
		stop.MaxSimTime = core.SimTime(0).Add(d)
	}
	if r.MaxWall != "" {
		d, err := core.ParseDuration(r.MaxWall)
		if err != nil {
			return stop, err
		}
		stop.MaxWall = d.Wall()
	}
	stop.MaxEvents = r.MaxEvents
	return stop, nil
}

// Level resolves the configured log level
func (r *Run) Level() core.Level {
	l, err := core.ParseLevel(r.LogLevel)
	if err != nil {
		return core.LevelInfo
	}
	return l
}
