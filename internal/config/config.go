package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ysnap/internal/interval"
)

// Config represents the main configuration for ysnap.
type Config struct {
	BaseDir  string         `toml:"base_dir" yaml:"base_dir"`
	LogDir   string         `toml:"log_dir" yaml:"log_dir"`
	Database DatabaseConfig `toml:"database" yaml:"database"`
	Rsync    RsyncConfig    `toml:"rsync" yaml:"rsync"`
	Naming   NamingConfig   `toml:"naming" yaml:"naming"`
	Jobs     []JobConfig    `toml:"jobs" yaml:"jobs"`
}

// DatabaseConfig represents configuration for the rotation history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" yaml:"type"`                             // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty" yaml:"data_dir,omitempty"` // only used for type=sqlite
}

// RsyncConfig locates the rsync binary.
type RsyncConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// NamingConfig controls snapshot directory names.
type NamingConfig struct {
	Prefix string `toml:"prefix" yaml:"prefix"`
}

// JobConfig is one configured backup: a source mirrored into a target
// directory of snapshots.
type JobConfig struct {
	Name          string   `toml:"name" yaml:"name"`
	Source        string   `toml:"source" yaml:"source"`
	Target        string   `toml:"target" yaml:"target"`
	MaxToKeep     int      `toml:"max_to_keep" yaml:"max_to_keep"`
	Excludes      []string `toml:"excludes,omitempty" yaml:"excludes,omitempty"`
	ExcludeFrom   string   `toml:"exclude_from,omitempty" yaml:"exclude_from,omitempty"`
	OnlyIfChanged bool     `toml:"only_if_changed" yaml:"only_if_changed"`
	MinDelay      string   `toml:"min_delay,omitempty" yaml:"min_delay,omitempty"`   // e.g. "2h", "1 day"
	Schedule      string   `toml:"schedule,omitempty" yaml:"schedule,omitempty"`     // cron expression for the daemon
	Incomplete    string   `toml:"incomplete,omitempty" yaml:"incomplete,omitempty"` // resume, discard or fail
}

// NewConfig creates a new Config with default locations under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Rsync:  RsyncConfig{Path: "rsync"},
		Naming: NamingConfig{Prefix: "ysnap_"},
	}
}

// FindJob returns the job with the given name.
func (c *Config) FindJob(name string) (*JobConfig, error) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], nil
		}
	}
	return nil, fmt.Errorf("no job named %q", name)
}

var incompletePolicies = map[string]bool{"": true, "resume": true, "discard": true, "fail": true}

// Validate checks the job definitions. Cron schedules are checked by the
// scheduler when the daemon starts.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i+1)
		}
		if seen[job.Name] {
			return fmt.Errorf("job %q: duplicate name", job.Name)
		}
		seen[job.Name] = true

		if job.Source == "" {
			return fmt.Errorf("job %q: source is required", job.Name)
		}
		if job.Target == "" {
			return fmt.Errorf("job %q: target is required", job.Name)
		}
		if job.MinDelay != "" {
			if _, err := interval.Parse(job.MinDelay); err != nil {
				return fmt.Errorf("job %q: min_delay: %w", job.Name, err)
			}
		}
		if !incompletePolicies[job.Incomplete] {
			return fmt.Errorf("job %q: incomplete must be resume, discard or fail, got %q", job.Name, job.Incomplete)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// ReadYAML decodes a Config in YAML form from the provided reader.
func (m *Manager) ReadYAML(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode yaml config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// WriteYAML encodes a Config as YAML to the provided writer.
func (m *Manager) WriteYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode yaml config: %w", err)
	}
	return enc.Close()
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ReadFromFile reads a Config from the specified file path.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	var cfg *Config
	if isYAML(path) {
		cfg, err = m.ReadYAML(f)
	} else {
		cfg, err = m.Read(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if isYAML(path) {
		err = m.WriteYAML(f, cfg)
	} else {
		err = m.Write(f, cfg)
	}
	if err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
