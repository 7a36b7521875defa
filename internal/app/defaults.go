package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ysnap/internal/config"
	"ysnap/internal/scheduler"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - YSNAP_CONFIG_PATH: config file location (default: ~/.config/ysnap.toml)
//   - YSNAP_HOME: base directory for ysnap data (default: ~/.local/share/ysnap)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking YSNAP_CONFIG_PATH env var first,
// then falling back to the default ~/.config/ysnap.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("YSNAP_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "ysnap.toml"), nil
}

// getBaseDir returns the base directory for ysnap data, checking YSNAP_HOME env var first,
// then falling back to the XDG default ~/.local/share/ysnap.
func getBaseDir() (string, error) {
	if path := os.Getenv("YSNAP_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ysnap"), nil
}

// LoadConfig reads the config file at the default location. A missing file
// is an error only when required; otherwise the built-in defaults are used,
// which is enough for one-off `ysnap backup` runs.
func LoadConfig(required bool) (*config.Config, error) {
	defaults, err := GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	switch {
	case err == nil:
	case !required && errors.Is(err, fs.ErrNotExist):
		cfg = config.NewConfig(defaults["base_dir"])
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyDefaults(cfg, defaults["base_dir"])
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", defaults["config_path"], err)
	}
	for _, job := range cfg.Jobs {
		if job.Schedule == "" {
			continue
		}
		if err := scheduler.ValidateSchedule(job.Schedule); err != nil {
			return nil, fmt.Errorf("invalid config %s: job %q: %w", defaults["config_path"], job.Name, err)
		}
	}
	return cfg, nil
}

// applyDefaults fills settings left empty in the config file.
func applyDefaults(cfg *config.Config, baseDir string) {
	def := config.NewConfig(baseDir)
	if cfg.BaseDir == "" {
		cfg.BaseDir = def.BaseDir
	} else {
		def = config.NewConfig(cfg.BaseDir)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = def.LogDir
	}
	if cfg.Database.Type == "" {
		cfg.Database = def.Database
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		cfg.Database.DataDir = def.Database.DataDir
	}
	if cfg.Rsync.Path == "" {
		cfg.Rsync.Path = def.Rsync.Path
	}
	if cfg.Naming.Prefix == "" {
		cfg.Naming.Prefix = def.Naming.Prefix
	}
}
