// Package config loads and validates the optional .appverify YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up at the repository root.
const FileName = ".appverify"

// Default values for discovery and verification.
const (
	DefaultOutDir       = "out"
	DefaultAltOutDir    = "dist"
	DefaultOutputRecord = ".forge-output.json"
	DefaultPort         = 9138
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = time.Second
	DefaultGrace        = 5 * time.Second
)

// Environment variables consulted by the engine.
const (
	EnvOutDir       = "APPVERIFY_OUT_DIR"
	EnvOutputRecord = "APPVERIFY_OUTPUT_RECORD"
	EnvRecordDir    = "APPVERIFY_RECORD_DIR"
)

// DefaultSuppress lists stderr fragments from the desktop toolkit that are
// known to be harmless.
var DefaultSuppress = []string{"Gtk", "libnotify"}

// Config holds the parsed .appverify configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int      `yaml:"version"`
	AppName         string   `yaml:"app_name"`
	OutDir          string   `yaml:"out_dir"`
	OutOverride     string   `yaml:"out_override"`
	AltOutDir       string   `yaml:"alt_out_dir"`
	OutputRecord    string   `yaml:"output_record"`
	LinuxFormat     string   `yaml:"linux_format"` // any, appimage, unpacked
	RawPort         int      `yaml:"port"`
	RawTimeout      string   `yaml:"timeout"`       // e.g. "30s"
	RawPollInterval string   `yaml:"poll_interval"` // e.g. "1s"
	RawGrace        string   `yaml:"grace"`
	Suppress        []string `yaml:"suppress"`
}

// Port returns the configured port or the default.
func (c *Config) Port() int {
	if c.RawPort > 0 && c.RawPort < 65536 {
		return c.RawPort
	}
	return DefaultPort
}

// Timeout returns the configured overall deadline or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, DefaultTimeout)
}

// PollInterval returns the configured probe interval or the default.
func (c *Config) PollInterval() time.Duration {
	return parseDuration(c.RawPollInterval, DefaultPollInterval)
}

// Grace returns how long a terminated child is given before it is killed.
func (c *Config) Grace() time.Duration {
	return parseDuration(c.RawGrace, DefaultGrace)
}

// OutputDir returns the default packager output directory.
func (c *Config) OutputDir() string {
	if c.OutDir != "" {
		return c.OutDir
	}
	return DefaultOutDir
}

// AltOutputDir returns the sibling build directory of the alternate build
// entry point.
func (c *Config) AltOutputDir() string {
	if c.AltOutDir != "" {
		return c.AltOutDir
	}
	return DefaultAltOutDir
}

// OutputRecordPath returns the record of packager output paths. The
// environment wins over the file.
func (c *Config) OutputRecordPath() string {
	if v := os.Getenv(EnvOutputRecord); v != "" {
		return v
	}
	if c.OutputRecord != "" {
		return c.OutputRecord
	}
	return DefaultOutputRecord
}

// Override returns the explicit output directory override, if any.
func (c *Config) Override() string {
	if v := os.Getenv(EnvOutDir); v != "" {
		return v
	}
	return c.OutOverride
}

// SuppressPatterns returns the stderr allow-list, falling back to defaults.
func (c *Config) SuppressPatterns() []string {
	if len(c.Suppress) > 0 {
		return c.Suppress
	}
	return DefaultSuppress
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return def
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing package.json; falls back to workspace
	AppName  string // resolved application name
}

// Load reads the .appverify file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for package.json. If no .appverify file exists, a default Config
// is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		// No package.json found; use workspace as root.
		root, err = filepath.Abs(workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace: %w", err)
		}
	}

	cfg := &Config{}
	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	return &LoadResult{Config: cfg, RepoRoot: root, AppName: appName(cfg, root)}, nil
}

// packageManifest holds the fields of package.json used for naming.
type packageManifest struct {
	Name        string `json:"name"`
	ProductName string `json:"productName"`
}

// appName resolves the application name: config, then package.json, then
// the repository directory name.
func appName(cfg *Config, root string) string {
	if cfg.AppName != "" {
		return cfg.AppName
	}
	if data, err := os.ReadFile(filepath.Join(root, "package.json")); err == nil {
		var m packageManifest
		if json.Unmarshal(data, &m) == nil {
			if m.ProductName != "" {
				return m.ProductName
			}
			if m.Name != "" {
				return m.Name
			}
		}
	}
	return filepath.Base(root)
}

// findRepoRoot walks upward from dir looking for a directory containing package.json.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("package.json not found")
		}
		dir = parent
	}
}
