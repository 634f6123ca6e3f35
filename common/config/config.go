// Package config provides configuration discovery and loading for epsonconf.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"epsonconf/common/logger"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// AppName is used for the platform config/data directories.
const AppName = "epsonconf"

// FindConfigFile returns the first readable filename along
// GetConfigSearchPaths together with its contents.
func FindConfigFile(filename string) (string, []byte, error) {
	for _, candidate := range GetConfigSearchPaths(filename) {
		if data, err := os.ReadFile(candidate); err == nil {
			return candidate, data, nil
		}
	}
	return "", nil, fmt.Errorf("%s not found in any search path", filename)
}

// GetConfigSearchPaths lists candidate locations for filename in lookup
// order: working directory, user config directory, system directory and
// the directory holding the executable.
func GetConfigSearchPaths(filename string) []string {
	paths := []string{filepath.Join(".", filename)}
	if dir, ok := userConfigDir(); ok {
		paths = append(paths, filepath.Join(dir, filename))
	}
	paths = append(paths, filepath.Join(systemConfigDir(), filename))
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), filename))
	}
	return paths
}

func userConfigDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", AppName), true
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName), true
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), true
	}
	return filepath.Join(home, ".config", AppName), true
}

func systemConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), AppName)
	case "darwin":
		return filepath.Join("/Library/Application Support", AppName)
	}
	return filepath.Join("/etc", AppName)
}

// GetDataDirectory returns the per-user data directory, creating it if
// needed. The journal database lives here unless configured otherwise.
func GetDataDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	dir := filepath.Join(home, ".local", "share", AppName)
	switch runtime.GOOS {
	case "windows", "darwin":
		dir, _ = userConfigDir()
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dir = filepath.Join(xdg, AppName)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return dir, nil
}

// WriteDefaultTOML writes cfg to configPath. An existing file is never overwritten.
func WriteDefaultTOML(configPath string, cfg interface{}) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	file, err := os.OpenFile(configPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		file.Close()
		return fmt.Errorf("encode config file: %w", err)
	}
	return file.Close()
}

// LoadTOML decodes a TOML file into cfg. Keys the struct does not know are
// logged at debug level rather than rejected.
func LoadTOML(configPath string, cfg interface{}) error {
	meta, err := toml.DecodeFile(configPath, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 && logger.Global != nil {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logger.Global.Debug("Ignoring unknown config keys", "path", configPath, "keys", strings.Join(keys, ","))
	}
	return nil
}

// LoadYAML decodes a YAML file into cfg.
func LoadYAML(configPath string, cfg interface{}) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	return nil
}

// LoadFile dispatches on the file extension: .yaml/.yml use YAML, anything
// else is read as TOML.
func LoadFile(configPath string, cfg interface{}) error {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return LoadYAML(configPath, cfg)
	default:
		return LoadTOML(configPath, cfg)
	}
}

// DatabaseConfig locates the write journal.
type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LoggingConfig sets the log level and an optional log file directory.
type LoggingConfig struct {
	Level string `toml:"level" yaml:"level"`
	Dir   string `toml:"dir" yaml:"dir"`
}

// SNMPConfig holds transport settings
type SNMPConfig struct {
	Community string `toml:"community" yaml:"community"`
	Version   string `toml:"version" yaml:"version"`
	Port      int    `toml:"port" yaml:"port"`
	TimeoutMS int    `toml:"timeout_ms" yaml:"timeout_ms"`
	Retries   int    `toml:"retries" yaml:"retries"`
}

// RegistryConfig points at an optional capability overlay.
type RegistryConfig struct {
	Overlay string `toml:"overlay" yaml:"overlay"`
	Replace bool   `toml:"replace" yaml:"replace"`
}

// ApplyDatabaseEnvOverrides applies DB_PATH.
func ApplyDatabaseEnvOverrides(cfg *DatabaseConfig) {
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.Path = val
	}
}

// ApplyLoggingEnvOverrides applies LOG_LEVEL and LOG_DIR.
func ApplyLoggingEnvOverrides(cfg *LoggingConfig) {
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Level = val
	}
	if val := os.Getenv("LOG_DIR"); val != "" {
		cfg.Dir = val
	}
}

// ApplySNMPEnvOverrides applies SNMP_COMMUNITY, SNMP_VERSION, SNMP_PORT,
// SNMP_TIMEOUT_MS and SNMP_RETRIES. Unparseable numbers are ignored.
func ApplySNMPEnvOverrides(cfg *SNMPConfig) {
	if val := os.Getenv("SNMP_COMMUNITY"); val != "" {
		cfg.Community = val
	}
	if val := os.Getenv("SNMP_VERSION"); val != "" {
		cfg.Version = val
	}
	if n, ok := envInt("SNMP_PORT"); ok {
		cfg.Port = n
	}
	if n, ok := envInt("SNMP_TIMEOUT_MS"); ok {
		cfg.TimeoutMS = n
	}
	if n, ok := envInt("SNMP_RETRIES"); ok {
		cfg.Retries = n
	}
}

// EnvBool reports a boolean environment variable ("1", "true", "yes", "on").
func EnvBool(name string) (bool, bool) {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

func envInt(name string) (int, bool) {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}
