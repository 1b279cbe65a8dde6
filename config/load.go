package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads configuration with ENV interpolation. If configPath is
// empty it searches default locations; if no file exists anywhere the
// Defaults are returned unchanged, so the tool works with nothing but
// an environment token.
func Load(configPath string, getenv func(string) string) (*Config, error) {
	path := resolveConfigPath(configPath, getenv)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		cfg := Defaults()
		applyEnvToken(cfg, getenv)
		return cfg, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	baseDir := filepath.Dir(absPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Interpolate environment variables
	data = interpolateEnv(data, getenv)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Set base directory for resolving relative paths
	cfg.BaseDir = baseDir

	cfg.Store.Dir = resolveRelative(baseDir, cfg.Store.Dir)
	cfg.History = resolveRelative(baseDir, cfg.History)
	cfg.ChangesLog.Path = resolveRelative(baseDir, cfg.ChangesLog.Path)
	cfg.Backup.Dir = resolveRelative(baseDir, cfg.Backup.Dir)
	cfg.Backup.KeyFile = resolveRelative(baseDir, cfg.Backup.KeyFile)
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = cfg.Store.Dir
	}

	applyEnvToken(cfg, getenv)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvToken lets PIPEDRIVE_API_TOKEN override the config token.
func applyEnvToken(cfg *Config, getenv func(string) string) {
	if token := getenv("PIPEDRIVE_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
}

func resolveRelative(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// resolveConfigPath finds the config file to use, or "" when none
// exists. Search order: explicit path > PIPEDRIVE_CONFIG env >
// ./pipedrive.yaml > ~/.config/pipedrive-cli/pipedrive.yaml
func resolveConfigPath(explicit string, getenv func(string) string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return ""
		}
		return explicit
	}

	if envPath := getenv("PIPEDRIVE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	if _, err := os.Stat("pipedrive.yaml"); err == nil {
		return "pipedrive.yaml"
	}

	home, err := os.UserHomeDir()
	if err == nil {
		xdgPath := filepath.Join(home, ".config", "pipedrive-cli", "pipedrive.yaml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	return ""
}

// envPattern matches ${VAR} or ${VAR:-default}
var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// interpolateEnv replaces ${VAR} and ${VAR:-default} patterns with environment values.
func interpolateEnv(data []byte, getenv func(string) string) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := string(parts[1])
		value := getenv(varName)

		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}

		return []byte(value)
	})
}

func validate(cfg *Config) error {
	var errs []string

	switch cfg.Output.Format {
	case "table", "json", "csv":
	default:
		errs = append(errs, fmt.Sprintf("invalid output format %q (must be table, json or csv)", cfg.Output.Format))
	}

	if cfg.API.RateLimit.Requests < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate_limit.requests: %d", cfg.API.RateLimit.Requests))
	}
	if cfg.API.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Sprintf("invalid rate_limit.window: %s", cfg.API.RateLimit.Window))
	}

	switch cfg.ChangesLog.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("invalid changes_log format %q (must be json or text)", cfg.ChangesLog.Format))
	}

	if len(errs) > 0 {
		msg := "config errors:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}
