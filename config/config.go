package config

import "time"

// Config is the complete pipedrive-cli configuration, loaded from
// pipedrive.yaml. Every field is optional: with no config file at all
// the tool runs on Defaults plus the PIPEDRIVE_API_TOKEN environment
// variable.
type Config struct {
	BaseDir string `yaml:"-"` // Directory containing the config file, for resolving relative paths

	API        APIConfig        `yaml:"api"`
	Store      StoreConfig      `yaml:"store"`
	Output     OutputConfig     `yaml:"output"`
	Engine     EngineConfig     `yaml:"engine"`
	ChangesLog ChangesLogConfig `yaml:"changes_log"`
	Backup     BackupConfig     `yaml:"backup"`
	History    string           `yaml:"history"` // Path to the run-history SQLite database
	Locale     string           `yaml:"locale"`  // BCP 47-ish locale for date conversion (e.g. "fr_FR")
}

// APIConfig configures the Pipedrive REST client.
type APIConfig struct {
	Token     string          `yaml:"token"`    // API token; PIPEDRIVE_API_TOKEN overrides when set
	BaseURL   string          `yaml:"base_url"` // Override for tests and regional endpoints
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds outgoing request rate. Pipedrive allows 80
// requests per 2-second window on most plans.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// StoreConfig locates the local datapackage.
type StoreConfig struct {
	Dir string `yaml:"dir"` // Directory holding datapackage.json + one CSV per entity
}

// OutputConfig sets display defaults, overridable per command.
type OutputConfig struct {
	Format string `yaml:"format"` // "table", "json" or "csv"
	Quiet  bool   `yaml:"quiet"`  // Suppress per-record output (never errors)
}

// EngineConfig overrides the expression engine's safety limits.
type EngineConfig struct {
	MaxLength int `yaml:"max_length"` // Bytes of expression text
	MaxDepth  int `yaml:"max_depth"`  // Nesting depth
}

// ChangesLogConfig configures the update changes log.
type ChangesLogConfig struct {
	Path   string `yaml:"path"`   // Log file; empty disables the log
	Format string `yaml:"format"` // "json" (JSONL) or "text"; inferred from extension when empty
}

// BackupConfig configures backup archiving and remote push.
type BackupConfig struct {
	Dir     string `yaml:"dir"`      // Where archives land (default: store dir)
	Push    string `yaml:"push"`     // sftp://user@host/path target; empty disables push
	KeyFile string `yaml:"key_file"` // SSH private key for the push
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		BaseDir: ".",
		API: APIConfig{
			BaseURL: "https://api.pipedrive.com",
			RateLimit: RateLimitConfig{
				Requests: 80,
				Window:   2 * time.Second,
			},
		},
		Store: StoreConfig{
			Dir: "data",
		},
		Output: OutputConfig{
			Format: "table",
		},
		Engine: EngineConfig{
			MaxLength: 1000,
			MaxDepth:  40,
		},
		History: "history.db",
		Locale:  "en_US",
	}
}
