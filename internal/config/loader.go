package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// A .env file next to the config is loaded first; ${VAR} references are then
// substituted from the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := loadDotEnv(filepath.Join(filepath.Dir(configPath), ".env")); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadOrDefault loads configPath when it exists and falls back to DefaultConfig otherwise.
// The CLI uses it so the harness runs with zero configuration.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := loadDotEnv(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
		substituteEnvVars(cfg)
		return cfg, nil
	}
	return Load(configPath)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.Solver.Executable = expandEnvVar(cfg.Solver.Executable)
	for i, arg := range cfg.Solver.Build.Command {
		cfg.Solver.Build.Command[i] = expandEnvVar(arg)
	}
	cfg.Solver.Build.Dir = expandEnvVar(cfg.Solver.Build.Dir)

	cfg.Catalog.Dir = expandEnvVar(cfg.Catalog.Dir)
	cfg.Catalog.FallbackDir = expandEnvVar(cfg.Catalog.FallbackDir)

	cfg.Output.ResultsCSV = expandEnvVar(cfg.Output.ResultsCSV)
	cfg.Output.SummaryYAML = expandEnvVar(cfg.Output.SummaryYAML)

	for i, arg := range cfg.Charts.Command {
		cfg.Charts.Command[i] = expandEnvVar(arg)
	}

	cfg.Store.Path = expandEnvVar(cfg.Store.Path)
	cfg.Store.MySQL.Host = expandEnvVar(cfg.Store.MySQL.Host)
	cfg.Store.MySQL.User = expandEnvVar(cfg.Store.MySQL.User)
	cfg.Store.MySQL.Password = expandEnvVar(cfg.Store.MySQL.Password)
	cfg.Store.MySQL.Database = expandEnvVar(cfg.Store.MySQL.Database)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Executable != "" {
		c.Solver.Executable = o.Executable
	}
	if o.TimeoutSeconds > 0 {
		c.Solver.TimeoutSeconds = o.TimeoutSeconds
	}
	if o.Workers > 0 {
		c.Processing.Workers = o.Workers
	}
	if o.Dir != "" {
		c.Catalog.Dir = o.Dir
	}
	if o.ResultsCSV != "" {
		c.Output.ResultsCSV = o.ResultsCSV
	}
	if o.SkipBuild {
		c.Solver.Build.Skip = true
	}
}

// Overrides contains CLI flag values that override config file settings.
type Overrides struct {
	LogLevel       string
	LogFormat      string
	Executable     string
	TimeoutSeconds float64
	Workers        int
	Dir            string
	ResultsCSV     string
	SkipBuild      bool
}
