// Package config provides configuration structures and loading for mstharness.
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Solver     SolverConfig     `yaml:"solver" mapstructure:"solver"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Charts     ChartsConfig     `yaml:"charts" mapstructure:"charts"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// SolverConfig describes the external solver and how to build it.
type SolverConfig struct {
	Executable        string      `yaml:"executable" mapstructure:"executable"`
	TimeoutSeconds    float64     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxOutputBytes    int64       `yaml:"max_output_bytes" mapstructure:"max_output_bytes"`
	DisconnectMarkers []string    `yaml:"disconnect_markers" mapstructure:"disconnect_markers"`
	Build             BuildConfig `yaml:"build" mapstructure:"build"`
}

// BuildConfig represents the build collaborator settings.
type BuildConfig struct {
	Command        []string `yaml:"command" mapstructure:"command"` // argv; empty means "only check the executable"
	Dir            string   `yaml:"dir" mapstructure:"dir"`
	TimeoutSeconds float64  `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Skip           bool     `yaml:"skip" mapstructure:"skip"`
}

// CatalogConfig represents instance discovery settings.
type CatalogConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	FallbackDir string `yaml:"fallback_dir" mapstructure:"fallback_dir"`
	EdgePrefix  string `yaml:"edge_prefix" mapstructure:"edge_prefix"`
	NodePrefix  string `yaml:"node_prefix" mapstructure:"node_prefix"`
	Extension   string `yaml:"extension" mapstructure:"extension"`
}

// ValidationConfig represents cross-validation settings.
type ValidationConfig struct {
	Tolerance     float64 `yaml:"tolerance" mapstructure:"tolerance"`
	PrimaryName   string  `yaml:"primary_name" mapstructure:"primary_name"`
	SecondaryName string  `yaml:"secondary_name" mapstructure:"secondary_name"`
}

// ProcessingConfig represents scheduling settings.
type ProcessingConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // 1 = strictly sequential
}

// OutputConfig represents artifact paths.
type OutputConfig struct {
	ResultsCSV  string `yaml:"results_csv" mapstructure:"results_csv"`
	SummaryYAML string `yaml:"summary_yaml" mapstructure:"summary_yaml"` // empty disables
}

// ChartsConfig represents the chart collaborator.
type ChartsConfig struct {
	Command        []string `yaml:"command" mapstructure:"command"` // CSV path is appended; empty disables
	TimeoutSeconds float64  `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// StoreConfig represents the optional SQL results store.
type StoreConfig struct {
	Enabled     bool           `yaml:"enabled" mapstructure:"enabled"`
	Driver      string         `yaml:"driver" mapstructure:"driver"` // mysql or sqlite
	TablePrefix string         `yaml:"table_prefix" mapstructure:"table_prefix"`
	Path        string         `yaml:"path" mapstructure:"path"` // sqlite file
	MySQL       DatabaseConfig `yaml:"mysql" mapstructure:"mysql"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Executable:        "./main",
			TimeoutSeconds:    300,
			MaxOutputBytes:    64 << 20,
			DisconnectMarkers: []string{"desconexo", "disconnected"},
			Build: BuildConfig{
				Command:        []string{"gcc", "-O2", "-Wall", "-Wextra", "main.c", "-o", "main", "-lm"},
				TimeoutSeconds: 120,
			},
		},
		Catalog: CatalogConfig{
			Dir:         "grafos",
			FallbackDir: ".",
			EdgePrefix:  "Edges",
			NodePrefix:  "Nodes",
			Extension:   ".csv",
		},
		Validation: ValidationConfig{
			Tolerance:     0.01,
			PrimaryName:   "Prim",
			SecondaryName: "Kruskal",
		},
		Processing: ProcessingConfig{
			Workers: 1,
		},
		Output: OutputConfig{
			ResultsCSV: "resultados.csv",
		},
		Charts: ChartsConfig{
			TimeoutSeconds: 120,
		},
		Store: StoreConfig{
			Enabled:     false,
			Driver:      "sqlite",
			TablePrefix: "mst_",
			Path:        "mstharness.db",
			MySQL: DatabaseConfig{
				Port:               3306,
				TLS:                "preferred",
				MaxConnections:     4,
				MaxIdleConnections: 2,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// SolverTimeout returns the per-instance wait as a duration.
func (c *Config) SolverTimeout() time.Duration {
	return secondsToDuration(c.Solver.TimeoutSeconds)
}

// BuildTimeout returns the build wait as a duration.
func (c *Config) BuildTimeout() time.Duration {
	return secondsToDuration(c.Solver.Build.TimeoutSeconds)
}

// ChartsTimeout returns the chart collaborator wait as a duration.
func (c *Config) ChartsTimeout() time.Duration {
	return secondsToDuration(c.Charts.TimeoutSeconds)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
