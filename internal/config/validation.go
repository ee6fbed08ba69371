package config

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/mstharness/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateSolver()...)
	errors = append(errors, c.validateCatalog()...)
	errors = append(errors, c.validateValidation()...)
	errors = append(errors, c.validateProcessing()...)
	errors = append(errors, c.validateOutput()...)

	if c.Store.Enabled {
		errors = append(errors, c.validateStore()...)
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateSolver() ValidationErrors {
	var errors ValidationErrors

	if c.Solver.Executable == "" {
		errors = append(errors, ValidationError{
			Field:   "solver.executable",
			Message: "executable is required",
		})
	}

	if c.Solver.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "solver.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Solver.MaxOutputBytes < 0 {
		errors = append(errors, ValidationError{
			Field:   "solver.max_output_bytes",
			Message: "max_output_bytes cannot be negative",
		})
	}

	for i, m := range c.Solver.DisconnectMarkers {
		if strings.TrimSpace(m) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("solver.disconnect_markers[%d]", i),
				Message: "marker cannot be empty",
			})
		}
	}

	if c.Solver.Build.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "solver.build.timeout_seconds",
			Message: "timeout_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateCatalog() ValidationErrors {
	var errors ValidationErrors

	if c.Catalog.Dir == "" && c.Catalog.FallbackDir == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.dir",
			Message: "dir or fallback_dir is required",
		})
	}

	if c.Catalog.EdgePrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.edge_prefix",
			Message: "edge_prefix is required",
		})
	}

	if c.Catalog.NodePrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "catalog.node_prefix",
			Message: "node_prefix is required",
		})
	}

	if c.Catalog.EdgePrefix != "" && c.Catalog.EdgePrefix == c.Catalog.NodePrefix {
		errors = append(errors, ValidationError{
			Field:   "catalog.node_prefix",
			Message: "node_prefix must differ from edge_prefix",
		})
	}

	return errors
}

func (c *Config) validateValidation() ValidationErrors {
	var errors ValidationErrors

	if c.Validation.Tolerance < 0 {
		errors = append(errors, ValidationError{
			Field:   "validation.tolerance",
			Message: "tolerance cannot be negative",
		})
	}

	if c.Validation.PrimaryName == "" {
		errors = append(errors, ValidationError{
			Field:   "validation.primary_name",
			Message: "primary_name is required",
		})
	}

	if c.Validation.SecondaryName == "" {
		errors = append(errors, ValidationError{
			Field:   "validation.secondary_name",
			Message: "secondary_name is required",
		})
	}

	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors

	if c.Processing.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   "processing.workers",
			Message: "workers must be positive",
		})
	}

	return errors
}

func (c *Config) validateOutput() ValidationErrors {
	var errors ValidationErrors

	if c.Output.ResultsCSV == "" {
		errors = append(errors, ValidationError{
			Field:   "output.results_csv",
			Message: "results_csv is required",
		})
	}

	return errors
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.path",
				Message: "path is required for the sqlite driver",
			})
		}
	case "mysql":
		errors = append(errors, validateDatabase("store.mysql", &c.Store.MySQL)...)
	default:
		errors = append(errors, ValidationError{
			Field:   "store.driver",
			Message: "driver must be 'mysql' or 'sqlite'",
		})
	}

	if c.Store.TablePrefix != "" && !sqlutil.IsValidIdentifier(c.Store.TablePrefix) {
		errors = append(errors, ValidationError{
			Field:   "store.table_prefix",
			Message: "table_prefix may only contain letters, digits and underscores",
		})
	}

	return errors
}

func validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
