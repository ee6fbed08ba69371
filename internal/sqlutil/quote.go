// Package sqlutil provides identifier helpers for the results store.
package sqlutil

import (
	"regexp"
	"strings"
)

// QuoteIdentifier wraps an identifier in backticks, doubling embedded backticks.
// Both MySQL and SQLite accept backtick quoting.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier reports whether name contains only letters, digits and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// TableName joins a configured prefix and a base table name and quotes the result.
// The prefix comes from user configuration, so it is validated first.
func TableName(prefix, base string) (string, error) {
	name := prefix + base
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
