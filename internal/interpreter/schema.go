// Package interpreter turns solver stdout into result records and applies cross-validation.
package interpreter

import (
	"errors"
	"fmt"

	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

// ErrUnrecognizedOutput is returned when no schema claims the solver output.
var ErrUnrecognizedOutput = errors.New("unrecognized output schema")

// Schema is one recognized solver output format: a shape detector plus its parser.
type Schema interface {
	Name() string
	// Detect reports whether stdout has this schema's shape. It must not parse values.
	Detect(stdout string) bool
	// Parse builds a record from a detected output or fails; it never returns a partial record.
	Parse(outcome *supervisor.RunOutcome) (*types.ResultRecord, error)
}

// ParseError is a schema-level parse failure; it always maps to MalformedOutput.
type ParseError struct {
	Schema string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Schema, e.Reason)
}

func parseErrorf(schema, format string, args ...interface{}) *ParseError {
	return &ParseError{Schema: schema, Reason: fmt.Sprintf(format, args...)}
}
