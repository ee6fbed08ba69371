package interpreter

import (
	"math"
	"strconv"
	"strings"

	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

// FixedFieldName identifies records produced by FixedFieldSchema.
const FixedFieldName = "fixed-field"

// fixedFieldCount is V,E,CostPrim,TimePrim,CostKruskal,TimeKruskal,IsConnected,ValidationPassed.
const fixedFieldCount = 8

// FixedFieldSchema parses a single comma-separated line of eight fields.
type FixedFieldSchema struct{}

// Name implements Schema.
func (FixedFieldSchema) Name() string { return FixedFieldName }

// Detect claims a single non-empty line that contains a comma and no parentheses.
func (FixedFieldSchema) Detect(stdout string) bool {
	lines := nonEmptyLines(stdout)
	if len(lines) != 1 {
		return false
	}
	line := lines[0]
	return strings.Contains(line, ",") && !strings.ContainsAny(line, "()")
}

// Parse implements Schema.
func (s FixedFieldSchema) Parse(outcome *supervisor.RunOutcome) (*types.ResultRecord, error) {
	lines := nonEmptyLines(outcome.Stdout)
	if len(lines) != 1 {
		return nil, parseErrorf(FixedFieldName, "expected exactly one line, got %d", len(lines))
	}

	fields := strings.Split(lines[0], ",")
	if len(fields) != fixedFieldCount {
		return nil, parseErrorf(FixedFieldName, "expected %d fields, got %d", fixedFieldCount, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	rec := &types.ResultRecord{
		InstanceID:    outcome.InstanceID,
		CostsReported: true,
		Schema:        FixedFieldName,
		Elapsed:       outcome.Elapsed,
	}

	var err error
	if rec.VertexCount, err = parseCount("vertex_count", fields[0]); err != nil {
		return nil, err
	}
	if rec.EdgeCount, err = parseCount("edge_count", fields[1]); err != nil {
		return nil, err
	}
	if rec.CostPrimary, err = parseNumber("cost_primary", fields[2]); err != nil {
		return nil, err
	}
	if rec.TimePrimary, err = parseTime("time_primary", fields[3]); err != nil {
		return nil, err
	}
	if rec.CostSecondary, err = parseNumber("cost_secondary", fields[4]); err != nil {
		return nil, err
	}
	if rec.TimeSecondary, err = parseTime("time_secondary", fields[5]); err != nil {
		return nil, err
	}

	connected, err := types.ParseFlag(fields[6])
	if err != nil {
		return nil, parseErrorf(FixedFieldName, "is_connected: %v", err)
	}
	rec.IsConnected = connected

	solverFlag, err := types.ParseFlag(fields[7])
	if err != nil {
		return nil, parseErrorf(FixedFieldName, "validation_passed: %v", err)
	}
	rec.SolverValidation = solverFlag

	return rec, nil
}

func parseTime(field, s string) (float64, error) {
	t, err := parseNumber(field, s)
	if err != nil {
		return 0, err
	}
	if t < 0 {
		return 0, parseErrorf(FixedFieldName, "%s: negative time %q", field, s)
	}
	return t, nil
}

func parseCount(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, parseErrorf(FixedFieldName, "%s: invalid integer %q", field, s)
	}
	if n < 0 {
		return 0, parseErrorf(FixedFieldName, "%s: negative count %d", field, n)
	}
	return n, nil
}

func parseNumber(field, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, parseErrorf(FixedFieldName, "%s: invalid number %q", field, s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, parseErrorf(FixedFieldName, "%s: non-finite number %q", field, s)
	}
	return f, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
