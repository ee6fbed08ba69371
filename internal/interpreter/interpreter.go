package interpreter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

// DefaultTolerance is the absolute cost difference accepted between the two algorithms.
const DefaultTolerance = 0.01

// Options configures an Interpreter.
type Options struct {
	Tolerance     float64
	PrimaryName   string
	SecondaryName string
}

// Interpretation is the outcome of interpreting one run.
// Exactly one of Record or Failure is set. Mismatch may accompany Record.
type Interpretation struct {
	Record   *types.ResultRecord
	Failure  *types.FailureRecord
	Mismatch *types.FailureRecord
}

// Interpreter dispatches solver output over a fixed list of schemas.
type Interpreter struct {
	tolerance float64
	schemas   []Schema
}

// New creates an Interpreter recognizing the fixed-field and tagged schemas, in that order.
func New(opts Options) *Interpreter {
	if opts.Tolerance < 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.PrimaryName == "" {
		opts.PrimaryName = "Prim"
	}
	if opts.SecondaryName == "" {
		opts.SecondaryName = "Kruskal"
	}
	return &Interpreter{
		tolerance: opts.Tolerance,
		schemas: []Schema{
			FixedFieldSchema{},
			NewTaggedSchema(opts.PrimaryName, opts.SecondaryName),
		},
	}
}

// Tolerance returns the configured cost tolerance.
func (in *Interpreter) Tolerance() float64 {
	return in.tolerance
}

// Detect returns the first schema claiming stdout, or ErrUnrecognizedOutput.
func (in *Interpreter) Detect(stdout string) (Schema, error) {
	for _, s := range in.schemas {
		if s.Detect(stdout) {
			return s, nil
		}
	}
	return nil, ErrUnrecognizedOutput
}

// Interpret turns a run outcome into a record or a failure.
// Outcomes that timed out, failed or errored are classified without reading stdout.
func (in *Interpreter) Interpret(outcome *supervisor.RunOutcome) Interpretation {
	if f := outcome.Classify(); f != nil {
		return Interpretation{Failure: f}
	}

	schema, err := in.Detect(outcome.Stdout)
	if err != nil {
		return Interpretation{Failure: malformed(outcome, err)}
	}

	rec, err := schema.Parse(outcome)
	if err != nil {
		return Interpretation{Failure: malformed(outcome, err)}
	}

	return Interpretation{
		Record:   rec,
		Mismatch: Validate(rec, in.tolerance),
	}
}

// Validate recomputes the cost check on rec, sets ValidationPassed and returns a
// ValidationMismatch annotation when the record does not pass. Records without
// reported costs are marked as not passed and get no annotation.
func Validate(rec *types.ResultRecord, tolerance float64) *types.FailureRecord {
	if !rec.CostsReported {
		rec.ValidationPassed = false
		return nil
	}

	diff := math.Abs(rec.CostPrimary - rec.CostSecondary)
	nonNegative := rec.CostPrimary >= 0 && rec.CostSecondary >= 0
	costsAgree := nonNegative && diff <= tolerance

	rec.ValidationPassed = rec.SolverValidation && costsAgree
	if rec.ValidationPassed {
		return nil
	}

	var reasons []string
	if !nonNegative {
		reasons = append(reasons, fmt.Sprintf("negative cost (%s, %s)",
			types.FormatFloat(rec.CostPrimary), types.FormatFloat(rec.CostSecondary)))
	}
	if diff > tolerance {
		reasons = append(reasons, fmt.Sprintf("cost difference %s exceeds tolerance %s",
			types.FormatFloat(diff), types.FormatFloat(tolerance)))
	}
	if !rec.SolverValidation {
		if costsAgree {
			reasons = append(reasons, "solver reported validation failure but costs agree")
		} else {
			reasons = append(reasons, "solver reported validation failure")
		}
	} else if !costsAgree {
		reasons = append(reasons, "solver reported validation success")
	}

	return &types.FailureRecord{
		InstanceID: rec.InstanceID,
		Kind:       types.ValidationMismatch,
		Detail:     strings.Join(reasons, "; "),
	}
}

func malformed(outcome *supervisor.RunOutcome, err error) *types.FailureRecord {
	detail := err.Error()
	var pe *ParseError
	if errors.As(err, &pe) {
		detail = pe.Reason
	}
	return &types.FailureRecord{
		InstanceID: outcome.InstanceID,
		Kind:       types.MalformedOutput,
		Detail:     detail,
	}
}
