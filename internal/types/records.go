// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import "time"

// InstancePair is one graph instance: a node file and an edge file sharing a numeric id.
type InstancePair struct {
	ID       int
	NodePath string
	EdgePath string
}

// ResultRecord is a validated measurement for one instance.
type ResultRecord struct {
	InstanceID      int
	VertexCount     int
	EdgeCount       int
	CostPrimary     float64
	TimePrimary     float64
	CostSecondary   float64
	TimeSecondary   float64
	MemoryPrimary   *float64 // nil when the solver did not report it
	MemorySecondary *float64
	IsConnected     bool

	// ValidationPassed is recomputed by the harness from the reported costs.
	ValidationPassed bool
	// SolverValidation is the flag the solver printed; advisory only.
	SolverValidation bool
	CostsReported    bool
	Schema           string
	Elapsed          time.Duration
}

// CostDifference returns |CostPrimary - CostSecondary|, or 0 when costs were not reported.
func (r *ResultRecord) CostDifference() float64 {
	if !r.CostsReported {
		return 0
	}
	d := r.CostPrimary - r.CostSecondary
	if d < 0 {
		return -d
	}
	return d
}

// FailureKind classifies why an instance did not produce a clean result.
type FailureKind string

const (
	// MissingPairFile is never recorded; incomplete pairs are skipped by the catalog.
	MissingPairFile    FailureKind = "MissingPairFile"
	NonZeroExit        FailureKind = "NonZeroExit"
	Timeout            FailureKind = "Timeout"
	MalformedOutput    FailureKind = "MalformedOutput"
	ValidationMismatch FailureKind = "ValidationMismatch"
	ExecutionException FailureKind = "ExecutionException"
)

// FailureRecord describes a failed instance, or a validation annotation on a recorded one.
type FailureRecord struct {
	InstanceID int
	Kind       FailureKind
	Detail     string
}

// Reason renders the record for the failure ledger.
func (f FailureRecord) Reason() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}
