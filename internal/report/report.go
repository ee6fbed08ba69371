// Package report aggregates per-instance outcomes into an experiment report and renders it.
package report

import (
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/mstharness/internal/types"
)

// Entry is everything the harness learned about one instance.
type Entry struct {
	InstanceID      int
	Record          *types.ResultRecord
	Failure         *types.FailureRecord
	Mismatch        *types.FailureRecord
	Disconnected    bool
	DisconnectLines []string
}

// Disconnection notes an instance whose solver reported a disconnected graph.
type Disconnection struct {
	InstanceID int      `yaml:"instance_id"`
	Lines      []string `yaml:"lines,omitempty"`
}

// Summary holds aggregate counts for a run.
type Summary struct {
	Total             int                       `yaml:"total"`
	Results           int                       `yaml:"results"`
	Failures          int                       `yaml:"failures"`
	ValidationsPassed int                       `yaml:"validations_passed"`
	ValidationRatio   float64                   `yaml:"validation_ratio"`
	Unvalidated       int                       `yaml:"unvalidated"`
	Connected         int                       `yaml:"connected"`
	Disconnected      int                       `yaml:"disconnected"`
	ConnectedRatio    float64                   `yaml:"connected_ratio"`
	DisconnectedRatio float64                   `yaml:"disconnected_ratio"`
	Mismatches        int                       `yaml:"mismatches"`
	MaxCostDifference float64                   `yaml:"max_cost_difference"`
	FailuresByKind    map[types.FailureKind]int `yaml:"failures_by_kind,omitempty"`
}

// ExperimentReport is the frozen, ordered outcome of one run.
type ExperimentReport struct {
	RunID          string
	StartedAt      time.Time
	CompletedAt    time.Time
	Results        []types.ResultRecord
	Failures       []types.FailureRecord
	Mismatches     []types.FailureRecord
	Disconnections []Disconnection
	Summary        Summary
}

// Duration returns the wall time of the run.
func (r *ExperimentReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Ledger returns instance id -> reason for every failure and validation mismatch,
// in ascending id order.
func (r *ExperimentReport) Ledger() *orderedmap.OrderedMap[int, string] {
	all := make([]types.FailureRecord, 0, len(r.Failures)+len(r.Mismatches))
	all = append(all, r.Failures...)
	all = append(all, r.Mismatches...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].InstanceID < all[j].InstanceID })

	ledger := orderedmap.NewOrderedMap[int, string]()
	for _, f := range all {
		if prev, ok := ledger.Get(f.InstanceID); ok {
			ledger.Set(f.InstanceID, prev+"; "+f.Reason())
			continue
		}
		ledger.Set(f.InstanceID, f.Reason())
	}
	return ledger
}

// DisconnectedIDs returns the ids of instances reported as disconnected, ascending.
func (r *ExperimentReport) DisconnectedIDs() []int {
	ids := make([]int, 0, len(r.Disconnections))
	for _, d := range r.Disconnections {
		ids = append(ids, d.InstanceID)
	}
	return ids
}

// Aggregator collects entries as instances complete. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	entries   []Entry
	now       func() time.Time
}

// NewAggregator starts collecting entries for runID.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{
		runID:     runID,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Add appends one instance's entry.
func (a *Aggregator) Add(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

// Len returns the number of entries added so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Report freezes the collected entries into an ExperimentReport ordered by instance id.
func (a *Aggregator) Report() *ExperimentReport {
	a.mu.Lock()
	entries := make([]Entry, len(a.entries))
	copy(entries, a.entries)
	a.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].InstanceID < entries[j].InstanceID })

	r := &ExperimentReport{
		RunID:       a.runID,
		StartedAt:   a.startedAt,
		CompletedAt: a.now(),
	}
	for _, e := range entries {
		if e.Record != nil {
			r.Results = append(r.Results, *e.Record)
		}
		if e.Failure != nil {
			r.Failures = append(r.Failures, *e.Failure)
		}
		if e.Mismatch != nil {
			r.Mismatches = append(r.Mismatches, *e.Mismatch)
		}
		if e.Disconnected {
			r.Disconnections = append(r.Disconnections, Disconnection{
				InstanceID: e.InstanceID,
				Lines:      e.DisconnectLines,
			})
		}
	}
	r.Summary = summarize(len(entries), r)
	return r
}

func summarize(total int, r *ExperimentReport) Summary {
	s := Summary{
		Total:      total,
		Results:    len(r.Results),
		Failures:   len(r.Failures),
		Mismatches: len(r.Mismatches),
	}

	for _, rec := range r.Results {
		if rec.ValidationPassed {
			s.ValidationsPassed++
		}
		if !rec.CostsReported {
			s.Unvalidated++
		}
		if rec.IsConnected {
			s.Connected++
		} else {
			s.Disconnected++
		}
		if d := rec.CostDifference(); d > s.MaxCostDifference {
			s.MaxCostDifference = d
		}
	}

	if len(r.Failures) > 0 {
		s.FailuresByKind = make(map[types.FailureKind]int)
		for _, f := range r.Failures {
			s.FailuresByKind[f.Kind]++
		}
	}

	if s.Results > 0 {
		n := float64(s.Results)
		s.ValidationRatio = float64(s.ValidationsPassed) / n
		s.ConnectedRatio = float64(s.Connected) / n
		s.DisconnectedRatio = float64(s.Disconnected) / n
	}
	return s
}
