package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

// Charter hands the persisted table to a chart collaborator.
type Charter interface {
	Chart(ctx context.Context, csvPath string, report *ExperimentReport) error
}

type summaryDocument struct {
	RunID          string          `yaml:"run_id"`
	StartedAt      time.Time       `yaml:"started_at"`
	CompletedAt    time.Time       `yaml:"completed_at"`
	Duration       string          `yaml:"duration"`
	Summary        Summary         `yaml:"summary"`
	Ledger         []ledgerLine    `yaml:"ledger,omitempty"`
	Disconnections []Disconnection `yaml:"disconnections,omitempty"`
}

type ledgerLine struct {
	InstanceID int    `yaml:"instance_id"`
	Reason     string `yaml:"reason"`
}

// WriteSummaryYAML writes a machine-readable summary of the run.
func WriteSummaryYAML(w io.Writer, r *ExperimentReport) error {
	doc := summaryDocument{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Duration:       r.Duration().Round(time.Millisecond).String(),
		Summary:        r.Summary,
		Disconnections: r.Disconnections,
	}
	for el := r.Ledger().Front(); el != nil; el = el.Next() {
		doc.Ledger = append(doc.Ledger, ledgerLine{InstanceID: el.Key, Reason: el.Value})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return enc.Close()
}

// PrintSummary writes the human-readable report.
func PrintSummary(w io.Writer, r *ExperimentReport) {
	s := r.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, color.Bold.Sprint("Experiment summary"))
	fmt.Fprintf(w, "  Run:                 %s\n", r.RunID)
	fmt.Fprintf(w, "  Duration:            %s\n", r.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Instances:           %d\n", s.Total)
	fmt.Fprintf(w, "  Results recorded:    %s\n", color.Green.Sprint(s.Results))
	fmt.Fprintf(w, "  Failures:            %s\n", countColor(s.Failures).Sprint(s.Failures))
	fmt.Fprintf(w, "  Validations passed:  %d/%d (%s)\n", s.ValidationsPassed, s.Results, percent(s.ValidationRatio))
	if s.Unvalidated > 0 {
		fmt.Fprintf(w, "  Unvalidated:         %s\n",
			color.Yellow.Sprintf("%d (no costs reported)", s.Unvalidated))
	}
	fmt.Fprintf(w, "  Connected graphs:    %d (%s)\n", s.Connected, percent(s.ConnectedRatio))
	fmt.Fprintf(w, "  Disconnected graphs: %d (%s)\n", s.Disconnected, percent(s.DisconnectedRatio))
	fmt.Fprintf(w, "  Max cost difference: %s\n", strconv.FormatFloat(s.MaxCostDifference, 'g', 6, 64))

	ledger := r.Ledger()
	if ledger.Len() > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, color.Bold.Sprint("Failure ledger"))

		keys := ledger.Keys()
		width := runewidth.StringWidth("instance")
		for _, id := range keys {
			if n := runewidth.StringWidth(strconv.Itoa(id)); n > width {
				width = n
			}
		}
		fmt.Fprintf(w, "  %s  %s\n", runewidth.FillRight("instance", width), "reason")
		for _, id := range keys {
			reason, _ := ledger.Get(id)
			fmt.Fprintf(w, "  %s  %s\n",
				runewidth.FillLeft(strconv.Itoa(id), width),
				color.Red.Sprint(runewidth.Truncate(reason, 160, "...")))
		}
	}

	if ids := r.DisconnectedIDs(); len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", color.Yellow.Sprint("Disconnected instances:"), strings.Join(parts, ", "))
	}
}

func countColor(n int) color.Color {
	if n == 0 {
		return color.Green
	}
	return color.Red
}

func percent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}
