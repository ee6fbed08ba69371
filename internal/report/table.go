package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dbsmedya/mstharness/internal/types"
)

// Columns is the stable column order of the results table.
var Columns = []string{
	"instance_id",
	"vertex_count",
	"edge_count",
	"cost_primary",
	"time_primary",
	"cost_secondary",
	"time_secondary",
	"memory_primary",
	"memory_secondary",
	"is_connected",
	"validation_passed",
}

// Table is the tabular form of the results, one row per ResultRecord.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Table renders the results in ascending instance id order.
func (r *ExperimentReport) Table() Table {
	t := Table{Columns: append([]string(nil), Columns...)}
	for i := range r.Results {
		t.Rows = append(t.Rows, Row(&r.Results[i]))
	}
	return t
}

// Row renders one record in column order. Absent memory values are empty cells.
func Row(rec *types.ResultRecord) []string {
	return []string{
		strconv.Itoa(rec.InstanceID),
		strconv.Itoa(rec.VertexCount),
		strconv.Itoa(rec.EdgeCount),
		types.FormatFloat(rec.CostPrimary),
		types.FormatFloat(rec.TimePrimary),
		types.FormatFloat(rec.CostSecondary),
		types.FormatFloat(rec.TimeSecondary),
		types.FormatOptional(rec.MemoryPrimary),
		types.FormatOptional(rec.MemorySecondary),
		types.FormatFlag(rec.IsConnected),
		types.FormatFlag(rec.ValidationPassed),
	}
}

// WriteCSV writes the header and every row of t.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
