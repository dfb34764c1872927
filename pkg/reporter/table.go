// Package reporter holds reporter ion intensities and their QC filtering
package reporter

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// Thresholds holds QC filtering configuration
type Thresholds struct {
	MinInterference  float64 // Keep rows with interference score at least this (0 = no filter)
	MinSignalToNoise float64 // Keep rows with signal to noise at least this (0 = no filter)
}

// Validate checks the thresholds are in range
func (th Thresholds) Validate() error {
	if th.MinInterference < 0 || th.MinInterference > 1 {
		return fmt.Errorf("interference threshold %v must be within [0,1]", th.MinInterference)
	}
	if th.MinSignalToNoise < 0 {
		return fmt.Errorf("signal to noise threshold %v must be non-negative", th.MinSignalToNoise)
	}
	return nil
}

// Keep reports whether a row meets both thresholds
func (th Thresholds) Keep(r *core.ReporterIntensity) bool {
	if th.MinInterference > 0 && r.InterferenceScore < th.MinInterference {
		return false
	}
	if th.MinSignalToNoise > 0 && r.SignalToNoise < th.MinSignalToNoise {
		return false
	}
	return true
}

// Table is a read-only view over reporter ion rows. Filtering returns a new view and
// leaves the underlying rows untouched.
type Table struct {
	rows []core.ReporterIntensity
	view []int // indices into rows; nil selects every row
}

// NewTable validates and takes ownership of the rows
func NewTable(rows []core.ReporterIntensity) (*Table, error) {
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return &Table{rows: rows}, nil
}

// Len returns the number of rows in the view
func (t *Table) Len() int {
	if t.view == nil {
		return len(t.rows)
	}
	return len(t.view)
}

// Row returns the i-th row of the view
func (t *Table) Row(i int) *core.ReporterIntensity {
	if t.view == nil {
		return &t.rows[i]
	}
	return &t.rows[t.view[i]]
}

// Filter returns the view of rows meeting both thresholds
func (t *Table) Filter(th Thresholds) *Table {
	view := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		idx := i
		if t.view != nil {
			idx = t.view[i]
		}
		if th.Keep(&t.rows[idx]) {
			view = append(view, idx)
		}
	}
	return &Table{rows: t.rows, view: view}
}

// Channels returns the distinct channels of the view, sorted
func (t *Table) Channels() []string {
	seen := make(map[string]bool)
	for i := 0; i < t.Len(); i++ {
		seen[t.Row(i).Channel] = true
	}
	out := make([]string, 0, len(seen))
	for ch := range seen {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// ByScan groups the rows of the view by scan, keeping view order within a scan
func (t *Table) ByScan() map[core.ScanKey][]*core.ReporterIntensity {
	out := make(map[core.ScanKey][]*core.ReporterIntensity)
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		out[r.Key()] = append(out[r.Key()], r)
	}
	return out
}
