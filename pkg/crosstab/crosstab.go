// Package crosstab joins identifications, reporter intensities and the study design into
// a feature by measurement matrix of reference-normalized intensities.
package crosstab

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/design"
	"github.com/ChrisMcGann/PlexQuant/pkg/reporter"
)

// Options configures aggregation
type Options struct {
	Key       Key
	Statistic Statistic
}

// Validate checks the options
func (o Options) Validate() error {
	if len(o.Key) == 0 {
		return fmt.Errorf("aggregation key is required")
	}
	if _, err := ParseStatistic(string(o.Statistic)); err != nil {
		return err
	}
	return nil
}

// Cell is a nullable matrix value.
type Cell struct {
	Value float64
	Valid bool
}

// Matrix holds one row per key value and one column per measurement name.
type Matrix struct {
	Rows    []string
	Columns []string
	Cells   [][]Cell // [row][column]
}

// Get returns the cell at a row and column name.
func (m *Matrix) Get(row, column string) (Cell, bool) {
	r := sort.SearchStrings(m.Rows, row)
	if r == len(m.Rows) || m.Rows[r] != row {
		return Cell{}, false
	}
	for c, name := range m.Columns {
		if name == column {
			return m.Cells[r][c], true
		}
	}
	return Cell{}, false
}

// Diagnostics counts what the joins dropped.
type Diagnostics struct {
	PSMs           int // PSMs offered
	NoKey          int // PSMs without a value for the key
	UnknownDataset int // PSMs whose dataset has no fraction
	NoReporter     int // PSMs without reporter rows after QC filtering
	UnknownChannel int // reporter rows whose channel is not in Samples
	Ratios         int // normalized values computed
	NullRatios     int // values left undefined by a zero or missing reference
	Rows           int
	Columns        int
	PopulatedCells int
}

// observation is one PSM's reporter rows within a group.
type observation struct {
	key    string
	values map[string]float64 // alias -> intensity for the whole scan of the plex
	rows   []*core.ReporterIntensity
}

type contribution struct {
	key         string
	measurement string
	ratio       float64 // NaN when undefined
}

// Aggregate builds the quantitative matrix from the given PSMs.
//
// Each PSM is joined to its reporter rows by scan, to its plex through Fractions and to
// measurement names through Samples. Every channel intensity is divided by the reference
// of its (plex, quant block) evaluated on the same scan; a zero or missing reference
// leaves the value undefined. Values sharing key and measurement are summarized with the
// chosen statistic, and cells without any defined value stay null.
func Aggregate(psms []*core.PSM, table *reporter.Table, model *design.Model, opts Options) (*Matrix, *Diagnostics, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkReferences(model); err != nil {
		return nil, nil, err
	}

	diag := &Diagnostics{PSMs: len(psms)}
	byScan := table.ByScan()
	groups := make(map[design.GroupKey][]observation)

	for _, p := range psms {
		key, ok := opts.Key.Value(p)
		if !ok {
			diag.NoKey++
			continue
		}
		plex, ok := model.PlexOf(p.DatasetID)
		if !ok {
			diag.UnknownDataset++
			continue
		}
		rows := byScan[p.Key()]
		if len(rows) == 0 {
			diag.NoReporter++
			continue
		}

		values := make(map[string]float64, len(rows))
		perGroup := make(map[design.GroupKey][]*core.ReporterIntensity)
		for _, r := range rows {
			s, ok := model.Sample(plex, r.Channel)
			if !ok {
				diag.UnknownChannel++
				continue
			}
			values[s.ReporterAlias] = r.Intensity
			g := design.GroupKey{PlexID: plex, QuantBlock: s.QuantBlock}
			perGroup[g] = append(perGroup[g], r)
		}
		for g, rs := range perGroup {
			groups[g] = append(groups[g], observation{key: key, values: values, rows: rs})
		}
	}

	keys := model.Groups()
	results := make([][]contribution, len(keys))
	var eg errgroup.Group
	for gi, g := range keys {
		obs := groups[g]
		if len(obs) == 0 {
			continue
		}
		ref, _ := model.Reference(g)
		eg.Go(func() error {
			var out []contribution
			for _, o := range obs {
				denom := ref.Eval(o.values)
				for _, r := range o.rows {
					s, _ := model.Sample(g.PlexID, r.Channel)
					if s.MeasurementName == "" {
						continue
					}
					ratio := math.NaN()
					if denom > 0 && !math.IsInf(denom, 0) {
						ratio = r.Intensity / denom
					}
					out = append(out, contribution{key: o.key, measurement: s.MeasurementName, ratio: ratio})
				}
			}
			results[gi] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	type cellKey struct{ row, col string }
	cells := make(map[cellKey][]float64)
	rowSet := make(map[string]bool)
	for _, out := range results {
		for _, c := range out {
			diag.Ratios++
			if math.IsNaN(c.ratio) {
				diag.NullRatios++
			}
			rowSet[c.key] = true
			ck := cellKey{c.key, c.measurement}
			cells[ck] = append(cells[ck], c.ratio)
		}
	}

	m := &Matrix{Columns: model.Measurements()}
	for r := range rowSet {
		m.Rows = append(m.Rows, r)
	}
	sort.Strings(m.Rows)
	m.Cells = make([][]Cell, len(m.Rows))
	for i, row := range m.Rows {
		m.Cells[i] = make([]Cell, len(m.Columns))
		for j, col := range m.Columns {
			ratios, ok := cells[cellKey{row, col}]
			if !ok {
				continue
			}
			if v, ok := opts.Statistic.Summarize(ratios); ok {
				m.Cells[i][j] = Cell{Value: v, Valid: true}
				diag.PopulatedCells++
			}
		}
	}
	diag.Rows, diag.Columns = len(m.Rows), len(m.Columns)
	return m, diag, nil
}

// checkReferences confirms every reference reads only aliases of its own plex before
// any value is computed.
func checkReferences(model *design.Model) error {
	for _, g := range model.Groups() {
		aliases := model.Aliases(g.PlexID)
		ref, _ := model.Reference(g)
		for _, a := range ref.Aliases() {
			if !aliases[a] {
				return &core.SchemaError{Relation: design.RelReferences, Message: fmt.Sprintf("reference of %s reads unknown alias %s", g, a)}
			}
		}
	}
	return nil
}
