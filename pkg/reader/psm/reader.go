// Package psm reads tab separated PSM tables in the MS-GF+ / PHRP synopsis layout
package psm

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/tsv"
)

// Column names with a fixed meaning. Every other numeric column becomes a named score.
const (
	ColDataset     = "Dataset"
	ColScan        = "Scan"
	ColPeptide     = "Peptide"
	ColProtein     = "Protein"
	ColPrecursorMZ = "PrecursorMZ"
	ColCharge      = "Charge"
	ColAScore      = "AScore"
	ColMassError   = "DelM_PPM" // stored as core.ScoreMassErrorPPM
)

// Options configures parsing
type Options struct {
	DecoyPrefix        string // Accessions with this prefix are decoys (default "XXX_")
	AccessionSeparator string // Separator inside the Protein column (default ";")
}

func (o Options) withDefaults() Options {
	if o.DecoyPrefix == "" {
		o.DecoyPrefix = "XXX_"
	}
	if o.AccessionSeparator == "" {
		o.AccessionSeparator = ";"
	}
	return o
}

// Reader streams PSMs. Consecutive rows for the same dataset, scan and peptide, as
// written once per protein by MS-GF+, are merged into one PSM with several accessions.
type Reader struct {
	t       *tsv.Reader
	opts    Options
	scores  []string
	pending *core.PSM
	current *core.PSM
	err     error
}

// NewReader reads the header and prepares streaming
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	t, err := tsv.NewReader(r, ColDataset, ColScan, ColPeptide, ColProtein)
	if err != nil {
		return nil, err
	}
	rd := &Reader{t: t, opts: opts.withDefaults()}
	for _, name := range t.Header() {
		switch name {
		case ColDataset, ColScan, ColPeptide, ColProtein, ColPrecursorMZ, ColCharge, ColAScore:
		default:
			rd.scores = append(rd.scores, name)
		}
	}
	return rd, nil
}

// Next advances to the next PSM. Returns false when no more PSMs or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}
	for r.t.Next() {
		p, err := r.parseRow()
		if err != nil {
			r.err = fmt.Errorf("line %d: %w", r.t.Line(), err)
			return false
		}
		if r.pending != nil && sameMatch(r.pending, p) {
			r.pending.Accessions = mergeAccessions(r.pending.Accessions, p.Accessions)
			r.pending.IsDecoy = r.pending.IsDecoy && p.IsDecoy
			continue
		}
		r.current, r.pending = r.pending, p
		if r.current != nil {
			return true
		}
	}
	if err := r.t.Err(); err != nil {
		r.err = err
		return false
	}
	r.current, r.pending = r.pending, nil
	return r.current != nil
}

// PSM returns the current PSM
func (r *Reader) PSM() *core.PSM {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll collects every PSM of the table
func ReadAll(rd io.Reader, opts Options) ([]core.PSM, error) {
	r, err := NewReader(rd, opts)
	if err != nil {
		return nil, err
	}
	var out []core.PSM
	for r.Next() {
		out = append(out, *r.PSM())
	}
	return out, r.Err()
}

func sameMatch(a, b *core.PSM) bool {
	return a.DatasetID == b.DatasetID && a.ScanID == b.ScanID && a.Peptide == b.Peptide
}

func mergeAccessions(a, b []string) []string {
	for _, acc := range b {
		if !slices.Contains(a, acc) {
			a = append(a, acc)
		}
	}
	return a
}

func (r *Reader) parseRow() (*core.PSM, error) {
	scan, err := strconv.Atoi(r.t.Field(ColScan))
	if err != nil {
		return nil, fmt.Errorf("invalid scan: %w", err)
	}
	p := &core.PSM{
		DatasetID:  r.t.Field(ColDataset),
		ScanID:     scan,
		Peptide:    r.t.Field(ColPeptide),
		Accessions: core.SplitAccessions(r.t.Field(ColProtein), r.opts.AccessionSeparator),
		Scores:     make(map[string]float64),
	}
	if p.DatasetID == "" || p.Peptide == "" || len(p.Accessions) == 0 {
		return nil, fmt.Errorf("dataset, peptide and protein are required")
	}

	p.IsDecoy = true
	for _, acc := range p.Accessions {
		if !strings.HasPrefix(acc, r.opts.DecoyPrefix) {
			p.IsDecoy = false
			break
		}
	}

	if v := r.t.Field(ColPrecursorMZ); v != "" {
		if p.PrecursorMZ, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColPrecursorMZ, err)
		}
	}
	if v := r.t.Field(ColCharge); v != "" {
		if p.Charge, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColCharge, err)
		}
	}
	if v := r.t.Field(ColAScore); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColAScore, err)
		}
		p.AScore = &a
	}

	for _, name := range r.scores {
		v, err := strconv.ParseFloat(r.t.Field(name), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		if name == ColMassError {
			name = core.ScoreMassErrorPPM
		}
		p.Scores[name] = v
	}
	return p, nil
}
