// Package fdr searches score thresholds that keep the estimated false discovery rate of
// an identification set at or below a target while retaining as many targets as possible.
//
// The estimate is decoys / targets divided by the decoy-to-target database size ratio. At
// peptide level the counting unit is the distinct peptide sequence: a peptide passes when
// any of its PSMs passes. At protein level the unit is the accession, described by the
// best value of each score column over its PSMs and by its peptide count per 1000
// residues. Candidate thresholds are the observed values. Every value of the first column
// is tried; later columns are reduced to empirical quantiles only when their product
// exceeds MaxCombinations. Results are deterministic for identical input.
package fdr

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
)

// Direction tells which side of a threshold is kept.
type Direction int

const (
	LowerIsBetter Direction = iota
	HigherIsBetter
)

func (d Direction) String() string {
	if d == HigherIsBetter {
		return ">="
	}
	return "<="
}

// Column is a numeric PSM score taking part in the search.
type Column struct {
	Name      string
	Direction Direction
	Absolute  bool // compare |value|, e.g. for signed mass errors
}

// Level is the counting granularity of the estimate.
type Level string

const (
	LevelPeptide Level = "peptide"
	LevelProtein Level = "protein"
)

// PeptidesPer1000 is the name of the length-normalized column added at protein level.
const PeptidesPer1000 = "PeptidesPer1000"

// Defaults for Config fields left zero.
const (
	DefaultMinDecoys       = 2
	DefaultMaxCandidates   = 64
	DefaultMaxCombinations = 4096
	DefaultDecoyPrefix     = "XXX_"
)

// Config holds search parameters
type Config struct {
	Target          float64  // Target FDR in (0,1]
	Columns         []Column // Score columns to threshold
	DecoyRatio      float64  // Decoy database size over target database size; divides the estimate (0 = 1)
	MinDecoys       int      // Minimum decoy units needed for an estimate (0 = DefaultMinDecoys)
	MaxCandidates   int      // Candidate thresholds per reduced column (0 = DefaultMaxCandidates)
	MaxCombinations int      // Bound on the candidate product of all but the first column (0 = DefaultMaxCombinations)
	DecoyPrefix     string   // Stripped from decoy accessions to look up protein lengths
}

func (c Config) withDefaults() Config {
	if c.DecoyRatio == 0 {
		c.DecoyRatio = 1
	}
	if c.MinDecoys == 0 {
		c.MinDecoys = DefaultMinDecoys
	}
	if c.MaxCandidates == 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.MaxCombinations == 0 {
		c.MaxCombinations = DefaultMaxCombinations
	}
	if c.DecoyPrefix == "" {
		c.DecoyPrefix = DefaultDecoyPrefix
	}
	return c
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !(c.Target > 0 && c.Target <= 1) {
		return fmt.Errorf("FDR target %v must be within (0,1]", c.Target)
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("at least one score column is required")
	}
	if c.DecoyRatio < 0 {
		return fmt.Errorf("decoy ratio must be non-negative")
	}
	seen := make(map[string]bool)
	for _, col := range c.Columns {
		if col.Name == "" {
			return fmt.Errorf("score column without a name")
		}
		if seen[col.Name] {
			return fmt.Errorf("score column %s listed twice", col.Name)
		}
		seen[col.Name] = true
	}
	return nil
}

// Threshold is a chosen cut on one column.
type Threshold struct {
	Column Column
	Value  float64
}

func (t Threshold) String() string {
	name := t.Column.Name
	if t.Column.Absolute {
		name = "|" + name + "|"
	}
	return fmt.Sprintf("%s %s %g", name, t.Column.Direction, t.Value)
}

// Result is the outcome of a search.
type Result struct {
	Level      Level
	Feasible   bool // false when no thresholds reach the target
	Thresholds []Threshold
	Targets    int
	Decoys     int
	FDR        float64
	Passing    map[string]bool // Units passing: peptide sequences or accessions
	Skipped    []string        // Accessions left out for lack of a sequence length
}

func (r *Result) String() string {
	parts := make([]string, len(r.Thresholds))
	for i, t := range r.Thresholds {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%s level: %s; %d targets, %d decoys, FDR %.4f",
		r.Level, strings.Join(parts, ", "), r.Targets, r.Decoys, r.FDR)
}

// Predicate returns the store filter realizing the result. At peptide level it applies
// the thresholds to each PSM; at protein level it keeps PSMs of passing accessions.
func (r *Result) Predicate() ident.Predicate {
	if !r.Feasible {
		return func(*core.PSM) bool { return false }
	}
	if r.Level == LevelProtein {
		return ident.InAccessions(r.Passing)
	}
	return func(p *core.PSM) bool {
		for _, t := range r.Thresholds {
			v, ok := p.Score(t.Column.Name)
			if !ok {
				return false
			}
			if t.Column.Absolute {
				v = math.Abs(v)
			}
			if !passes(t.Column, v, t.Value) {
				return false
			}
		}
		return true
	}
}

func columnValue(p *core.PSM, c Column) float64 {
	v, ok := p.Score(c.Name)
	if !ok {
		return math.NaN()
	}
	if c.Absolute {
		v = math.Abs(v)
	}
	return v
}

// PeptideLevel searches thresholds controlling the FDR of distinct peptides.
func PeptideLevel(ctx context.Context, psms []*core.PSM, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	type unitKey struct {
		seq   string
		decoy bool
	}
	unitIDs := make(map[unitKey]int)
	var unitNames []string
	items := make([]item, len(psms))
	for i, p := range psms {
		key := unitKey{p.Sequence(), p.IsDecoy}
		id, ok := unitIDs[key]
		if !ok {
			id = len(unitNames)
			unitIDs[key] = id
			unitNames = append(unitNames, key.seq)
		}
		values := make([]float64, len(cfg.Columns))
		for c, col := range cfg.Columns {
			values[c] = columnValue(p, col)
		}
		items[i] = item{unit: id, decoy: p.IsDecoy, values: values}
	}

	res, err := run(ctx, items, len(unitNames), cfg.Columns, cfg, "peptides")
	if err != nil {
		return nil, err
	}
	res.Level = LevelPeptide
	if res.Feasible {
		pred := res.Predicate()
		for i, p := range psms {
			if pred(p) && !p.IsDecoy {
				res.Passing[unitNames[items[i].unit]] = true
			}
		}
	}
	return res, nil
}

// ProteinLevel searches thresholds controlling the FDR of accessions. lengths maps
// accessions to residue counts; decoy accessions are looked up with the decoy prefix
// removed. Accessions without a length are reported in Result.Skipped.
func ProteinLevel(ctx context.Context, psms []*core.PSM, lengths map[string]int, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	type accStats struct {
		best     []float64
		peptides map[string]bool
		decoy    bool
	}
	stats := make(map[string]*accStats)
	for _, p := range psms {
		seq := p.Sequence()
		for _, acc := range p.EffectiveAccessions() {
			s, ok := stats[acc]
			if !ok {
				s = &accStats{best: make([]float64, len(cfg.Columns)), peptides: make(map[string]bool), decoy: true}
				for c := range s.best {
					s.best[c] = math.NaN()
				}
				stats[acc] = s
			}
			s.peptides[seq] = true
			s.decoy = s.decoy && p.IsDecoy
			for c, col := range cfg.Columns {
				v := columnValue(p, col)
				if math.IsNaN(v) {
					continue
				}
				if b := s.best[c]; math.IsNaN(b) || (col.Direction == HigherIsBetter && v > b) || (col.Direction == LowerIsBetter && v < b) {
					s.best[c] = v
				}
			}
		}
	}

	accessions := make([]string, 0, len(stats))
	for acc := range stats {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)

	columns := append(append([]Column(nil), cfg.Columns...), Column{Name: PeptidesPer1000, Direction: HigherIsBetter})
	var items []item
	var names []string
	var skipped []string
	for _, acc := range accessions {
		s := stats[acc]
		length, ok := lengths[acc]
		if !ok && s.decoy {
			length, ok = lengths[strings.TrimPrefix(acc, cfg.DecoyPrefix)]
		}
		if !ok || length <= 0 {
			skipped = append(skipped, acc)
			continue
		}
		values := append(append([]float64(nil), s.best...), float64(len(s.peptides))/float64(length)*1000)
		items = append(items, item{unit: len(names), decoy: s.decoy, values: values})
		names = append(names, acc)
	}

	res, err := run(ctx, items, len(names), columns, cfg, "accessions")
	if err != nil {
		return nil, err
	}
	res.Level = LevelProtein
	res.Skipped = skipped
	if res.Feasible {
		for i, it := range items {
			if it.decoy {
				continue
			}
			ok := true
			for c, t := range res.Thresholds {
				if !passes(t.Column, it.values[c], t.Value) {
					ok = false
					break
				}
			}
			if ok {
				res.Passing[names[i]] = true
			}
		}
	}
	return res, nil
}

func run(ctx context.Context, items []item, units int, columns []Column, cfg Config, what string) (*Result, error) {
	decoyUnits := make(map[int]bool)
	targetUnits := make(map[int]bool)
	for _, it := range items {
		if it.decoy {
			decoyUnits[it.unit] = true
		} else {
			targetUnits[it.unit] = true
		}
	}
	if len(decoyUnits) < cfg.MinDecoys {
		return nil, &core.InsufficientDataError{What: "decoy " + what, Need: cfg.MinDecoys, Have: len(decoyUnits)}
	}
	if len(targetUnits) == 0 {
		return nil, &core.InsufficientDataError{What: "target " + what, Need: 1, Have: 0}
	}

	g := newGrid(items, units, columns, cfg)
	best, err := g.search(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Passing: make(map[string]bool)}
	if best.idx == nil {
		return res, nil
	}
	res.Feasible = true
	res.Targets = best.targets
	res.Decoys = best.decoys
	res.FDR = best.fdr
	for c, j := range best.idx {
		res.Thresholds = append(res.Thresholds, Threshold{Column: columns[c], Value: g.candidates[c][j]})
	}
	return res, nil
}
