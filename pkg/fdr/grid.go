package fdr

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// item is one search observation: a PSM at peptide level or an accession at protein level.
type item struct {
	unit   int // counting unit the item belongs to
	decoy  bool
	values []float64 // one per column, already made absolute where requested; NaN when missing
}

// grid is the threshold space of one search.
type grid struct {
	columns    []Column
	candidates [][]float64 // per column, tightest first
	ranks      [][]int     // per item, per column: first candidate index the item passes
	sweep      []int       // item indices ordered by their first-column rank
	items      []item
	units      int
	decoyRatio float64
	target     float64
}

type choice struct {
	idx     []int
	targets int
	decoys  int
	fdr     float64
}

// better reports whether a beats b: more targets, then lower FDR, then the tighter
// candidate tuple.
func (a choice) better(b choice) bool {
	if b.idx == nil {
		return true
	}
	if a.targets != b.targets {
		return a.targets > b.targets
	}
	if a.fdr != b.fdr {
		return a.fdr < b.fdr
	}
	for i := range a.idx {
		if a.idx[i] != b.idx[i] {
			return a.idx[i] < b.idx[i]
		}
	}
	return false
}

func passes(c Column, v, threshold float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if c.Direction == HigherIsBetter {
		return v >= threshold
	}
	return v <= threshold
}

// candidateValues returns the distinct observed values of column c ordered from the
// tightest to the loosest threshold, reduced to at most limit empirical quantiles when
// limit is above 1.
// The loosest value is always kept.
func candidateValues(items []item, col int, c Column, limit int) []float64 {
	var vals []float64
	for _, it := range items {
		if v := it.values[col]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)
	distinct := vals[:1]
	for _, v := range vals[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}

	if limit > 1 && len(distinct) > limit {
		reduced := make([]float64, 0, limit)
		for i := 0; i < limit; i++ {
			p := float64(i) / float64(limit-1)
			q := stat.Quantile(p, stat.Empirical, distinct, nil)
			if len(reduced) == 0 || q != reduced[len(reduced)-1] {
				reduced = append(reduced, q)
			}
		}
		if last := distinct[len(distinct)-1]; reduced[len(reduced)-1] != last {
			reduced = append(reduced, last)
		}
		distinct = reduced
	}

	if c.Direction == HigherIsBetter {
		for i, j := 0, len(distinct)-1; i < j; i, j = i+1, j-1 {
			distinct[i], distinct[j] = distinct[j], distinct[i]
		}
	}
	return distinct
}

func newGrid(items []item, units int, columns []Column, cfg Config) *grid {
	g := &grid{
		columns:    columns,
		items:      items,
		units:      units,
		decoyRatio: cfg.DecoyRatio,
		target:     cfg.Target,
	}

	// The first column is swept over every observed value. The others stay exact while
	// their product fits MaxCombinations and are reduced to quantiles otherwise.
	g.candidates = make([][]float64, len(columns))
	g.candidates[0] = candidateValues(items, 0, columns[0], 0)
	product := 1
	for c := 1; c < len(columns); c++ {
		g.candidates[c] = candidateValues(items, c, columns[c], 0)
		product *= max(len(g.candidates[c]), 1)
		if product > cfg.MaxCombinations {
			product = cfg.MaxCombinations + 1
		}
	}
	if product > cfg.MaxCombinations {
		perColumn := cfg.MaxCandidates
		if root := int(math.Pow(float64(cfg.MaxCombinations), 1/float64(len(columns)-1))); root < perColumn {
			perColumn = root
		}
		perColumn = max(perColumn, 2)
		for c := 1; c < len(columns); c++ {
			g.candidates[c] = candidateValues(items, c, columns[c], perColumn)
		}
	}

	g.ranks = make([][]int, len(items))
	for i, it := range items {
		r := make([]int, len(columns))
		for c, col := range columns {
			cands := g.candidates[c]
			r[c] = len(cands)
			v := it.values[c]
			if math.IsNaN(v) {
				continue
			}
			// candidates are ordered tightest first, so the passing ones form a suffix
			r[c] = sort.Search(len(cands), func(j int) bool { return passes(col, v, cands[j]) })
		}
		g.ranks[i] = r
	}

	// items in the order they start passing the first column; items that never pass are left out
	for i, r := range g.ranks {
		if r[0] < len(g.candidates[0]) {
			g.sweep = append(g.sweep, i)
		}
	}
	sort.SliceStable(g.sweep, func(a, b int) bool {
		return g.ranks[g.sweep[a]][0] < g.ranks[g.sweep[b]][0]
	})
	return g
}

// passesRest reports whether item i passes the thresholds of every column but the first.
func (g *grid) passesRest(i int, idx []int) bool {
	r := g.ranks[i]
	for c := 1; c < len(idx); c++ {
		if r[c] > idx[c] {
			return false
		}
	}
	return true
}

func (g *grid) estimate(targets, decoys int) float64 {
	if targets == 0 {
		return math.Inf(1)
	}
	return float64(decoys) / float64(targets) / g.decoyRatio
}

// sweepFirst fixes the thresholds of the later columns to idx[1:] and loosens the first
// column one candidate at a time, adding the units that start passing. seen is a
// per-worker scratch slice of length units, stamped with stamp.
func (g *grid) sweepFirst(idx []int, seen []int, stamp int) choice {
	var local choice
	targets, decoys := 0, 0
	k := 0
	for j := range g.candidates[0] {
		for ; k < len(g.sweep) && g.ranks[g.sweep[k]][0] == j; k++ {
			i := g.sweep[k]
			if !g.passesRest(i, idx) {
				continue
			}
			it := g.items[i]
			if seen[it.unit] == stamp {
				continue
			}
			seen[it.unit] = stamp
			if it.decoy {
				decoys++
			} else {
				targets++
			}
		}
		fdr := g.estimate(targets, decoys)
		if targets == 0 || fdr > g.target {
			continue
		}
		idx[0] = j
		c := choice{idx: append([]int(nil), idx...), targets: targets, decoys: decoys, fdr: fdr}
		if c.better(local) {
			local = c
		}
	}
	return local
}

// search walks the full candidate product: every combination of the later columns is a
// task sweeping the first column. The merge is independent of scheduling.
func (g *grid) search(ctx context.Context) (choice, error) {
	for _, cands := range g.candidates {
		if len(cands) == 0 {
			return choice{}, nil
		}
	}

	var combos [][]int
	idx := make([]int, len(g.candidates))
	for {
		combos = append(combos, append([]int(nil), idx...))
		if !g.next(idx) {
			break
		}
	}
	best := make([]choice, len(combos))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for ci, combo := range combos {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seen := make([]int, g.units)
			best[ci] = g.sweepFirst(combo, seen, 1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return choice{}, err
	}

	var overall choice
	for _, c := range best {
		if c.idx != nil && c.better(overall) {
			overall = c
		}
	}
	return overall, nil
}

// next advances idx over every column but the first, odometer style.
func (g *grid) next(idx []int) bool {
	for c := len(idx) - 1; c >= 1; c-- {
		idx[c]++
		if idx[c] < len(g.candidates[c]) {
			return true
		}
		idx[c] = 0
	}
	return false
}
