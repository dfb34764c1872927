package inference

import (
	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
)

// DefaultMaxIterations bounds the reassignment loop.
const DefaultMaxIterations = 50

// Options configures resolution
type Options struct {
	UniqueOnly    bool // Discard shared peptides instead of assigning them
	MaxIterations int  // 0 = DefaultMaxIterations
}

// Result maps every kept peptide to exactly one accession.
type Result struct {
	Assignment map[string]string // peptide -> accession
	Discarded  []string          // shared peptides dropped in unique-only mode, sorted
	Iterations int
	Converged  bool
}

// Resolve assigns each peptide of g to one accession with a greedy heuristic:
//
//  1. count, per accession, the peptides that map to it alone;
//  2. keep the accessions with at least one such peptide;
//  3. give each shared peptide to its kept accession with the highest count, or to the
//     highest-count candidate when none of its candidates is kept;
//  4. break ties by the alphanumerically first accession;
//  5. recount with the assignment and repeat until no peptide moves.
//
// This approximates a minimum set cover and is not guaranteed to be globally minimal.
// When the loop has not settled after MaxIterations rounds the assignment of the first
// round, which depends on unique peptides only, is returned with Converged unset.
func Resolve(g *Graph, opts Options) *Result {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	peptides := g.Peptides()
	candidates := make(map[string][]string, len(peptides))
	for _, pep := range peptides {
		candidates[pep] = g.AccessionsOf(pep)
	}

	unique := make(map[string]int)
	for _, pep := range peptides {
		if c := candidates[pep]; len(c) == 1 {
			unique[c[0]]++
		}
	}

	res := &Result{Assignment: make(map[string]string)}
	if opts.UniqueOnly {
		for _, pep := range peptides {
			if c := candidates[pep]; len(c) == 1 {
				res.Assignment[pep] = c[0]
			} else {
				res.Discarded = append(res.Discarded, pep)
			}
		}
		res.Converged = true
		return res
	}

	first := assign(peptides, candidates, unique)
	current := first
	for res.Iterations = 1; res.Iterations <= opts.MaxIterations; res.Iterations++ {
		next := assign(peptides, candidates, tally(current))
		if sameAssignment(current, next) {
			res.Converged = true
			break
		}
		current = next
	}
	if !res.Converged {
		res.Iterations = opts.MaxIterations
		current = first
	}
	res.Assignment = current
	return res
}

func assign(peptides []string, candidates map[string][]string, counts map[string]int) map[string]string {
	out := make(map[string]string, len(peptides))
	for _, pep := range peptides {
		cands := candidates[pep]
		if len(cands) == 1 {
			out[pep] = cands[0]
			continue
		}

		var kept []string
		for _, acc := range cands {
			if counts[acc] > 0 {
				kept = append(kept, acc)
			}
		}
		if len(kept) == 0 {
			kept = cands
		}

		// candidates are sorted, so the first maximum is the alphanumeric tie-break
		best := kept[0]
		for _, acc := range kept[1:] {
			if counts[acc] > counts[best] {
				best = acc
			}
		}
		out[pep] = best
	}
	return out
}

func tally(assignment map[string]string) map[string]int {
	counts := make(map[string]int)
	for _, acc := range assignment {
		counts[acc]++
	}
	return counts
}

func sameAssignment(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Graph returns the resolved relation, one accession per kept peptide.
func (r *Result) Graph() *Graph {
	g := NewGraph()
	for pep, acc := range r.Assignment {
		g.Add(pep, acc)
	}
	return g
}

// Accessions returns the number of distinct accessions in the assignment.
func (r *Result) Accessions() int {
	return len(tally(r.Assignment))
}

// Apply writes the inferred accession onto the active PSMs of the store and narrows the
// view to assigned PSMs.
func (r *Result) Apply(s *ident.Store) ident.Summary {
	for _, p := range s.ActiveRows() {
		p.Accession = r.Assignment[p.Sequence()]
	}
	return s.ApplyFilter("parsimony", func(p *core.PSM) bool {
		return p.Accession != "" && r.Assignment[p.Sequence()] == p.Accession
	})
}
