// Package inference resolves peptides shared between protein accessions to a single
// accession per peptide.
package inference

import (
	"sort"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// Graph is the bipartite peptide/accession relation kept as two adjacency maps.
type Graph struct {
	pepToAcc map[string]map[string]bool
	accToPep map[string]map[string]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		pepToAcc: make(map[string]map[string]bool),
		accToPep: make(map[string]map[string]bool),
	}
}

// FromPSMs builds the graph from the clean sequences and candidate accessions of PSMs.
func FromPSMs(psms []*core.PSM) *Graph {
	g := NewGraph()
	for _, p := range psms {
		seq := p.Sequence()
		for _, acc := range p.Accessions {
			g.Add(seq, acc)
		}
	}
	return g
}

// Add links a peptide to an accession.
func (g *Graph) Add(peptide, accession string) {
	if g.pepToAcc[peptide] == nil {
		g.pepToAcc[peptide] = make(map[string]bool)
	}
	if g.accToPep[accession] == nil {
		g.accToPep[accession] = make(map[string]bool)
	}
	g.pepToAcc[peptide][accession] = true
	g.accToPep[accession][peptide] = true
}

// Retain drops every accession not in keep, then every peptide left without an accession,
// and returns the number of accessions dropped.
func (g *Graph) Retain(keep map[string]bool) int {
	dropped := 0
	for acc, peps := range g.accToPep {
		if keep[acc] {
			continue
		}
		for pep := range peps {
			delete(g.pepToAcc[pep], acc)
			if len(g.pepToAcc[pep]) == 0 {
				delete(g.pepToAcc, pep)
			}
		}
		delete(g.accToPep, acc)
		dropped++
	}
	return dropped
}

// Peptides returns all peptides, sorted.
func (g *Graph) Peptides() []string {
	return sortedKeys(g.pepToAcc)
}

// Accessions returns all accessions, sorted.
func (g *Graph) Accessions() []string {
	return sortedKeys(g.accToPep)
}

// AccessionsOf returns the candidate accessions of a peptide, sorted.
func (g *Graph) AccessionsOf(peptide string) []string {
	return sortedSet(g.pepToAcc[peptide])
}

// PeptidesOf returns the peptides linked to an accession, sorted.
func (g *Graph) PeptidesOf(accession string) []string {
	return sortedSet(g.accToPep[accession])
}

// Expand links every peptide to each reference accession whose sequence contains it and
// returns the number of links added.
func (g *Graph) Expand(references map[string]string) int {
	accessions := make([]string, 0, len(references))
	for acc := range references {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)

	added := 0
	for _, pep := range g.Peptides() {
		for _, acc := range accessions {
			if g.pepToAcc[pep][acc] {
				continue
			}
			if strings.Contains(references[acc], pep) {
				g.Add(pep, acc)
				added++
			}
		}
	}
	return added
}

func sortedKeys(m map[string]map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
