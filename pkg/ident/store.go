// Package ident holds the identification store: the full PSM set of a run plus the
// ordered, non-destructive filters layered over it.
package ident

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// Predicate decides whether a PSM stays in the active view.
type Predicate func(p *core.PSM) bool

// Filter is a named predicate as recorded in the store.
type Filter struct {
	Name string
	Keep Predicate
}

// Summary holds diagnostic counts for a view of the store.
type Summary struct {
	Stage      string
	PSMs       int
	Peptides   int
	Accessions int
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d PSMs, %d peptides, %d accessions", s.Stage, s.PSMs, s.Peptides, s.Accessions)
}

// Store holds every PSM of a run. Rows are never removed; filters only narrow the
// active view, so the order in which they are applied does not change the final set.
// A Store is not safe for concurrent appends.
type Store struct {
	records []core.PSM
	filters []Filter
}

// NewStore validates and takes ownership of the records.
func NewStore(records []core.PSM) (*Store, error) {
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return &Store{records: records}, nil
}

// Len returns the number of records regardless of filters.
func (s *Store) Len() int {
	return len(s.records)
}

// Record returns the record at index i of the full set.
func (s *Store) Record(i int) *core.PSM {
	return &s.records[i]
}

// Filters returns the applied filters in application order.
func (s *Store) Filters() []Filter {
	out := make([]Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// ApplyFilter appends a predicate and returns the summary of the narrowed view.
func (s *Store) ApplyFilter(name string, keep Predicate) Summary {
	s.filters = append(s.filters, Filter{Name: name, Keep: keep})
	sum := s.Show()
	sum.Stage = name
	return sum
}

// Active reports whether record i satisfies every applied filter.
func (s *Store) Active(i int) bool {
	p := &s.records[i]
	for _, f := range s.filters {
		if !f.Keep(p) {
			return false
		}
	}
	return true
}

// ActiveIndices returns the indices of active records in record order.
func (s *Store) ActiveIndices() []int {
	var idx []int
	for i := range s.records {
		if s.Active(i) {
			idx = append(idx, i)
		}
	}
	return idx
}

// ActiveRows returns pointers to the active records in record order. Annotations written
// through the pointers are visible to later stages.
func (s *Store) ActiveRows() []*core.PSM {
	var rows []*core.PSM
	for i := range s.records {
		if s.Active(i) {
			rows = append(rows, &s.records[i])
		}
	}
	return rows
}

// Show summarizes the active view.
func (s *Store) Show() Summary {
	peptides := make(map[string]bool)
	accessions := make(map[string]bool)
	n := 0
	for _, p := range s.ActiveRows() {
		n++
		peptides[p.Sequence()] = true
		for _, a := range p.EffectiveAccessions() {
			accessions[a] = true
		}
	}
	return Summary{Stage: "active", PSMs: n, Peptides: len(peptides), Accessions: len(accessions)}
}

// Peptides returns the distinct clean sequences of the active view, sorted.
func (s *Store) Peptides() []string {
	seen := make(map[string]bool)
	for _, p := range s.ActiveRows() {
		seen[p.Sequence()] = true
	}
	out := make([]string, 0, len(seen))
	for pep := range seen {
		out = append(out, pep)
	}
	sort.Strings(out)
	return out
}
