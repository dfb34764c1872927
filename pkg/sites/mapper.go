// Package sites projects peptide modification positions onto protein sequence coordinates.
package sites

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
)

// ErrUnknownAccession is returned when the reference set has no sequence for an accession.
var ErrUnknownAccession = errors.New("accession not in reference set")

// Mapper maps peptides against a fixed set of reference sequences.
type Mapper struct {
	refs    map[string]string
	db      *core.ModDatabase
	markers map[rune]bool // nil means every known marker defines a site
}

// NewMapper creates a mapper. markers lists the marker characters that define sites,
// for example "*" for phosphorylation; an empty string selects all markers.
func NewMapper(refs map[string]string, db *core.ModDatabase, markers string) *Mapper {
	if db == nil {
		db = core.DefaultModDatabase()
	}
	m := &Mapper{refs: refs, db: db}
	if markers != "" {
		m.markers = make(map[rune]bool)
		for _, r := range markers {
			m.markers[r] = true
		}
	}
	return m
}

// Mapping is the placement of one peptide in one accession.
type Mapping struct {
	Accession string
	Start     int // 0-based offset of the peptide in the accession sequence
	Sites     []core.Site
	SiteID    string
	Ambiguous *core.AmbiguousSiteWarning // set when the peptide occurs more than once
}

// MapPeptide places an annotated peptide in the accession sequence and converts its
// markers to sites. The first occurrence is used when the peptide repeats.
func (m *Mapper) MapPeptide(peptide, accession string) (*Mapping, error) {
	pep, err := m.db.Parse(peptide)
	if err != nil {
		return nil, err
	}
	ref, ok := m.refs[accession]
	if !ok {
		return nil, fmt.Errorf("%s: %w", accession, ErrUnknownAccession)
	}

	offsets := findAll(ref, pep.Sequence)
	if len(offsets) == 0 {
		return nil, &core.NoMatchError{Peptide: pep.Sequence, Accession: accession}
	}

	mp := &Mapping{Accession: accession, Start: offsets[0]}
	if len(offsets) > 1 {
		mp.Ambiguous = &core.AmbiguousSiteWarning{Peptide: pep.Sequence, Accession: accession, Offsets: offsets}
	}

	for _, mod := range pep.Modifications {
		if m.markers != nil && !m.markers[mod.Marker] {
			continue
		}
		pos := mp.Start + mod.Position + 1
		residue := ref[pos-1]
		if want := pep.Sequence[mod.Position]; residue != want {
			return nil, fmt.Errorf("%s position %d holds %c, peptide %s has %c", accession, pos, residue, peptide, want)
		}
		mp.Sites = append(mp.Sites, core.Site{
			Accession:    accession,
			Position:     pos,
			Residue:      residue,
			Modification: mod.Name,
		})
	}
	mp.SiteID = core.SiteID(accession, mp.Sites)
	return mp, nil
}

func findAll(s, sub string) []int {
	var out []int
	for from := 0; from <= len(s)-len(sub); {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			break
		}
		out = append(out, from+i)
		from += i + 1
	}
	return out
}

// Report summarizes a store-wide mapping run.
type Report struct {
	Mapped     int
	Unmodified int
	Unresolved int
	NoMatch    int
	Ambiguous  int
	Warnings   []error // non-fatal problems in record order
}

type outcome struct {
	index   int
	warning error
}

// MapStore annotates the active PSMs of the store with their sites. Accessions are mapped
// in parallel; each PSM is written by exactly one worker. A missing accession or a
// peptide absent from its accession is recorded on the PSM and in the report, never
// returned as an error.
func (m *Mapper) MapStore(s *ident.Store) (*Report, error) {
	groups := make(map[string][]int)
	for _, i := range s.ActiveIndices() {
		accs := s.Record(i).EffectiveAccessions()
		groups[accs[0]] = append(groups[accs[0]], i)
	}
	accessions := make([]string, 0, len(groups))
	for acc := range groups {
		accessions = append(accessions, acc)
	}
	sort.Strings(accessions)

	results := make([][]outcome, len(accessions))
	var eg errgroup.Group
	for gi, acc := range accessions {
		eg.Go(func() error {
			var out []outcome
			for _, i := range groups[acc] {
				w, err := m.annotate(s.Record(i), acc)
				if err != nil {
					return fmt.Errorf("PSM %s: %w", s.Record(i).Name(), err)
				}
				out = append(out, outcome{index: i, warning: w})
			}
			results[gi] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []outcome
	for _, r := range results {
		all = append(all, r...)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].index < all[b].index })

	rep := &Report{}
	for _, o := range all {
		p := s.Record(o.index)
		switch p.SiteStatus {
		case core.SiteMapped:
			rep.Mapped++
		case core.SiteUnmodified:
			rep.Unmodified++
		case core.SiteUnresolved:
			rep.Unresolved++
		case core.SiteNoMatch:
			rep.NoMatch++
		}
		if p.SiteAmbiguous {
			rep.Ambiguous++
		}
		if o.warning != nil {
			rep.Warnings = append(rep.Warnings, o.warning)
		}
	}
	return rep, nil
}

// annotate maps one PSM and returns the non-fatal warning it produced, if any.
func (m *Mapper) annotate(p *core.PSM, accession string) (warning error, err error) {
	p.Sites, p.SiteID, p.SiteAmbiguous = nil, "", false

	mp, err := m.MapPeptide(p.Peptide, accession)
	var nomatch *core.NoMatchError
	switch {
	case errors.Is(err, ErrUnknownAccession):
		p.SiteStatus = core.SiteUnresolved
		return err, nil
	case errors.As(err, &nomatch):
		p.SiteStatus = core.SiteNoMatch
		return err, nil
	case err != nil:
		return nil, err
	}

	p.Sites = mp.Sites
	p.SiteID = mp.SiteID
	p.SiteAmbiguous = mp.Ambiguous != nil
	if len(mp.Sites) == 0 {
		p.SiteStatus = core.SiteUnmodified
	} else {
		p.SiteStatus = core.SiteMapped
	}
	if mp.Ambiguous != nil {
		return mp.Ambiguous, nil
	}
	return nil, nil
}
