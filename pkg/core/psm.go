// Package core provides the record types shared by every PlexQuant stage: peptide-spectrum
// matches, reporter ion intensities, protein sites and the error taxonomy.
package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Score column names filled in by PlexQuant itself.
const (
	ScoreMassErrorPPM = "MassErrorPPM"
)

// SiteStatus describes the outcome of mapping a PSM's modifications onto its protein.
type SiteStatus string

const (
	SiteUnmapped   SiteStatus = ""
	SiteMapped     SiteStatus = "mapped"
	SiteUnmodified SiteStatus = "unmodified"
	SiteUnresolved SiteStatus = "unresolved" // accession missing from the reference set
	SiteNoMatch    SiteStatus = "nomatch"    // peptide absent from the accession sequence
)

// PSM is a single peptide-spectrum match together with the annotations that the
// filtering, inference and site mapping stages attach to it.
type PSM struct {
	// Identification
	ScanID     int
	DatasetID  string
	Peptide    string   // As reported; may carry flanking residues and modification markers
	Accessions []string // Candidate accessions before inference
	IsDecoy    bool
	Scores     map[string]float64

	// Optional identification metadata
	AScore      *float64
	PrecursorMZ float64
	Charge      int

	// Annotations
	Accession     string // Inferred accession, empty until inference has run
	Sites         []Site
	SiteID        string
	SiteStatus    SiteStatus
	SiteAmbiguous bool // Peptide occurs more than once in the accession sequence
}

// Site is a modified residue expressed in protein coordinates.
type Site struct {
	Accession    string
	Position     int // 1-based position in the protein sequence
	Residue      byte
	Modification string
}

// Label renders the site as residue, position and lowercase residue, e.g. "S12s".
func (s Site) Label() string {
	r := string(s.Residue)
	return fmt.Sprintf("%s%d%s", r, s.Position, strings.ToLower(r))
}

// SiteID joins sites of one accession into a composite identifier such as "P1-S12sT15t".
// Sites are ordered by position.
func SiteID(accession string, sites []Site) string {
	if len(sites) == 0 {
		return ""
	}
	sorted := make([]Site, len(sites))
	copy(sorted, sites)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	var b strings.Builder
	b.WriteString(accession)
	b.WriteByte('-')
	for _, s := range sorted {
		b.WriteString(s.Label())
	}
	return b.String()
}

// ValidationError represents an error found during record validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Validate checks that a PSM carries what the pipeline needs.
func (p *PSM) Validate() error {
	var errs []string

	if p.DatasetID == "" {
		errs = append(errs, "dataset is required")
	}
	if p.Peptide == "" {
		errs = append(errs, "peptide is required")
	}
	if len(p.Accessions) == 0 {
		errs = append(errs, "at least one accession is required")
	}
	for name, v := range p.Scores {
		if math.IsNaN(v) {
			errs = append(errs, fmt.Sprintf("score %s is NaN", name))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "PSM " + p.Name(),
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

// Name returns the PSM name in format "Dataset:Scan".
func (p *PSM) Name() string {
	return fmt.Sprintf("%s:%d", p.DatasetID, p.ScanID)
}

// Sequence returns the peptide with flanks and modification markers removed.
func (p *PSM) Sequence() string {
	return CleanSequence(p.Peptide)
}

// EffectiveAccessions returns the inferred accession once set, otherwise all candidates.
func (p *PSM) EffectiveAccessions() []string {
	if p.Accession != "" {
		return []string{p.Accession}
	}
	return p.Accessions
}

// Score returns a named score and whether the PSM carries it.
func (p *PSM) Score(name string) (float64, bool) {
	v, ok := p.Scores[name]
	return v, ok
}

// SetScore stores a named score, allocating the map on first use.
func (p *PSM) SetScore(name string, v float64) {
	if p.Scores == nil {
		p.Scores = make(map[string]float64)
	}
	p.Scores[name] = v
}

// SplitAccessions splits a multi-valued accession field, dropping blanks and duplicates
// while keeping first-seen order.
func SplitAccessions(field, sep string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range strings.Split(field, sep) {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
