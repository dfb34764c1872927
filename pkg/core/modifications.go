// Package core provides modification marker parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Modification is a modified residue within a peptide.
type Modification struct {
	Position int    // 0-based index into the clean peptide sequence
	Marker   rune   // In-line marker character as written after the residue
	Name     string // Modification name (e.g., "Phospho", "Oxidation")
	Mass     float64
}

// ModDefinition describes what an in-line marker stands for.
type ModDefinition struct {
	Name string
	Mass float64
}

// ModDatabase maps in-line marker characters to modification definitions
type ModDatabase struct {
	mods map[rune]ModDefinition
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[rune]ModDefinition),
	}
}

// LoadFromCSV loads markers from a CSV file (format: marker,name,massshift)
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			return fmt.Errorf("line %d: invalid format, expected 3 comma-separated fields", lineNum)
		}

		marker := strings.TrimSpace(parts[0])
		if utf8.RuneCountInString(marker) != 1 {
			return fmt.Errorf("line %d: marker '%s' must be a single character", lineNum, marker)
		}
		m, _ := utf8.DecodeRuneInString(marker)
		if isResidue(m) {
			return fmt.Errorf("line %d: marker '%s' collides with a residue letter", lineNum, marker)
		}

		massStr := strings.TrimSpace(parts[2])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.mods[m] = ModDefinition{Name: strings.TrimSpace(parts[1]), Mass: mass}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Get returns the definition for a marker
func (db *ModDatabase) Get(marker rune) (ModDefinition, bool) {
	def, ok := db.mods[marker]
	return def, ok
}

// Add adds or updates a marker definition
func (db *ModDatabase) Add(marker rune, name string, mass float64) {
	db.mods[marker] = ModDefinition{Name: name, Mass: mass}
}

// Peptide is a peptide split into its clean residue sequence and modifications.
type Peptide struct {
	Sequence      string
	Modifications []Modification
}

// StripFlanks removes search engine flanking residues, "K.PEPTIDE.R" -> "PEPTIDE".
func StripFlanks(peptide string) string {
	n := len(peptide)
	if n >= 4 && peptide[1] == '.' && peptide[n-2] == '.' {
		return peptide[2 : n-2]
	}
	return peptide
}

// CleanSequence strips flanks and every non-residue character.
func CleanSequence(peptide string) string {
	core := StripFlanks(peptide)
	var b strings.Builder
	b.Grow(len(core))
	for _, r := range core {
		if isResidue(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse splits an annotated peptide such as "K.VL*AAG.R" into its clean sequence and
// the modifications carried by the markers. A marker applies to the residue before it;
// a marker preceding the first residue applies to the first residue.
func (db *ModDatabase) Parse(peptide string) (Peptide, error) {
	core := StripFlanks(peptide)

	var seq strings.Builder
	var mods []Modification
	for _, r := range core {
		if isResidue(r) {
			seq.WriteRune(r)
			continue
		}
		def, ok := db.mods[r]
		if !ok {
			return Peptide{}, fmt.Errorf("unknown modification marker '%c' in %s", r, peptide)
		}
		pos := seq.Len() - 1
		if pos < 0 {
			pos = 0
		}
		mods = append(mods, Modification{Position: pos, Marker: r, Name: def.Name, Mass: def.Mass})
	}

	if seq.Len() == 0 {
		return Peptide{}, fmt.Errorf("peptide %s has no residues", peptide)
	}
	return Peptide{Sequence: seq.String(), Modifications: mods}, nil
}

func isResidue(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// DefaultModDatabase returns a ModDatabase pre-loaded with the usual marker conventions
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	db.Add('*', "Phospho", 79.966331)
	db.Add('#', "Oxidation", 15.994915)
	db.Add('@', "Acetyl", 42.010565)
	db.Add('!', "GlyGly", 114.042927)
	db.Add('+', "TMT", 229.162932)

	return db
}
