package core

import (
	"fmt"
	"strings"
)

// InsufficientDataError reports that too few records exist to estimate a statistic.
type InsufficientDataError struct {
	What string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s: need at least %d, have %d", e.What, e.Need, e.Have)
}

// NoMatchError reports a peptide that does not occur in its accession's sequence.
type NoMatchError struct {
	Peptide   string
	Accession string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("peptide %s not found in %s", e.Peptide, e.Accession)
}

// UnknownResidueError reports a residue without an elemental composition, such as the
// ambiguity codes B, Z and X.
type UnknownResidueError struct {
	Residue  rune
	Sequence string
}

func (e *UnknownResidueError) Error() string {
	return fmt.Sprintf("no composition for residue '%c' in %s", e.Residue, e.Sequence)
}

// SchemaError reports an inconsistent study design relation. Row is 1-based;
// zero means the problem is not tied to one row.
type SchemaError struct {
	Relation string
	Row      int
	Message  string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("schema error in %s row %d: %s", e.Relation, e.Row, e.Message)
	}
	return fmt.Sprintf("schema error in %s: %s", e.Relation, e.Message)
}

// AmbiguousSiteWarning is a non-fatal report of a peptide matching its accession at
// several offsets. The lowest offset is used.
type AmbiguousSiteWarning struct {
	Peptide   string
	Accession string
	Offsets   []int // 0-based start offsets, ascending
}

func (e *AmbiguousSiteWarning) Error() string {
	offs := make([]string, len(e.Offsets))
	for i, o := range e.Offsets {
		offs[i] = fmt.Sprint(o + 1)
	}
	return fmt.Sprintf("peptide %s matches %s at positions %s", e.Peptide, e.Accession, strings.Join(offs, ","))
}
