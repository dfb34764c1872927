// Package design reads the three study design tables: fractions, samples and references.
package design

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/design"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/tsv"
)

// Column names of the design tables
const (
	ColDataset         = "Dataset"
	ColPlexID          = "PlexID"
	ColQuantBlock      = "QuantBlock"
	ColReporterName    = "ReporterName"
	ColReporterAlias   = "ReporterAlias"
	ColMeasurementName = "MeasurementName"
	ColReference       = "Reference"
)

// schemaErr turns table level problems into a SchemaError for the relation
func schemaErr(relation string, row int, err error) error {
	var serr *core.SchemaError
	if errors.As(err, &serr) {
		return err
	}
	return &core.SchemaError{Relation: relation, Row: row, Message: err.Error()}
}

func quantBlock(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	b, err := strconv.Atoi(s)
	if err != nil || b < 1 {
		return 0, fmt.Errorf("invalid quant block %q", s)
	}
	return b, nil
}

// ReadFractions reads the Fractions table
func ReadFractions(r io.Reader) ([]design.Fraction, error) {
	t, err := tsv.NewReader(r, ColDataset, ColPlexID)
	if err != nil {
		return nil, schemaErr(design.RelFractions, 0, err)
	}
	var out []design.Fraction
	for t.Next() {
		out = append(out, design.Fraction{DatasetID: t.Field(ColDataset), PlexID: t.Field(ColPlexID)})
	}
	if err := t.Err(); err != nil {
		return nil, schemaErr(design.RelFractions, 0, err)
	}
	return out, nil
}

// ReadSamples reads the Samples table. An empty or "NA" measurement name marks a
// reference-only channel.
func ReadSamples(r io.Reader) ([]design.Sample, error) {
	t, err := tsv.NewReader(r, ColPlexID, ColReporterName, ColReporterAlias, ColMeasurementName)
	if err != nil {
		return nil, schemaErr(design.RelSamples, 0, err)
	}
	var out []design.Sample
	for t.Next() {
		block, err := quantBlock(t.Field(ColQuantBlock))
		if err != nil {
			return nil, schemaErr(design.RelSamples, t.Row(), err)
		}
		name := t.Field(ColMeasurementName)
		if strings.EqualFold(name, "NA") {
			name = ""
		}
		out = append(out, design.Sample{
			PlexID:          t.Field(ColPlexID),
			Channel:         t.Field(ColReporterName),
			MeasurementName: name,
			ReporterAlias:   t.Field(ColReporterAlias),
			QuantBlock:      block,
		})
	}
	if err := t.Err(); err != nil {
		return nil, schemaErr(design.RelSamples, 0, err)
	}
	return out, nil
}

// ReadReferences reads the References table
func ReadReferences(r io.Reader) ([]design.Reference, error) {
	t, err := tsv.NewReader(r, ColPlexID, ColReference)
	if err != nil {
		return nil, schemaErr(design.RelReferences, 0, err)
	}
	var out []design.Reference
	for t.Next() {
		block, err := quantBlock(t.Field(ColQuantBlock))
		if err != nil {
			return nil, schemaErr(design.RelReferences, t.Row(), err)
		}
		out = append(out, design.Reference{
			PlexID:     t.Field(ColPlexID),
			QuantBlock: block,
			Expression: t.Field(ColReference),
		})
	}
	if err := t.Err(); err != nil {
		return nil, schemaErr(design.RelReferences, 0, err)
	}
	return out, nil
}

// Files names the three design tables on disk
type Files struct {
	Fractions  string
	Samples    string
	References string
}

// Load reads the three tables and builds the validated model
func Load(files Files) (*design.Model, error) {
	fractions, err := readFile(files.Fractions, ReadFractions)
	if err != nil {
		return nil, err
	}
	samples, err := readFile(files.Samples, ReadSamples)
	if err != nil {
		return nil, err
	}
	refs, err := readFile(files.References, ReadReferences)
	if err != nil {
		return nil, err
	}
	return design.NewModel(fractions, samples, refs)
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open design table: %w", err)
	}
	defer fh.Close()
	return read(fh)
}
