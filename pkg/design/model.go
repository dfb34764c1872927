// Package design describes how datasets, plexes, reporter channels and samples relate in
// a multiplexed study, and which reference each channel is normalized against.
package design

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// DefaultQuantBlock is used for samples and references that do not name a block.
const DefaultQuantBlock = 1

// Relation names used in schema errors.
const (
	RelFractions  = "Fractions"
	RelSamples    = "Samples"
	RelReferences = "References"
)

// Fraction assigns a dataset to a plex.
type Fraction struct {
	DatasetID string
	PlexID    string
}

// Sample assigns a reporter channel of a plex to a measurement. An empty
// MeasurementName marks a reference-only channel.
type Sample struct {
	PlexID          string
	Channel         string
	MeasurementName string
	ReporterAlias   string
	QuantBlock      int // 0 = DefaultQuantBlock
}

// Reference gives the normalization expression of a plex and quant block.
type Reference struct {
	PlexID     string
	QuantBlock int // 0 = DefaultQuantBlock
	Expression string
}

// GroupKey identifies a set of channels sharing one reference.
type GroupKey struct {
	PlexID     string
	QuantBlock int
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%d", k.PlexID, k.QuantBlock)
}

type plexChannel struct {
	plex, channel string
}

// Model is a validated study design.
type Model struct {
	plexOf       map[string]string
	samples      map[plexChannel]Sample
	references   map[GroupKey]Expr
	aliases      map[string]map[string]bool
	measurements []string
}

func block(b int) int {
	if b == 0 {
		return DefaultQuantBlock
	}
	return b
}

// NewModel validates the three relations and parses every reference expression. Any
// inconsistency is returned as a *core.SchemaError naming the relation and row.
func NewModel(fractions []Fraction, samples []Sample, references []Reference) (*Model, error) {
	m := &Model{
		plexOf:     make(map[string]string),
		samples:    make(map[plexChannel]Sample),
		references: make(map[GroupKey]Expr),
	}

	aliases := make(map[string]map[string]bool)
	blocks := make(map[GroupKey]bool)
	measured := make(map[string]int)
	for i, s := range samples {
		row := i + 1
		s.QuantBlock = block(s.QuantBlock)
		switch {
		case s.PlexID == "" || s.Channel == "" || s.ReporterAlias == "":
			return nil, &core.SchemaError{Relation: RelSamples, Row: row, Message: "plex, channel and reporter alias are required"}
		case s.QuantBlock < 0:
			return nil, &core.SchemaError{Relation: RelSamples, Row: row, Message: fmt.Sprintf("invalid quant block %d", s.QuantBlock)}
		}
		key := plexChannel{s.PlexID, s.Channel}
		if _, dup := m.samples[key]; dup {
			return nil, &core.SchemaError{Relation: RelSamples, Row: row, Message: fmt.Sprintf("duplicate channel %s in plex %s", s.Channel, s.PlexID)}
		}
		if aliases[s.PlexID] == nil {
			aliases[s.PlexID] = make(map[string]bool)
		}
		if aliases[s.PlexID][s.ReporterAlias] {
			return nil, &core.SchemaError{Relation: RelSamples, Row: row, Message: fmt.Sprintf("duplicate reporter alias %s in plex %s", s.ReporterAlias, s.PlexID)}
		}
		if s.MeasurementName != "" {
			if first, dup := measured[s.MeasurementName]; dup {
				return nil, &core.SchemaError{Relation: RelSamples, Row: row, Message: fmt.Sprintf("measurement %s already assigned in row %d", s.MeasurementName, first)}
			}
			measured[s.MeasurementName] = row
			m.measurements = append(m.measurements, s.MeasurementName)
		}
		aliases[s.PlexID][s.ReporterAlias] = true
		blocks[GroupKey{s.PlexID, s.QuantBlock}] = true
		m.samples[key] = s
	}
	if len(m.samples) == 0 {
		return nil, &core.SchemaError{Relation: RelSamples, Message: "no samples"}
	}
	m.aliases = aliases

	for i, f := range fractions {
		row := i + 1
		if f.DatasetID == "" || f.PlexID == "" {
			return nil, &core.SchemaError{Relation: RelFractions, Row: row, Message: "dataset and plex are required"}
		}
		if aliases[f.PlexID] == nil {
			return nil, &core.SchemaError{Relation: RelFractions, Row: row, Message: fmt.Sprintf("plex %s has no samples", f.PlexID)}
		}
		if prev, ok := m.plexOf[f.DatasetID]; ok && prev != f.PlexID {
			return nil, &core.SchemaError{Relation: RelFractions, Row: row, Message: fmt.Sprintf("dataset %s assigned to plexes %s and %s", f.DatasetID, prev, f.PlexID)}
		}
		m.plexOf[f.DatasetID] = f.PlexID
	}

	for i, r := range references {
		row := i + 1
		key := GroupKey{r.PlexID, block(r.QuantBlock)}
		if aliases[r.PlexID] == nil {
			return nil, &core.SchemaError{Relation: RelReferences, Row: row, Message: fmt.Sprintf("plex %s has no samples", r.PlexID)}
		}
		if _, dup := m.references[key]; dup {
			return nil, &core.SchemaError{Relation: RelReferences, Row: row, Message: fmt.Sprintf("duplicate reference for %s", key)}
		}
		expr, err := Parse(r.Expression, aliases[r.PlexID])
		if err != nil {
			var unknown *UnknownAliasError
			if errors.As(err, &unknown) {
				return nil, &core.SchemaError{Relation: RelReferences, Row: row, Message: fmt.Sprintf("%s not among the reporter aliases of plex %s", unknown, r.PlexID)}
			}
			return nil, &core.SchemaError{Relation: RelReferences, Row: row, Message: fmt.Sprintf("invalid expression %q: %v", r.Expression, err)}
		}
		m.references[key] = expr
	}

	for _, key := range sortedGroups(blocks) {
		if _, ok := m.references[key]; !ok {
			return nil, &core.SchemaError{Relation: RelReferences, Message: fmt.Sprintf("no reference for %s", key)}
		}
	}

	return m, nil
}

func sortedGroups(set map[GroupKey]bool) []GroupKey {
	out := make([]GroupKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlexID != out[j].PlexID {
			return out[i].PlexID < out[j].PlexID
		}
		return out[i].QuantBlock < out[j].QuantBlock
	})
	return out
}

// PlexOf returns the plex a dataset was acquired in.
func (m *Model) PlexOf(dataset string) (string, bool) {
	p, ok := m.plexOf[dataset]
	return p, ok
}

// Sample returns the sample row of a plex channel.
func (m *Model) Sample(plex, channel string) (Sample, bool) {
	s, ok := m.samples[plexChannel{plex, channel}]
	return s, ok
}

// Reference returns the parsed reference expression of a group.
func (m *Model) Reference(key GroupKey) (Expr, bool) {
	e, ok := m.references[key]
	return e, ok
}

// Groups returns every (plex, quant block) with a reference, sorted.
func (m *Model) Groups() []GroupKey {
	set := make(map[GroupKey]bool, len(m.references))
	for k := range m.references {
		set[k] = true
	}
	return sortedGroups(set)
}

// Aliases returns the reporter aliases of a plex.
func (m *Model) Aliases(plex string) map[string]bool {
	out := make(map[string]bool, len(m.aliases[plex]))
	for a := range m.aliases[plex] {
		out[a] = true
	}
	return out
}

// Measurements returns measurement names in Samples order.
func (m *Model) Measurements() []string {
	return append([]string(nil), m.measurements...)
}

// Datasets returns the datasets of the Fractions relation, sorted.
func (m *Model) Datasets() []string {
	out := make([]string, 0, len(m.plexOf))
	for d := range m.plexOf {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
