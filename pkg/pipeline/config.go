// Package pipeline runs the quantification stages in order: mass error annotation, FDR
// filtering, protein inference, site mapping, reporter QC and crosstab aggregation.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
	"github.com/ChrisMcGann/PlexQuant/pkg/fdr"
	"github.com/ChrisMcGann/PlexQuant/pkg/inference"
	"github.com/ChrisMcGann/PlexQuant/pkg/reporter"
)

// FDRLevel selects which FDR searches run.
type FDRLevel string

const (
	FDRNone    FDRLevel = "none"
	FDRPeptide FDRLevel = "peptide"
	FDRProtein FDRLevel = "protein"
	FDRBoth    FDRLevel = "both"
)

// ParseFDRLevel validates a level name.
func ParseFDRLevel(s string) (FDRLevel, error) {
	switch l := FDRLevel(strings.ToLower(s)); l {
	case FDRNone, FDRPeptide, FDRProtein, FDRBoth:
		return l, nil
	}
	return "", fmt.Errorf("unknown FDR level %q (want none, peptide, protein or both)", s)
}

func (l FDRLevel) peptide() bool { return l == FDRPeptide || l == FDRBoth }
func (l FDRLevel) protein() bool { return l == FDRProtein || l == FDRBoth }

// Score columns written by the PSM reader.
const (
	ScoreSpecEValue = "MSGFDB_SpecEValue"
	ScorePepQValue  = "PepQValue"
)

// Config holds every setting of a run
type Config struct {
	// Identification filtering
	FDR      fdr.Config
	FDRLevel FDRLevel

	// Inference
	UniqueOnly           bool
	ExpandFromReferences bool
	MaxIterations        int

	// Sites
	MapSites    bool
	SiteMarkers string  // Markers mapped to sites; empty maps every marker
	MinAScore   float64 // 0 = no AScore filter

	// Reporter ions
	QC reporter.Thresholds

	// Aggregation
	Key       crosstab.Key
	Statistic crosstab.Statistic
}

// DefaultConfig returns the settings of a typical phosphoproteome TMT run
func DefaultConfig() Config {
	return Config{
		FDR: fdr.Config{
			Target: 0.01,
			Columns: []fdr.Column{
				{Name: ScoreSpecEValue, Direction: fdr.LowerIsBetter},
				{Name: core.ScoreMassErrorPPM, Direction: fdr.LowerIsBetter, Absolute: true},
			},
			DecoyRatio:  1,
			DecoyPrefix: fdr.DefaultDecoyPrefix,
		},
		FDRLevel:      FDRPeptide,
		MaxIterations: inference.DefaultMaxIterations,
		MapSites:      true,
		SiteMarkers:   "*",
		Key:           crosstab.Key{crosstab.FieldAccession},
		Statistic:     crosstab.StatSum,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if _, err := ParseFDRLevel(string(c.FDRLevel)); err != nil {
		return err
	}
	if c.FDRLevel != FDRNone {
		if err := c.FDR.Validate(); err != nil {
			return fmt.Errorf("fdr: %w", err)
		}
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be non-negative")
	}
	if c.MinAScore < 0 {
		return fmt.Errorf("minimum AScore must be non-negative")
	}
	if err := c.QC.Validate(); err != nil {
		return fmt.Errorf("reporter QC: %w", err)
	}
	if err := (crosstab.Options{Key: c.Key, Statistic: c.Statistic}).Validate(); err != nil {
		return fmt.Errorf("aggregation: %w", err)
	}
	for _, f := range c.Key {
		if f == crosstab.FieldSite && !c.MapSites {
			return fmt.Errorf("aggregation by site requires site mapping")
		}
	}
	return nil
}
