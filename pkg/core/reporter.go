package core

import (
	"fmt"
	"math"
	"strings"
)

// ReporterIntensity is one reporter ion channel measurement for a scan.
type ReporterIntensity struct {
	ScanID            int
	DatasetID         string
	Channel           string
	Intensity         float64
	InterferenceScore float64 // 1 means no co-isolated interference
	SignalToNoise     float64
}

// ScanKey identifies a spectrum across datasets.
type ScanKey struct {
	DatasetID string
	ScanID    int
}

// Key returns the scan the measurement belongs to.
func (r *ReporterIntensity) Key() ScanKey {
	return ScanKey{DatasetID: r.DatasetID, ScanID: r.ScanID}
}

// Key returns the scan the identification belongs to.
func (p *PSM) Key() ScanKey {
	return ScanKey{DatasetID: p.DatasetID, ScanID: p.ScanID}
}

// Validate checks value ranges of a reporter measurement.
func (r *ReporterIntensity) Validate() error {
	var errs []string

	if r.DatasetID == "" {
		errs = append(errs, "dataset is required")
	}
	if r.Channel == "" {
		errs = append(errs, "channel is required")
	}
	if math.IsNaN(r.Intensity) || r.Intensity < 0 {
		errs = append(errs, "intensity must be non-negative")
	}
	if math.IsNaN(r.InterferenceScore) || r.InterferenceScore < 0 || r.InterferenceScore > 1 {
		errs = append(errs, "interference score must be within [0,1]")
	}
	if math.IsNaN(r.SignalToNoise) || r.SignalToNoise < 0 {
		errs = append(errs, "signal to noise must be non-negative")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   fmt.Sprintf("reporter %s:%d/%s", r.DatasetID, r.ScanID, r.Channel),
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}
