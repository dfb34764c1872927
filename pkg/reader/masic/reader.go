// Package masic reads MASIC reporter ion tables and reshapes their wide rows, one
// column per channel, into long reporter intensity records.
package masic

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/reader/tsv"
)

// Column names of the MASIC ReporterIons output
const (
	ColDataset      = "Dataset"
	ColScan         = "ScanNumber"
	ColInterference = "InterferenceScore"
	IonPrefix       = "Ion_"
	SNSuffix        = "_SignalToNoise"
)

// Options configures parsing
type Options struct {
	DatasetID string // Used when the table has no Dataset column
}

// Reader streams the reporter rows of one scan at a time
type Reader struct {
	t        *tsv.Reader
	opts     Options
	channels []string // sorted
	current  []core.ReporterIntensity
	err      error
}

// NewReader reads the header and discovers the reporter channels
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	t, err := tsv.NewReader(r, ColScan)
	if err != nil {
		return nil, err
	}
	if !t.Has(ColDataset) && opts.DatasetID == "" {
		return nil, fmt.Errorf("table has no %s column and no dataset was given", ColDataset)
	}

	rd := &Reader{t: t, opts: opts}
	for _, name := range t.Header() {
		if strings.HasPrefix(name, IonPrefix) && !strings.HasSuffix(name, SNSuffix) && !strings.Contains(name, "_Resolution") {
			rd.channels = append(rd.channels, strings.TrimPrefix(name, IonPrefix))
		}
	}
	if len(rd.channels) == 0 {
		return nil, fmt.Errorf("no %s<channel> columns found", IonPrefix)
	}
	sort.Strings(rd.channels)
	return rd, nil
}

// Channels returns the channels found in the header, sorted
func (r *Reader) Channels() []string {
	return r.channels
}

// Next advances to the next scan. Returns false when no more scans or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil || !r.t.Next() {
		if r.err == nil {
			r.err = r.t.Err()
		}
		return false
	}
	rows, err := r.parseRow()
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.t.Line(), err)
		return false
	}
	r.current = rows
	return true
}

// Rows returns the long records of the current scan, one per channel with a value
func (r *Reader) Rows() []core.ReporterIntensity {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll collects the long records of every scan
func ReadAll(rd io.Reader, opts Options) ([]core.ReporterIntensity, error) {
	r, err := NewReader(rd, opts)
	if err != nil {
		return nil, err
	}
	var out []core.ReporterIntensity
	for r.Next() {
		out = append(out, r.Rows()...)
	}
	return out, r.Err()
}

func (r *Reader) parseRow() ([]core.ReporterIntensity, error) {
	scan, err := strconv.Atoi(r.t.Field(ColScan))
	if err != nil {
		return nil, fmt.Errorf("invalid scan: %w", err)
	}
	dataset := r.t.Field(ColDataset)
	if dataset == "" {
		dataset = r.opts.DatasetID
	}

	interference := 1.0 // no interference reported
	if v := r.t.Field(ColInterference); v != "" {
		if interference, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColInterference, err)
		}
	}

	out := make([]core.ReporterIntensity, 0, len(r.channels))
	for _, ch := range r.channels {
		v := r.t.Field(IonPrefix + ch)
		if v == "" {
			continue
		}
		intensity, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid intensity for channel %s: %w", ch, err)
		}
		var sn float64
		if s := r.t.Field(IonPrefix + ch + SNSuffix); s != "" {
			if sn, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("invalid signal to noise for channel %s: %w", ch, err)
			}
		}
		rec := core.ReporterIntensity{
			DatasetID:         dataset,
			ScanID:            scan,
			Channel:           ch,
			Intensity:         intensity,
			InterferenceScore: interference,
			SignalToNoise:     sn,
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
