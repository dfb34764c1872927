package crosstab

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// Field is one PSM attribute usable in an aggregation key.
type Field string

const (
	FieldAccession Field = "accession"
	FieldPeptide   Field = "peptide"
	FieldSite      Field = "site"
	FieldDataset   Field = "dataset"
)

// KeySeparator joins the parts of a composite key.
const KeySeparator = "@"

// Key is an ordered list of fields whose values form a matrix row name.
type Key []Field

// ParseKey parses a comma separated field list such as "peptide,accession".
func ParseKey(s string) (Key, error) {
	var k Key
	for _, part := range strings.Split(s, ",") {
		f := Field(strings.ToLower(strings.TrimSpace(part)))
		switch f {
		case FieldAccession, FieldPeptide, FieldSite, FieldDataset:
			k = append(k, f)
		default:
			return nil, fmt.Errorf("unknown aggregation field %q", part)
		}
	}
	return k, nil
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, f := range k {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// Value renders the key of a PSM. It reports false when any part is empty, as for
// PSMs without an inferred accession or a mapped site.
func (k Key) Value(p *core.PSM) (string, bool) {
	parts := make([]string, len(k))
	for i, f := range k {
		var v string
		switch f {
		case FieldAccession:
			v = p.Accession
		case FieldPeptide:
			v = p.Sequence()
		case FieldSite:
			v = p.SiteID
		case FieldDataset:
			v = p.DatasetID
		}
		if v == "" {
			return "", false
		}
		parts[i] = v
	}
	return strings.Join(parts, KeySeparator), true
}

// Statistic summarizes the normalized ratios of one matrix cell.
type Statistic string

const (
	StatSum     Statistic = "sum"
	StatMedian  Statistic = "median"
	StatMeanLog Statistic = "mean-log" // mean of log2 ratios, reported on the log2 scale
)

// ParseStatistic validates a statistic name.
func ParseStatistic(s string) (Statistic, error) {
	switch st := Statistic(strings.ToLower(s)); st {
	case StatSum, StatMedian, StatMeanLog:
		return st, nil
	}
	return "", fmt.Errorf("unknown summary statistic %q (want sum, median or mean-log)", s)
}

// Summarize applies the statistic to the defined ratios. It reports false when no
// usable ratio remains.
func (st Statistic) Summarize(ratios []float64) (float64, bool) {
	var xs []float64
	for _, r := range ratios {
		if math.IsNaN(r) {
			continue
		}
		if st == StatMeanLog {
			if r <= 0 {
				continue
			}
			r = math.Log2(r)
		}
		xs = append(xs, r)
	}
	if len(xs) == 0 {
		return 0, false
	}

	switch st {
	case StatMedian:
		sort.Float64s(xs)
		mid := len(xs) / 2
		if len(xs)%2 == 1 {
			return xs[mid], true
		}
		return (xs[mid-1] + xs[mid]) / 2, true
	case StatMeanLog:
		return stat.Mean(xs, nil), true
	default:
		return floats.Sum(xs), true
	}
}
