package crosstab

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/design"
	"github.com/ChrisMcGann/PlexQuant/pkg/reporter"
	"github.com/google/go-cmp/cmp"
)

func studyModel(t *testing.T) *design.Model {
	t.Helper()
	m, err := design.NewModel(
		[]design.Fraction{{DatasetID: "ds1", PlexID: "P1"}, {DatasetID: "ds2", PlexID: "P2"}},
		[]design.Sample{
			{PlexID: "P1", Channel: "126", MeasurementName: "S1", ReporterAlias: "126"},
			{PlexID: "P1", Channel: "127N", MeasurementName: "S2", ReporterAlias: "127N"},
			{PlexID: "P1", Channel: "130", ReporterAlias: "R1"},
			{PlexID: "P1", Channel: "131", ReporterAlias: "R2"},
			{PlexID: "P2", Channel: "126", MeasurementName: "S3", ReporterAlias: "a1", QuantBlock: 1},
			{PlexID: "P2", Channel: "127", ReporterAlias: "r1", QuantBlock: 1},
			{PlexID: "P2", Channel: "128", MeasurementName: "S4", ReporterAlias: "a2", QuantBlock: 2},
			{PlexID: "P2", Channel: "129", ReporterAlias: "r2", QuantBlock: 2},
		},
		[]design.Reference{
			{PlexID: "P1", Expression: "(R1 + R2)/2"},
			{PlexID: "P2", QuantBlock: 1, Expression: "r1"},
			{PlexID: "P2", QuantBlock: 2, Expression: "r2"},
		},
	)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	return m
}

func scanRows(ds string, scan int, intensities map[string]float64) []core.ReporterIntensity {
	var out []core.ReporterIntensity
	for ch, v := range intensities {
		out = append(out, core.ReporterIntensity{DatasetID: ds, ScanID: scan, Channel: ch, Intensity: v, InterferenceScore: 1, SignalToNoise: 10})
	}
	return out
}

func fixture(t *testing.T) ([]*core.PSM, *reporter.Table) {
	t.Helper()
	psms := []*core.PSM{
		{DatasetID: "ds1", ScanID: 1, Peptide: "K.AAAK.L", Accession: "PROT1"},
		{DatasetID: "ds1", ScanID: 2, Peptide: "K.CCCK.L", Accession: "PROT1"},
		{DatasetID: "ds1", ScanID: 3, Peptide: "K.DDDK.L", Accession: "PROT2"},
		{DatasetID: "ds1", ScanID: 4, Peptide: "K.EEEK.L"},
		{DatasetID: "ds9", ScanID: 1, Peptide: "K.FFFK.L", Accession: "PROT1"},
		{DatasetID: "ds1", ScanID: 99, Peptide: "K.GGGK.L", Accession: "PROT1"},
		{DatasetID: "ds2", ScanID: 1, Peptide: "K.HHHK.L", Accession: "PROT3"},
	}

	var rows []core.ReporterIntensity
	rows = append(rows, scanRows("ds1", 1, map[string]float64{"126": 100, "127N": 50, "130": 200, "131": 200})...)
	rows = append(rows, scanRows("ds1", 2, map[string]float64{"126": 300, "127N": 150, "130": 100, "131": 300, "132": 7})...)
	rows = append(rows, scanRows("ds1", 3, map[string]float64{"126": 10, "127N": 20, "130": 0, "131": 0})...)
	rows = append(rows, scanRows("ds1", 4, map[string]float64{"126": 10, "127N": 20, "130": 5, "131": 5})...)
	rows = append(rows, scanRows("ds2", 1, map[string]float64{"126": 10, "127": 5, "128": 30, "129": 10})...)

	table, err := reporter.NewTable(rows)
	if err != nil {
		t.Fatal(err)
	}
	return psms, table
}

func cell(t *testing.T, m *Matrix, row, col string) Cell {
	t.Helper()
	c, ok := m.Get(row, col)
	if !ok {
		t.Fatalf("no cell %s/%s", row, col)
	}
	return c
}

func TestAggregateSum(t *testing.T) {
	psms, table := fixture(t)
	m, diag, err := Aggregate(psms, table, studyModel(t), Options{Key: Key{FieldAccession}, Statistic: StatSum})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if diff := cmp.Diff([]string{"PROT1", "PROT2", "PROT3"}, m.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S1", "S2", "S3", "S4"}, m.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}

	// 100/200 + 300/200
	if c := cell(t, m, "PROT1", "S1"); !c.Valid || math.Abs(c.Value-2.0) > 1e-12 {
		t.Errorf("PROT1/S1 = %+v, want 2.0", c)
	}
	if c := cell(t, m, "PROT1", "S2"); !c.Valid || math.Abs(c.Value-1.0) > 1e-12 {
		t.Errorf("PROT1/S2 = %+v, want 1.0", c)
	}
	// zero reference: null, not zero and not an error
	if c := cell(t, m, "PROT2", "S1"); c.Valid {
		t.Errorf("PROT2/S1 = %+v, want null", c)
	}
	// separate quant blocks use separate references
	if c := cell(t, m, "PROT3", "S3"); !c.Valid || c.Value != 2 {
		t.Errorf("PROT3/S3 = %+v, want 2", c)
	}
	if c := cell(t, m, "PROT3", "S4"); !c.Valid || c.Value != 3 {
		t.Errorf("PROT3/S4 = %+v, want 3", c)
	}
	// missing combination stays null
	if c := cell(t, m, "PROT1", "S3"); c.Valid {
		t.Errorf("PROT1/S3 = %+v, want null", c)
	}

	want := &Diagnostics{
		PSMs: 7, NoKey: 1, UnknownDataset: 1, NoReporter: 1, UnknownChannel: 1,
		Ratios: 8, NullRatios: 2, Rows: 3, Columns: 4, PopulatedCells: 4,
	}
	if diff := cmp.Diff(want, diag); diff != "" {
		t.Errorf("Diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateStatistics(t *testing.T) {
	psms, table := fixture(t)
	tests := []struct {
		stat Statistic
		want float64
	}{
		{StatSum, 2.0},
		{StatMedian, 1.0},
		{StatMeanLog, (math.Log2(0.5) + math.Log2(1.5)) / 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.stat), func(t *testing.T) {
			m, _, err := Aggregate(psms, table, studyModel(t), Options{Key: Key{FieldAccession}, Statistic: tt.stat})
			if err != nil {
				t.Fatal(err)
			}
			if c := cell(t, m, "PROT1", "S1"); !c.Valid || math.Abs(c.Value-tt.want) > 1e-12 {
				t.Errorf("PROT1/S1 = %+v, want %v", c, tt.want)
			}
		})
	}
}

func TestAggregateCompositeKey(t *testing.T) {
	psms, table := fixture(t)
	m, _, err := Aggregate(psms, table, studyModel(t), Options{Key: Key{FieldPeptide, FieldAccession}, Statistic: StatSum})
	if err != nil {
		t.Fatal(err)
	}
	if c := cell(t, m, "AAAK@PROT1", "S1"); !c.Valid || c.Value != 0.5 {
		t.Errorf("AAAK@PROT1/S1 = %+v, want 0.5", c)
	}
	if c := cell(t, m, "CCCK@PROT1", "S1"); !c.Valid || c.Value != 1.5 {
		t.Errorf("CCCK@PROT1/S1 = %+v, want 1.5", c)
	}
}

func TestAggregateQCFilteredReference(t *testing.T) {
	psms, table := fixture(t)
	// No reporter row survives, so nothing joins.
	filtered := table.Filter(reporter.Thresholds{MinSignalToNoise: 11})
	m, diag, err := Aggregate(psms, filtered, studyModel(t), Options{Key: Key{FieldAccession}, Statistic: StatSum})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Rows) != 0 || diag.NoReporter != 5 {
		t.Errorf("rows = %v, diagnostics = %+v", m.Rows, diag)
	}
}

func TestUnknownAliasFailsBeforeAggregation(t *testing.T) {
	_, err := design.NewModel(
		[]design.Fraction{{DatasetID: "ds1", PlexID: "P1"}},
		[]design.Sample{{PlexID: "P1", Channel: "126", MeasurementName: "S1", ReporterAlias: "126"}},
		[]design.Reference{{PlexID: "P1", Expression: "mean(126, R9)"}},
	)
	var serr *core.SchemaError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want *SchemaError", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := (Options{Statistic: StatSum}).Validate(); err == nil {
		t.Error("expected error for empty key")
	}
	if err := (Options{Key: Key{FieldSite}, Statistic: "mode"}).Validate(); err == nil {
		t.Error("expected error for unknown statistic")
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Peptide, accession")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Key{FieldPeptide, FieldAccession}, k); diff != "" {
		t.Errorf("ParseKey() mismatch (-want +got):\n%s", diff)
	}
	if k.String() != "peptide,accession" {
		t.Errorf("String() = %q", k.String())
	}
	if _, err := ParseKey("gene"); err == nil {
		t.Error("expected error for unknown field")
	}

	p := &core.PSM{DatasetID: "d", Peptide: "K.S*EK.L", Accession: "P1", SiteID: "P1-S5s"}
	if v, ok := (Key{FieldSite}).Value(p); !ok || v != "P1-S5s" {
		t.Errorf("site key = %q, %v", v, ok)
	}
	if v, ok := (Key{FieldDataset, FieldPeptide}).Value(p); !ok || v != "d@SEK" {
		t.Errorf("dataset,peptide key = %q, %v", v, ok)
	}
	p.SiteID = ""
	if _, ok := (Key{FieldSite}).Value(p); ok {
		t.Error("PSM without site should have no site key")
	}
}

func TestSummarize(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		stat   Statistic
		ratios []float64
		want   float64
		valid  bool
	}{
		{StatSum, []float64{0.5, nan, 1.5}, 2, true},
		{StatSum, []float64{nan}, 0, false},
		{StatMedian, []float64{3, 1, 2}, 2, true},
		{StatMedian, []float64{4, 1, 2, 3}, 2.5, true},
		{StatMeanLog, []float64{2, 8}, 2, true},
		{StatMeanLog, []float64{0, nan}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.stat.Summarize(tt.ratios)
		if ok != tt.valid || (ok && math.Abs(got-tt.want) > 1e-12) {
			t.Errorf("%s.Summarize(%v) = %v, %v; want %v, %v", tt.stat, tt.ratios, got, ok, tt.want, tt.valid)
		}
	}
	if _, err := ParseStatistic("MEDIAN"); err != nil {
		t.Errorf("ParseStatistic(MEDIAN) error = %v", err)
	}
}
