package ident

import (
	"errors"
	"testing"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/google/go-cmp/cmp"
)

func fixture() []core.PSM {
	return []core.PSM{
		{DatasetID: "d1", ScanID: 1, Peptide: "K.AAAK.L", Accessions: []string{"P1"}, Scores: map[string]float64{"q": 0.001, "ppm": 2}},
		{DatasetID: "d1", ScanID: 2, Peptide: "K.AAAK.L", Accessions: []string{"P1"}, Scores: map[string]float64{"q": 0.02, "ppm": -1}},
		{DatasetID: "d1", ScanID: 3, Peptide: "R.CCCR.A", Accessions: []string{"P1", "P2"}, Scores: map[string]float64{"q": 0.005, "ppm": 12}},
		{DatasetID: "d2", ScanID: 1, Peptide: "R.DDDR.A", Accessions: []string{"XXX_P3"}, IsDecoy: true, Scores: map[string]float64{"q": 0.004, "ppm": -3}},
		{DatasetID: "d2", ScanID: 2, Peptide: "R.EEER.A", Accessions: []string{"P4"}, Scores: map[string]float64{"ppm": 1}},
	}
}

func mustStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(fixture())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestNewStoreRejectsInvalid(t *testing.T) {
	records := fixture()
	records[2].Peptide = ""
	_, err := NewStore(records)
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("NewStore() error = %v, want *ValidationError", err)
	}
}

func TestShow(t *testing.T) {
	s := mustStore(t)
	got := s.Show()
	want := Summary{Stage: "active", PSMs: 5, Peptides: 4, Accessions: 4}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Show() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyFilterIsNonDestructive(t *testing.T) {
	s := mustStore(t)
	sum := s.ApplyFilter("q <= 0.01", ScoreAtMost("q", 0.01, false))

	if sum.Stage != "q <= 0.01" || sum.PSMs != 3 {
		t.Errorf("ApplyFilter() summary = %+v", sum)
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	if diff := cmp.Diff([]int{0, 2, 3}, s.ActiveIndices()); diff != "" {
		t.Errorf("ActiveIndices() mismatch (-want +got):\n%s", diff)
	}

	s.ApplyFilter("target", NonDecoy)
	if diff := cmp.Diff([]int{0, 2}, s.ActiveIndices()); diff != "" {
		t.Errorf("ActiveIndices() after second filter (-want +got):\n%s", diff)
	}
	if len(s.Filters()) != 2 {
		t.Errorf("Filters() = %d, want 2", len(s.Filters()))
	}
}

func TestFilterOrderIndependence(t *testing.T) {
	filters := []Filter{
		{"q", ScoreAtMost("q", 0.01, false)},
		{"ppm", ScoreAtMost("ppm", 10, true)},
		{"target", NonDecoy},
	}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}

	var want []int
	for i, order := range orders {
		s := mustStore(t)
		for _, j := range order {
			s.ApplyFilter(filters[j].Name, filters[j].Keep)
		}
		got := s.ActiveIndices()
		if i == 0 {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("order %v changed the active set (-want +got):\n%s", order, diff)
		}
	}
	if diff := cmp.Diff([]int{0}, want); diff != "" {
		t.Errorf("active set mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterIdempotent(t *testing.T) {
	s := mustStore(t)
	s.ApplyFilter("target", NonDecoy)
	once := s.ActiveIndices()
	s.ApplyFilter("target", NonDecoy)
	if diff := cmp.Diff(once, s.ActiveIndices()); diff != "" {
		t.Errorf("repeated filter changed the view (-want +got):\n%s", diff)
	}
}

func TestPredicates(t *testing.T) {
	ascore := 12.0
	low := 3.0
	p := &core.PSM{Accessions: []string{"A", "B"}, Scores: map[string]float64{"ppm": -7}}

	if !ScoreAtMost("ppm", 8, true)(p) || ScoreAtMost("ppm", 6, true)(p) {
		t.Error("ScoreAtMost with abs misbehaves")
	}
	if ScoreAtMost("missing", 1, false)(p) {
		t.Error("missing score must not pass")
	}
	if !ScoreAtLeast("ppm", -8)(p) {
		t.Error("ScoreAtLeast misbehaves")
	}
	if !InAccessions(map[string]bool{"B": true})(p) {
		t.Error("InAccessions should match a candidate")
	}
	p.Accession = "A"
	if InAccessions(map[string]bool{"B": true})(p) {
		t.Error("InAccessions should use the inferred accession")
	}
	if !Inferred(p) {
		t.Error("Inferred should pass after assignment")
	}
	if !MinAScore(10)(p) {
		t.Error("PSM without AScore should pass")
	}
	p.AScore = &ascore
	if !MinAScore(10)(p) {
		t.Error("AScore 12 should pass 10")
	}
	p.AScore = &low
	if MinAScore(10)(p) {
		t.Error("AScore 3 should fail 10")
	}
}

func TestPeptides(t *testing.T) {
	s := mustStore(t)
	s.ApplyFilter("target", NonDecoy)
	if diff := cmp.Diff([]string{"AAAK", "CCCR", "EEER"}, s.Peptides()); diff != "" {
		t.Errorf("Peptides() mismatch (-want +got):\n%s", diff)
	}
}
