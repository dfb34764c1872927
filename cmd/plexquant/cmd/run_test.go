package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PlexQuant/pkg/fdr"
)

func TestParseColumns(t *testing.T) {
	got, err := parseColumns([]string{"MSGFDB_SpecEValue:lower", "MassErrorPPM:lower:abs", "AScore:higher"})
	if err != nil {
		t.Fatalf("parseColumns() error = %v", err)
	}
	want := []fdr.Column{
		{Name: "MSGFDB_SpecEValue", Direction: fdr.LowerIsBetter},
		{Name: "MassErrorPPM", Direction: fdr.LowerIsBetter, Absolute: true},
		{Name: "AScore", Direction: fdr.HigherIsBetter},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"Score", ":lower", "Score:sideways", "Score:lower:log", "a:b:c:d"} {
		if _, err := parseColumns([]string{bad}); err == nil {
			t.Errorf("parseColumns(%q) expected error", bad)
		}
	}
}
