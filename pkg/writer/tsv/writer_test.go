package tsv

import (
	"bytes"
	"testing"

	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
)

func TestWriteMatrix(t *testing.T) {
	m := &crosstab.Matrix{
		Rows:    []string{"PROT_A", "PROT_B"},
		Columns: []string{"S1", "S2"},
		Cells: [][]crosstab.Cell{
			{{Value: 0.5, Valid: true}, {}},
			{{Value: 1.25, Valid: true}, {Value: 2, Valid: true}},
		},
	}
	var buf bytes.Buffer
	if err := WriteMatrix(&buf, m); err != nil {
		t.Fatalf("WriteMatrix() error = %v", err)
	}
	want := "Feature\tS1\tS2\nPROT_A\t0.5\tNA\nPROT_B\t1.25\t2\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteMatrix() = %q, want %q", got, want)
	}
}
