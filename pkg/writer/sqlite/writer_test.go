package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
	"github.com/ChrisMcGann/PlexQuant/pkg/crosstab"
	"github.com/ChrisMcGann/PlexQuant/pkg/ident"
)

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	store, err := ident.NewStore([]core.PSM{
		{DatasetID: "ds1", ScanID: 1, Peptide: "K.VLS*AGR.Q", Accessions: []string{"PROT_A"}, Accession: "PROT_A",
			SiteID: "PROT_A-S5s", SiteStatus: core.SiteMapped, Scores: map[string]float64{"MSGFDB_SpecEValue": 1e-10}},
		{DatasetID: "ds1", ScanID: 2, Peptide: "K.RGASLV.K", Accessions: []string{"XXX_PROT_A"}, IsDecoy: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	store.ApplyFilter("non-decoy", ident.NonDecoy)

	m := &crosstab.Matrix{
		Rows:    []string{"PROT_A", "PROT_B"},
		Columns: []string{"S1", "S2"},
		Cells: [][]crosstab.Cell{
			{{Value: 0.5, Valid: true}, {}},
			{{Value: 1.5, Valid: true}, {Value: 2, Valid: true}},
		},
	}

	if err := w.WriteStore(store); err != nil {
		t.Fatalf("WriteStore() error = %v", err)
	}
	if err := w.WriteMatrix(m); err != nil {
		t.Fatalf("WriteMatrix() error = %v", err)
	}
	if err := w.WriteStages([]ident.Summary{{Stage: "input", PSMs: 2}, {Stage: "non-decoy", PSMs: 1}}); err != nil {
		t.Fatalf("WriteStages() error = %v", err)
	}
	if err := w.Finalize("test run"); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	counts := []struct {
		query string
		want  int
	}{
		{"SELECT COUNT(*) FROM PSMTable", 1},
		{"SELECT COUNT(*) FROM ScoreTable", 1},
		{"SELECT COUNT(*) FROM CrosstabTable", 4},
		{"SELECT COUNT(*) FROM CrosstabTable WHERE Value IS NULL", 1},
		{"SELECT COUNT(*) FROM StageTable", 2},
		{"SELECT COUNT(*) FROM HeaderTable", 1},
	}
	for _, c := range counts {
		var got int
		if err := db.QueryRow(c.query).Scan(&got); err != nil {
			t.Fatalf("%s: %v", c.query, err)
		}
		if got != c.want {
			t.Errorf("%s = %d, want %d", c.query, got, c.want)
		}
	}

	var seq, site string
	if err := db.QueryRow("SELECT Sequence, SiteId FROM PSMTable").Scan(&seq, &site); err != nil {
		t.Fatal(err)
	}
	if seq != "VLSAGR" || site != "PROT_A-S5s" {
		t.Errorf("PSM row = %s, %s", seq, site)
	}

	var stage string
	if err := db.QueryRow("SELECT Stage FROM StageTable WHERE StageOrder = 2").Scan(&stage); err != nil {
		t.Fatal(err)
	}
	if stage != "non-decoy" {
		t.Errorf("stage 2 = %s, want non-decoy", stage)
	}
}

func TestWritePSMScoreOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	p := &core.PSM{DatasetID: "ds1", ScanID: 1, Peptide: "K.VLSAGR.Q", Accessions: []string{"PROT_A"},
		Scores: map[string]float64{"PepQValue": 0.001, "MassErrorPPM": -2.5, "MSGFDB_SpecEValue": 1e-10, "AScore": 19}}
	if err := w.WritePSM(p); err != nil {
		t.Fatalf("WritePSM() error = %v", err)
	}
	if err := w.Finalize("scores"); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows, err := db.Query("SELECT Name FROM ScoreTable ORDER BY rowid")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	want := []string{"AScore", "MSGFDB_SpecEValue", "MassErrorPPM", "PepQValue"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScoreTable order mismatch (-want +got):\n%s", diff)
	}
}
