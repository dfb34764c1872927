package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStripFlanks(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"K.PEPTIDE.R", "PEPTIDE"},
		{"-.MPEPTIDE.-", "MPEPTIDE"},
		{"PEPTIDE", "PEPTIDE"},
		{"K.AB", "K.AB"},
	}
	for _, tt := range tests {
		if got := StripFlanks(tt.in); got != tt.want {
			t.Errorf("StripFlanks(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanSequence(t *testing.T) {
	if got := CleanSequence("R.S*PEPT#IDE.K"); got != "SPEPTIDE" {
		t.Errorf("CleanSequence() = %q, want SPEPTIDE", got)
	}
}

func TestParse(t *testing.T) {
	db := DefaultModDatabase()

	tests := []struct {
		name    string
		peptide string
		want    Peptide
		wantErr bool
	}{
		{
			name:    "unmodified",
			peptide: "K.VLAAG.R",
			want:    Peptide{Sequence: "VLAAG"},
		},
		{
			name:    "single phospho",
			peptide: "VL*AAG",
			want: Peptide{
				Sequence:      "VLAAG",
				Modifications: []Modification{{Position: 1, Marker: '*', Name: "Phospho", Mass: 79.966331}},
			},
		},
		{
			name:    "two markers",
			peptide: "K.S*AM#T*K.L",
			want: Peptide{
				Sequence: "SAMTK",
				Modifications: []Modification{
					{Position: 0, Marker: '*', Name: "Phospho", Mass: 79.966331},
					{Position: 2, Marker: '#', Name: "Oxidation", Mass: 15.994915},
					{Position: 3, Marker: '*', Name: "Phospho", Mass: 79.966331},
				},
			},
		},
		{
			name:    "leading marker goes to first residue",
			peptide: "@MAAK",
			want: Peptide{
				Sequence:      "MAAK",
				Modifications: []Modification{{Position: 0, Marker: '@', Name: "Acetyl", Mass: 42.010565}},
			},
		},
		{
			name:    "unknown marker",
			peptide: "PEP%TIDE",
			wantErr: true,
		},
		{
			name:    "no residues",
			peptide: "**",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Parse(tt.peptide)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFromCSV(t *testing.T) {
	csv := "marker,name,mass\n$,Methyl,14.01565\n\n^,Sulfo,79.956815\n"
	db := NewModDatabase()
	if err := db.LoadFromCSV(strings.NewReader(csv)); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}
	def, ok := db.Get('$')
	if !ok || def.Name != "Methyl" {
		t.Errorf("Get('$') = %+v, %v", def, ok)
	}

	bad := []string{
		"marker,name,mass\nS,Bad,1.0\n",
		"marker,name,mass\n$$,Bad,1.0\n",
		"marker,name,mass\n$,Bad,heavy\n",
		"marker,name,mass\n$,Bad\n",
	}
	for _, in := range bad {
		if err := NewModDatabase().LoadFromCSV(strings.NewReader(in)); err == nil {
			t.Errorf("LoadFromCSV(%q) expected error", in)
		}
	}
}
