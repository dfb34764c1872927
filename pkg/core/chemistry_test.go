package core

import (
	"errors"
	"math"
	"testing"
)

func TestNeutralMass(t *testing.T) {
	tests := []struct {
		name      string
		peptide   Peptide
		wantMass  float64
		tolerance float64
		wantErr   bool
	}{
		{
			name:      "simple tripeptide",
			peptide:   Peptide{Sequence: "AAA"},
			wantMass:  231.121, // Approximate neutral mass
			tolerance: 0.01,
		},
		{
			name: "with modification",
			peptide: Peptide{
				Sequence:      "AAA",
				Modifications: []Modification{{Position: 0, Mass: 57.021464}},
			},
			wantMass:  288.143, // Approximate
			tolerance: 0.01,
		},
		{
			name:      "selenocysteine",
			peptide:   Peptide{Sequence: "AUA"},
			wantMass:  2*71.03711 + 150.95364 + 18.01056,
			tolerance: 0.001,
		},
		{
			name:    "unknown residue",
			peptide: Peptide{Sequence: "AXA"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NeutralMass(tt.peptide)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NeutralMass() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if math.Abs(got-tt.wantMass) > tt.tolerance {
				t.Errorf("NeutralMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMass, tt.tolerance)
			}
		})
	}
}

func TestTheoreticalMZ(t *testing.T) {
	mass, err := NeutralMass(Peptide{Sequence: "AAA"})
	if err != nil {
		t.Fatal(err)
	}
	if got := TheoreticalMZ(mass, 1); math.Abs(got-232.129) > 0.01 {
		t.Errorf("charge 1 m/z = %.3f, want 232.129", got)
	}
	if got := TheoreticalMZ(mass, 2); math.Abs(got-116.568) > 0.01 {
		t.Errorf("charge 2 m/z = %.3f, want 116.568", got)
	}
}

func TestMassErrorPPM(t *testing.T) {
	const neutral = 1000.0
	tests := []struct {
		name     string
		observed float64 // neutral mass that was measured
		charge   int
		want     float64
	}{
		{"exact", neutral, 2, 0},
		{"plus 10 ppm", neutral + 0.01, 2, 10},
		{"minus 5 ppm", neutral - 0.005, 3, -5},
		{"second isotope picked", neutral + 2*C13Delta + 0.002, 2, 2},
		{"isotope below monoisotopic", neutral - C13Delta, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mz := TheoreticalMZ(tt.observed, tt.charge)
			got := MassErrorPPM(mz, tt.charge, neutral)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("MassErrorPPM() = %.4f, want %.4f", got, tt.want)
			}
		})
	}
}

func TestAnnotateMassError(t *testing.T) {
	db := DefaultModDatabase()
	pep, err := db.Parse("K.AAS*A.R")
	if err != nil {
		t.Fatal(err)
	}
	neutral, err := NeutralMass(pep)
	if err != nil {
		t.Fatal(err)
	}

	p := &PSM{Peptide: "K.AAS*A.R", Charge: 2, PrecursorMZ: TheoreticalMZ(neutral*(1+4e-6), 2)}
	ok, err := AnnotateMassError(p, db)
	if err != nil || !ok {
		t.Fatalf("AnnotateMassError() = %v, %v", ok, err)
	}
	got, _ := p.Score(ScoreMassErrorPPM)
	if math.Abs(got-4) > 1e-3 {
		t.Errorf("mass error = %.4f, want 4", got)
	}

	// An existing value is left alone.
	ok, err = AnnotateMassError(p, db)
	if err != nil || ok {
		t.Errorf("second AnnotateMassError() = %v, %v, want false, nil", ok, err)
	}

	// Ambiguity codes have no composition.
	amb := &PSM{Peptide: "K.PEPXK.R", Charge: 2, PrecursorMZ: 400}
	ok, err = AnnotateMassError(amb, db)
	var rerr *UnknownResidueError
	if ok || !errors.As(err, &rerr) || rerr.Residue != 'X' {
		t.Errorf("AnnotateMassError(PEPXK) = %v, %v, want *UnknownResidueError for X", ok, err)
	}
	if _, has := amb.Score(ScoreMassErrorPPM); has {
		t.Error("mass error stored for a peptide with an unknown residue")
	}

	// No precursor information means nothing to compute.
	bare := &PSM{Peptide: "AAA"}
	if ok, _ := AnnotateMassError(bare, db); ok {
		t.Error("expected no annotation without precursor m/z")
	}
}
