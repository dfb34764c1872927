package core

import (
	"math"
)

// Atomic masses (monoisotopic)
const (
	MassH  = 1.0078250321
	MassC  = 12.0000000000
	MassN  = 14.0030740052
	MassO  = 15.9949146221
	MassS  = 31.9720706900
	MassSe = 79.9165218

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// Mass difference between 13C and 12C, the spacing of the isotope envelope
	C13Delta = 1.0033548378
)

// Isotope offsets a search engine may have picked instead of the monoisotopic peak.
const (
	minIsotopeError = -1
	maxIsotopeError = 3
)

// AminoAcidComposition stores elemental composition
type AminoAcidComposition struct {
	C, H, N, O, S, Se int
}

// Mass returns the monoisotopic mass of the composition.
func (c AminoAcidComposition) Mass() float64 {
	return float64(c.C)*MassC +
		float64(c.H)*MassH +
		float64(c.N)*MassN +
		float64(c.O)*MassO +
		float64(c.S)*MassS +
		float64(c.Se)*MassSe
}

// AminoAcidMasses maps amino acid one-letter codes to elemental composition
var AminoAcidMasses = map[rune]AminoAcidComposition{
	'A': {C: 3, H: 5, N: 1, O: 1, S: 0},
	'R': {C: 6, H: 12, N: 4, O: 1, S: 0},
	'N': {C: 4, H: 6, N: 2, O: 2, S: 0},
	'D': {C: 4, H: 5, N: 1, O: 3, S: 0},
	'C': {C: 3, H: 5, N: 1, O: 1, S: 1},
	'E': {C: 5, H: 7, N: 1, O: 3, S: 0},
	'Q': {C: 5, H: 8, N: 2, O: 2, S: 0},
	'G': {C: 2, H: 3, N: 1, O: 1, S: 0},
	'H': {C: 6, H: 7, N: 3, O: 1, S: 0},
	'I': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'L': {C: 6, H: 11, N: 1, O: 1, S: 0},
	'K': {C: 6, H: 12, N: 2, O: 1, S: 0},
	'M': {C: 5, H: 9, N: 1, O: 1, S: 1},
	'F': {C: 9, H: 9, N: 1, O: 1, S: 0},
	'P': {C: 5, H: 7, N: 1, O: 1, S: 0},
	'S': {C: 3, H: 5, N: 1, O: 2, S: 0},
	'T': {C: 4, H: 7, N: 1, O: 2, S: 0},
	'W': {C: 11, H: 10, N: 2, O: 1, S: 0},
	'Y': {C: 9, H: 9, N: 1, O: 2, S: 0},
	'V': {C: 5, H: 9, N: 1, O: 1, S: 0},
	'U': {C: 3, H: 5, N: 1, O: 1, Se: 1}, // selenocysteine
	'O': {C: 12, H: 19, N: 3, O: 2},      // pyrrolysine
	'J': {C: 6, H: 11, N: 1, O: 1},       // leucine or isoleucine
}

var water = AminoAcidComposition{H: 2, O: 1}

// NeutralMass computes the neutral monoisotopic mass of a parsed peptide,
// modification masses included.
func NeutralMass(p Peptide) (float64, error) {
	comp := water
	for _, aa := range p.Sequence {
		aaComp, ok := AminoAcidMasses[aa]
		if !ok {
			return 0, &UnknownResidueError{Residue: aa, Sequence: p.Sequence}
		}
		comp.C += aaComp.C
		comp.H += aaComp.H
		comp.N += aaComp.N
		comp.O += aaComp.O
		comp.S += aaComp.S
		comp.Se += aaComp.Se
	}

	mass := comp.Mass()
	for _, mod := range p.Modifications {
		mass += mod.Mass
	}
	return mass, nil
}

// TheoreticalMZ converts a neutral mass to m/z: (mass + charge * proton) / charge
func TheoreticalMZ(neutral float64, charge int) float64 {
	return (neutral + float64(charge)*ProtonMass) / float64(charge)
}

// MassErrorPPM returns the precursor mass error in ppm between an observed m/z and a
// theoretical neutral mass. The observed mass is first moved by the whole number of
// 13C spacings that brings it closest to the theoretical mass.
func MassErrorPPM(observedMZ float64, charge int, neutral float64) float64 {
	observed := (observedMZ - ProtonMass) * float64(charge)

	best := math.Inf(1)
	for k := minIsotopeError; k <= maxIsotopeError; k++ {
		delta := observed - float64(k)*C13Delta - neutral
		if math.Abs(delta) < math.Abs(best) {
			best = delta
		}
	}
	return best / neutral * 1e6
}

// AnnotateMassError stores the ppm mass error on a PSM that carries a precursor m/z and
// charge. It reports whether a value was stored.
func AnnotateMassError(p *PSM, db *ModDatabase) (bool, error) {
	if p.PrecursorMZ <= 0 || p.Charge <= 0 {
		return false, nil
	}
	if _, ok := p.Score(ScoreMassErrorPPM); ok {
		return false, nil
	}
	pep, err := db.Parse(p.Peptide)
	if err != nil {
		return false, err
	}
	neutral, err := NeutralMass(pep)
	if err != nil {
		return false, err
	}
	p.SetScore(ScoreMassErrorPPM, MassErrorPPM(p.PrecursorMZ, p.Charge, neutral))
	return true, nil
}
