package ident

import (
	"math"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

// NonDecoy keeps target identifications.
func NonDecoy(p *core.PSM) bool {
	return !p.IsDecoy
}

// ScoreAtMost keeps PSMs whose named score is present and at most max. With abs set the
// absolute value is compared, as for mass errors.
func ScoreAtMost(name string, max float64, abs bool) Predicate {
	return func(p *core.PSM) bool {
		v, ok := p.Score(name)
		if !ok {
			return false
		}
		if abs {
			v = math.Abs(v)
		}
		return v <= max
	}
}

// ScoreAtLeast keeps PSMs whose named score is present and at least min.
func ScoreAtLeast(name string, min float64) Predicate {
	return func(p *core.PSM) bool {
		v, ok := p.Score(name)
		return ok && v >= min
	}
}

// InAccessions keeps PSMs with at least one effective accession in the set.
func InAccessions(set map[string]bool) Predicate {
	return func(p *core.PSM) bool {
		for _, a := range p.EffectiveAccessions() {
			if set[a] {
				return true
			}
		}
		return false
	}
}

// Inferred keeps PSMs that inference assigned to an accession.
func Inferred(p *core.PSM) bool {
	return p.Accession != ""
}

// MinAScore keeps PSMs with an AScore of at least min; PSMs without one are kept.
func MinAScore(min float64) Predicate {
	return func(p *core.PSM) bool {
		return p.AScore == nil || *p.AScore >= min
	}
}
