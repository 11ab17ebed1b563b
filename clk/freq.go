package clk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultTolerance is the relative error allowed between the synthesized and
// target frequency. USB full-speed needs 0.25%.
const DefaultTolerance = 0.0025

// RatioFor returns the multiplier ratio that brings ref closest to target.
func RatioFor(ref, target uint32) uint32 {
	if ref == 0 {
		return 0
	}
	return uint32(math.Round(float64(target) / float64(ref)))
}

// Synthesized returns ref × ratio, saturating at the uint32 range.
func Synthesized(ref, ratio uint32) uint32 {
	out := uint64(ref) * uint64(ratio)
	if out > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(out)
}

// CheckTolerance reports whether ref × ratio is within tol (relative) of
// target.
func CheckTolerance(ref, ratio, target uint32, tol float64) error {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	out := float64(uint64(ref) * uint64(ratio))
	if !scalar.EqualWithinRel(out, float64(target), tol) {
		return fmt.Errorf("%w: %d Hz × %d = %.0f Hz, more than %.4g%% from %d Hz",
			ErrInvalidConfig, ref, ratio, out, tol*100, target)
	}
	return nil
}

// State is the resolved clock tree after bring-up. It is never modified.
type State struct {
	Reference  uint32 // DFLL48M reference input (reference generator output)
	Multiplier uint32 // DFLL48M output
	Main       uint32 // generator 0
	Internal   uint32 // OSC8M after its prescaler
	CPU        uint32
	APBA       uint32
	APBB       uint32
	APBC       uint32
}

func (s State) String() string {
	return fmt.Sprintf("ref %d Hz, dfll48m %d Hz, gclk0 %d Hz, cpu %d Hz, apba %d Hz, apbb %d Hz, apbc %d Hz",
		s.Reference, s.Multiplier, s.Main, s.CPU, s.APBA, s.APBB, s.APBC)
}

// osc8mFrequency is the nominal OSC8M output before its prescaler.
const osc8mFrequency = 8000000

// Resolve computes the State a profile produces, without touching hardware.
func Resolve(p *Profile) (State, error) {
	if err := p.Validate(); err != nil {
		return State{}, err
	}
	var s State
	s.Reference = p.referenceGenerator().Output(p.Oscillator.Frequency)
	s.Multiplier = Synthesized(s.Reference, p.ratio())
	s.Main = p.mainGenerator().Output(s.Multiplier)
	s.Internal = osc8mFrequency / divOrOne(p.InternalOscillator.Prescaler)
	pre := p.prescalers()
	s.CPU = s.Main / divOrOne(pre.CPU)
	s.APBA = s.Main / divOrOne(pre.APBA)
	s.APBB = s.Main / divOrOne(pre.APBB)
	s.APBC = s.Main / divOrOne(pre.APBC)
	return s, nil
}
