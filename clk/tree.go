package clk

import (
	"log"

	"github.com/Jon-Bright/samclk/regs"
)

// Tree brings the clock tree up from the power-on default to the profile's
// configuration. It is the only place that knows the order of the steps.
type Tree struct {
	p    *Profile
	r    regs.Interface
	osc  *Oscillator
	gens *Generators
	dfll *Multiplier
	pm   *Prescalers
	done bool
}

// NewTree binds a profile to a register interface. Nothing is written until
// BringUp.
func NewTree(r regs.Interface, p *Profile) *Tree {
	b := &p.Budgets
	return &Tree{
		p:    p,
		r:    r,
		osc:  NewOscillator(r, b.Oscillator.Budget()),
		gens: NewGenerators(r, b.GeneratorSync.Budget()),
		dfll: NewMultiplier(r, b.MultiplierSync.Budget(), b.MultiplierLock.Budget()),
		pm:   NewPrescalers(r),
	}
}

func (t *Tree) Multiplier() *Multiplier { return t.dfll }
func (t *Tree) Generators() *Generators { return t.gens }

// BringUp runs the whole sequence once. Any failure is a *StageError naming
// the step; nothing is retried. Calling BringUp again fails with
// ErrSequenceViolation.
func (t *Tree) BringUp() (State, error) {
	if t.done {
		return State{}, &StageError{StageValidate, &SequenceError{Op: "BringUp", State: "brought up", Want: "reset"}}
	}
	state, err := Resolve(t.p)
	if err != nil {
		return State{}, &StageError{StageValidate, err}
	}
	t.done = true
	p := t.p
	mc := p.multiplier()
	log.Printf("Bringing up clock tree %q\n", p.Name)

	steps := []struct {
		stage Stage
		run   func() error
	}{
		{StageFlash, func() error {
			return SetFlashWaitStates(t.r, p.FlashWaitStates)
		}},
		{StageOscillator, func() error {
			return t.osc.Start(p.oscillator())
		}},
		{StageReferenceGenerator, func() error {
			return t.gens.Configure(p.ReferenceGenerator.ID, p.referenceGenerator())
		}},
		{StageBindReference, func() error {
			return t.gens.Bind(MultiplierReference, mc.ReferenceGenerator, true)
		}},
		{StageOpenLoop, t.dfll.EnableOpenLoop},
		{StageParameters, func() error {
			return t.dfll.SetParameters(mc)
		}},
		{StageClosedLoop, func() error {
			return t.dfll.EnableClosedLoop(p.Multiplier.WaitForLock)
		}},
		{StageMainGenerator, func() error {
			return t.gens.Configure(MainGenerator, p.mainGenerator())
		}},
		{StageInternalOscillator, func() error {
			return t.osc.ConfigureInternal(p.InternalOscillator.Prescaler, p.InternalOscillator.OnDemand)
		}},
		{StagePrescalers, func() error {
			return t.pm.Configure(p.prescalers())
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			log.Printf("Clock bring-up failed at %v: %v\n", s.stage, err)
			return State{}, &StageError{s.stage, err}
		}
	}
	log.Printf("Clock tree up: %v\n", state)
	return state, nil
}
