package clk

import (
	"fmt"
	"log"

	"github.com/Jon-Bright/samclk/regs"
)

// Generators configures the generic clock generators and binds clock
// consumers to them. Every GCLK write is followed by a wait for SYNCBUSY to
// clear.
type Generators struct {
	r      regs.Interface
	budget regs.Budget
	cfgs   map[GeneratorID]GeneratorConfig
}

func NewGenerators(r regs.Interface, b regs.Budget) *Generators {
	return &Generators{r: r, budget: b, cfgs: make(map[GeneratorID]GeneratorConfig)}
}

func (g *Generators) sync(what string) error {
	n, err := regs.Poll(g.r, regs.GCLK_STATUS_SYNCBUSY, regs.IsClear, g.budget)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrGeneratorSyncTimeout, what, err)
	}
	if n > 1 {
		log.Printf("%s synchronized after %d polls\n", what, n)
	}
	return nil
}

// Configure sets the divider of generator id, then its control register with
// source and enable in the same write.
func (g *Generators) Configure(id GeneratorID, cfg GeneratorConfig) error {
	if err := cfg.Validate(id); err != nil {
		return err
	}
	log.Printf("Configuring GCLK%d: %v/%d\n", id, cfg.Source, cfg.divisor())

	var div uint32
	div = regs.GCLK_GENDIV_ID.Insert(div, uint32(id))
	div = regs.GCLK_GENDIV_DIV.Insert(div, cfg.divCode())
	g.r.Write(regs.GCLK_GENDIV, div)
	if err := g.sync(fmt.Sprintf("GENDIV%d", id)); err != nil {
		return err
	}

	var ctrl uint32
	ctrl = regs.GCLK_GENCTRL_ID.Insert(ctrl, uint32(id))
	ctrl = regs.GCLK_GENCTRL_RUNSTDBY.Insert(ctrl, b2u(cfg.RunInStandby))
	ctrl = regs.GCLK_GENCTRL_DIVSEL.Insert(ctrl, b2u(cfg.DivideMode == PowerOfTwo))
	ctrl = regs.GCLK_GENCTRL_OE.Insert(ctrl, b2u(cfg.OutputEnabled))
	ctrl = regs.GCLK_GENCTRL_OOV.Insert(ctrl, b2u(cfg.OutputIdleValue))
	ctrl = regs.GCLK_GENCTRL_IDC.Insert(ctrl, b2u(cfg.DutyCycleCorrection))
	ctrl = regs.GCLK_GENCTRL_SRC.Insert(ctrl, uint32(cfg.Source))
	ctrl = regs.GCLK_GENCTRL_GENEN.Insert(ctrl, 1)
	g.r.Write(regs.GCLK_GENCTRL, ctrl)
	if err := g.sync(fmt.Sprintf("GENCTRL%d", id)); err != nil {
		return err
	}
	g.cfgs[id] = cfg
	return nil
}

// Bind routes generator gen to consumer and gates the channel on or off. The
// generator is not checked: the caller must have configured it.
func (g *Generators) Bind(consumer ConsumerID, gen GeneratorID, enable bool) error {
	if gen >= numGenerators {
		return fmt.Errorf("%w: generator %d does not exist", ErrInvalidConfig, gen)
	}
	var v uint32
	v = regs.GCLK_CLKCTRL_ID.Insert(v, uint32(consumer))
	v = regs.GCLK_CLKCTRL_GEN.Insert(v, uint32(gen))
	v = regs.GCLK_CLKCTRL_CLKEN.Insert(v, b2u(enable))
	g.r.Write(regs.GCLK_CLKCTRL, v)
	return g.sync(fmt.Sprintf("CLKCTRL%d", consumer))
}

// Config returns the configuration last applied to generator id.
func (g *Generators) Config(id GeneratorID) (GeneratorConfig, bool) {
	cfg, ok := g.cfgs[id]
	return cfg, ok
}
