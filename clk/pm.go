package clk

import (
	"log"

	"github.com/Jon-Bright/samclk/regs"
)

// Prescalers sets the CPU and APB bus dividers in the power manager. The
// writes are synchronous; nothing is polled.
type Prescalers struct {
	r regs.Interface
}

func NewPrescalers(r regs.Interface) *Prescalers {
	return &Prescalers{r: r}
}

// Configure must only run once generator 0 is on its final source, since the
// dividers scale that clock.
func (p *Prescalers) Configure(cfg BusPrescalerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, s := range []struct {
		f   regs.Field
		div uint32
	}{
		{regs.PM_CPUSEL_CPUDIV, cfg.CPU},
		{regs.PM_APBASEL_APBADIV, cfg.APBA},
		{regs.PM_APBBSEL_APBBDIV, cfg.APBB},
		{regs.PM_APBCSEL_APBCDIV, cfg.APBC},
	} {
		code, _ := prescalerCode(s.div) // Validated above
		p.r.Write(s.f, code)
	}
	log.Printf("Bus prescalers CPU/%d APBA/%d APBB/%d APBC/%d\n",
		divOrOne(cfg.CPU), divOrOne(cfg.APBA), divOrOne(cfg.APBB), divOrOne(cfg.APBC))
	return nil
}
