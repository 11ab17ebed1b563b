package clk

import (
	"fmt"
	"log"

	"golang.org/x/exp/slices"

	"github.com/Jon-Bright/samclk/regs"
)

// Oscillator controls the external 32.768 kHz crystal oscillator (XOSC32K)
// and the internal 8 MHz oscillator (OSC8M).
type Oscillator struct {
	r       regs.Interface
	budget  regs.Budget
	started bool
}

func NewOscillator(r regs.Interface, b regs.Budget) *Oscillator {
	return &Oscillator{r: r, budget: b}
}

// Start configures XOSC32K while it is disabled, enables it with a separate
// write and waits for XOSC32KRDY. It may only be called once.
func (o *Oscillator) Start(cfg OscillatorConfig) error {
	if o.started {
		return &SequenceError{Op: "Start", State: "started", Want: "stopped"}
	}
	startup, err := cfg.startupCode()
	if err != nil {
		return err
	}
	o.r.Write(regs.SYSCTRL_XOSC32K_ENABLE, 0)

	var v uint32
	v = regs.SYSCTRL_XOSC32K_WRTLOCK.Insert(v, 0)
	v = regs.SYSCTRL_XOSC32K_STARTUP.Insert(v, startup)
	v = regs.SYSCTRL_XOSC32K_ONDEMAND.Insert(v, 0) // Always running when enabled
	v = regs.SYSCTRL_XOSC32K_RUNSTDBY.Insert(v, b2u(cfg.RunInStandby))
	v = regs.SYSCTRL_XOSC32K_AAMPEN.Insert(v, b2u(cfg.AutoAmplitude))
	v = regs.SYSCTRL_XOSC32K_EN32K.Insert(v, b2u(cfg.OutputEnabled))
	v = regs.SYSCTRL_XOSC32K_XTALEN.Insert(v, 1) // Crystal on XIN32/XOUT32
	o.r.Write(regs.SYSCTRL_XOSC32K, v)

	// Enable is a separate write, see datasheet 17.6.3
	o.r.Write(regs.SYSCTRL_XOSC32K_ENABLE, 1)
	o.started = true

	log.Printf("Waiting for XOSC32K ready\n")
	n, err := regs.Poll(o.r, regs.SYSCTRL_PCLKSR_XOSC32KRDY, regs.IsSet, o.budget)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOscillatorStartupTimeout, err)
	}
	log.Printf("Done %d\n", n)
	return nil
}

// osc8mPrescalers are the OSC8M PRESC choices, indexed by field value.
var osc8mPrescalers = []uint32{1, 2, 4, 8}

func osc8mPrescalerCode(prescaler uint32) (uint32, error) {
	code := slices.Index(osc8mPrescalers, divOrOne(prescaler))
	if code < 0 {
		return 0, fmt.Errorf("%w: OSC8M prescaler %d, want one of %v", ErrInvalidConfig, prescaler, osc8mPrescalers)
	}
	return uint32(code), nil
}

// ConfigureInternal sets the OSC8M prescaler and on-demand mode. OSC8M keeps
// running; nothing is polled.
func (o *Oscillator) ConfigureInternal(prescaler uint32, onDemand bool) error {
	code, err := osc8mPrescalerCode(prescaler)
	if err != nil {
		return err
	}
	o.r.Write(regs.SYSCTRL_OSC8M_PRESC, code)
	o.r.Write(regs.SYSCTRL_OSC8M_ONDEMAND, b2u(onDemand))
	return nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
