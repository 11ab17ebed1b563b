package clk

import (
	"fmt"
	"log"

	"github.com/Jon-Bright/samclk/regs"
)

// MultiplierState tracks how far the DFLL48M has been brought up.
type MultiplierState int

const (
	Disabled MultiplierState = iota
	OpenLoopEnabled
	Parameterized
	// ClosedLoopLocking: closed-loop mode is set and the register write is
	// synchronized, but frequency lock hasn't been observed.
	ClosedLoopLocking
	ClosedLoopLocked
)

var multiplierStateNames = []string{
	Disabled:          "disabled",
	OpenLoopEnabled:   "open-loop",
	Parameterized:     "parameterized",
	ClosedLoopLocking: "closed-loop locking",
	ClosedLoopLocked:  "closed-loop locked",
}

func (s MultiplierState) String() string {
	if int(s) < len(multiplierStateNames) {
		return multiplierStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Multiplier drives the DFLL48M. Its methods must be called in the order
// EnableOpenLoop, SetParameters, EnableClosedLoop; anything else fails with a
// SequenceError before touching a register, since the hardware answers a
// closed-loop enable from the disabled state with a processor reset.
type Multiplier struct {
	r          regs.Interface
	syncBudget regs.Budget
	lockBudget regs.Budget
	state      MultiplierState
	cfg        MultiplierConfig
}

func NewMultiplier(r regs.Interface, sync, lock regs.Budget) *Multiplier {
	return &Multiplier{r: r, syncBudget: sync, lockBudget: lock}
}

func (m *Multiplier) State() MultiplierState {
	return m.state
}

// Config returns the parameters applied by SetParameters.
func (m *Multiplier) Config() MultiplierConfig {
	return m.cfg
}

func (m *Multiplier) require(op string, want MultiplierState) error {
	if m.state != want {
		return &SequenceError{Op: op, State: m.state.String(), Want: want.String()}
	}
	return nil
}

// waitReady waits for DFLLRDY. DFLLRDY is register synchronization only; it
// says nothing about the output frequency.
func (m *Multiplier) waitReady(what string) error {
	_, err := regs.Poll(m.r, regs.SYSCTRL_PCLKSR_DFLLRDY, regs.IsSet, m.syncBudget)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMultiplierSyncTimeout, what, err)
	}
	return nil
}

// EnableOpenLoop enables the DFLL48M in open-loop mode.
func (m *Multiplier) EnableOpenLoop() error {
	if err := m.require("EnableOpenLoop", Disabled); err != nil {
		return err
	}
	if err := m.waitReady("before enable"); err != nil {
		return err
	}
	// Whole-register write also clears ONDEMAND, which errata 1.2.1 requires
	// before the DFLL is configured.
	m.r.Write(regs.SYSCTRL_DFLLCTRL, regs.SYSCTRL_DFLLCTRL_ENABLE.Set(1))
	if err := m.waitReady("after enable"); err != nil {
		return err
	}
	m.state = OpenLoopEnabled
	log.Printf("DFLL48M running open loop\n")
	return nil
}

// SetParameters loads the optional factory calibration and the multiplier
// ratio and step sizes.
func (m *Multiplier) SetParameters(cfg MultiplierConfig) error {
	if err := m.require("SetParameters", OpenLoopEnabled); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Calibration.LoadCoarse {
		coarse := m.r.Read(regs.NVMCAL_DFLL48M_COARSE)
		if coarse == regs.NVMCAL_DFLL48M_COARSE.Max() {
			// Erased calibration row, use mid-range
			coarse = 0x1f
		}
		var v uint32
		v = regs.SYSCTRL_DFLLVAL_COARSE.Insert(v, coarse)
		v = regs.SYSCTRL_DFLLVAL_FINE.Insert(v, cfg.Calibration.Fine)
		m.r.Write(regs.SYSCTRL_DFLLVAL, v)
		if err := m.waitReady("DFLLVAL"); err != nil {
			return err
		}
		log.Printf("DFLL48M calibration coarse %d fine %d\n", coarse, cfg.Calibration.Fine)
	}

	var v uint32
	v = regs.SYSCTRL_DFLLMUL_CSTEP.Insert(v, cfg.CoarseStep)
	v = regs.SYSCTRL_DFLLMUL_FSTEP.Insert(v, cfg.FineStep)
	v = regs.SYSCTRL_DFLLMUL_MUL.Insert(v, cfg.Ratio)
	m.r.Write(regs.SYSCTRL_DFLLMUL, v)
	if err := m.waitReady("DFLLMUL"); err != nil {
		return err
	}
	m.cfg = cfg
	m.state = Parameterized
	return nil
}

// EnableClosedLoop switches to closed-loop mode, which the parameters must
// have asked for. With waitForLock it sets WAITLOCK, so the output is gated
// until lock, and polls for coarse and fine lock before returning.
func (m *Multiplier) EnableClosedLoop(waitForLock bool) error {
	if err := m.require("EnableClosedLoop", Parameterized); err != nil {
		return err
	}
	if m.cfg.Mode != ClosedLoop {
		return fmt.Errorf("%w: multiplier parameterized for open-loop operation", ErrInvalidConfig)
	}
	v := regs.SYSCTRL_DFLLCTRL_ENABLE.Set(1)
	v = regs.SYSCTRL_DFLLCTRL_MODE.Insert(v, 1)
	v = regs.SYSCTRL_DFLLCTRL_WAITLOCK.Insert(v, b2u(waitForLock))
	m.r.Write(regs.SYSCTRL_DFLLCTRL, v)
	if err := m.waitReady("closed loop"); err != nil {
		return err
	}
	m.state = ClosedLoopLocking
	m.cfg.WaitForLock = waitForLock
	if !waitForLock {
		return nil
	}

	log.Printf("Waiting for DFLL48M lock\n")
	for _, f := range []regs.Field{regs.SYSCTRL_PCLKSR_DFLLLCKC, regs.SYSCTRL_PCLKSR_DFLLLCKF} {
		n, err := regs.Poll(m.r, f, regs.IsSet, m.lockBudget)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMultiplierLockTimeout, err)
		}
		log.Printf("%s after %d polls\n", f.Name, n)
	}
	m.state = ClosedLoopLocked
	return nil
}
