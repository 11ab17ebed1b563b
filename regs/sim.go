package regs

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Never makes a Sim status flag stay in its waiting state forever.
const Never = -1

type Op int

const (
	OpRead Op = iota
	OpWrite
)

func (o Op) String() string {
	if o == OpWrite {
		return "W"
	}
	return "R"
}

// Access is one register access recorded by a Sim. Value is the field value
// read or written.
type Access struct {
	Op    Op
	Field Field
	Value uint32
}

func (a Access) String() string {
	return fmt.Sprintf("%v %v = %#x", a.Op, a.Field, a.Value)
}

type regKey struct {
	b    *Block
	offs uintptr
}

type simGen struct {
	enabled bool
	src     uint32
	div     uint32
}

// Sim is an Interface simulating the SAMD21 clock registers (SYSCTRL, GCLK,
// PM, NVMCTRL). Status flags change only when their register is read, after
// the configured number of reads; Never keeps them stuck. Writes that real
// hardware would reject or punish with a reset are recorded in Faults rather
// than failing.
type Sim struct {
	OscStartup int // PCLKSR reads until XOSC32KRDY after enable
	GenSync    int // STATUS reads until SYNCBUSY clears after a GCLK write
	DFLLSync   int // PCLKSR reads until DFLLRDY after a DFLL register write
	DFLLLock   int // PCLKSR reads until DFLLLCKC/DFLLLCKF in closed loop

	Trace  []Access
	Faults []string

	regs        map[regKey]uint32
	oscPending  int
	genPending  int
	dfllPending int
	lockPending int
	gens        [9]simGen
	dfllRef     int
}

// NewSim returns a Sim in the power-on state: OSC8M running and feeding
// generator 0, XOSC32K and DFLL48M off. Every flag settles immediately until
// the counters are changed.
func NewSim() *Sim {
	s := &Sim{
		regs:    make(map[regKey]uint32),
		dfllRef: -1,
	}
	s.gens[0] = simGen{enabled: true, src: GCLK_SRC_OSC8M, div: 1}
	s.regs[key(SYSCTRL_OSC8M)] = SYSCTRL_OSC8M_ENABLE.Set(1) | SYSCTRL_OSC8M_PRESC.Set(3)
	// Factory coarse calibration as commonly found on parts.
	s.regs[key(NVMCAL_DFLL48M_COARSE)] = NVMCAL_DFLL48M_COARSE.Set(0x1e)
	return s
}

func key(f Field) regKey {
	return regKey{f.Block, f.Offset}
}

// Preload sets f without recording an access or running any side effects.
func (s *Sim) Preload(f Field, v uint32) {
	k := key(f)
	s.regs[k] = f.Insert(s.regs[k], v)
}

// Peek returns f without recording an access.
func (s *Sim) Peek(f Field) uint32 {
	return f.Extract(s.regs[key(f)])
}

// Generator reports the simulated state of generic clock generator id.
func (s *Sim) Generator(id int) (enabled bool, src, div uint32) {
	g := s.gens[id]
	return g.enabled, g.src, g.div
}

// DFLLReference returns the generator bound to the DFLL48M reference channel,
// or -1.
func (s *Sim) DFLLReference() int {
	return s.dfllRef
}

// ClearTrace forgets recorded accesses and faults but keeps hardware state.
func (s *Sim) ClearTrace() {
	s.Trace = nil
	s.Faults = nil
}

func (s *Sim) fault(format string, args ...interface{}) {
	s.Faults = append(s.Faults, fmt.Sprintf(format, args...))
}

func tick(p *int) {
	if *p > 0 {
		*p--
	}
}

func (s *Sim) xoscReady() bool {
	return SYSCTRL_XOSC32K_ENABLE.Extract(s.regs[key(SYSCTRL_XOSC32K)]) != 0 && s.oscPending == 0
}

func (s *Sim) dfllCtrl() uint32 {
	return s.regs[key(SYSCTRL_DFLLCTRL)]
}

func (s *Sim) closedLoop() bool {
	c := s.dfllCtrl()
	return SYSCTRL_DFLLCTRL_ENABLE.Extract(c) != 0 && SYSCTRL_DFLLCTRL_MODE.Extract(c) != 0
}

func (s *Sim) locked() bool {
	return s.closedLoop() && s.lockPending == 0
}

func (s *Sim) sourceReady(src uint32) bool {
	switch src {
	case GCLK_SRC_XOSC32K:
		return s.xoscReady()
	case GCLK_SRC_OSC8M:
		return true
	case GCLK_SRC_DFLL48M:
		c := s.dfllCtrl()
		if SYSCTRL_DFLLCTRL_ENABLE.Extract(c) == 0 {
			return false
		}
		// WAITLOCK gates the output until lock, so consumers are safe.
		return !s.closedLoop() || s.locked() || SYSCTRL_DFLLCTRL_WAITLOCK.Extract(c) != 0
	}
	return false
}

func (s *Sim) load(f Field) uint32 {
	k := key(f)
	switch k {
	case key(SYSCTRL_PCLKSR):
		tick(&s.oscPending)
		tick(&s.dfllPending)
		if s.closedLoop() {
			tick(&s.lockPending)
		}
		var v uint32
		if s.xoscReady() {
			v = SYSCTRL_PCLKSR_XOSC32KRDY.Insert(v, 1)
		}
		v = SYSCTRL_PCLKSR_OSC8MRDY.Insert(v, 1)
		if s.dfllPending == 0 {
			v = SYSCTRL_PCLKSR_DFLLRDY.Insert(v, 1)
		}
		if s.locked() {
			v = SYSCTRL_PCLKSR_DFLLLCKC.Insert(v, 1)
			v = SYSCTRL_PCLKSR_DFLLLCKF.Insert(v, 1)
		}
		s.regs[k] = v
	case key(GCLK_STATUS):
		tick(&s.genPending)
		var v uint32
		if s.genPending != 0 {
			v = GCLK_STATUS_SYNCBUSY.Insert(v, 1)
		}
		s.regs[k] = v
	}
	return s.regs[k]
}

func (s *Sim) Read(f Field) uint32 {
	v := f.Extract(s.load(f))
	s.Trace = append(s.Trace, Access{OpRead, f, v})
	return v
}

func (s *Sim) Write(f Field, v uint32) {
	s.Trace = append(s.Trace, Access{OpWrite, f, v})
	k := key(f)
	old := s.regs[k]
	nv := f.Insert(old, v)
	if f.Whole() {
		nv = v & f.Mask()
	}

	switch k {
	case key(SYSCTRL_XOSC32K):
		s.writeXOSC32K(old, nv)
	case key(SYSCTRL_DFLLCTRL):
		s.writeDFLLCTRL(old, nv)
	case key(SYSCTRL_DFLLMUL), key(SYSCTRL_DFLLVAL):
		if s.dfllPending != 0 {
			s.fault("%v written while DFLLRDY clear", f)
		}
		s.dfllPending = s.DFLLSync
	case key(GCLK_GENDIV):
		id := GCLK_GENDIV_ID.Extract(nv)
		s.gens[id].div = GCLK_GENDIV_DIV.Extract(nv)
		s.genPending = s.GenSync
	case key(GCLK_GENCTRL):
		s.writeGENCTRL(nv)
	case key(GCLK_CLKCTRL):
		s.writeCLKCTRL(nv)
	case key(NVMCAL_DFLL48M_COARSE):
		s.fault("write to read-only calibration area")
		return
	case key(SYSCTRL_PCLKSR), key(GCLK_STATUS):
		// Status registers ignore writes.
		return
	}
	s.regs[k] = nv
}

func (s *Sim) writeXOSC32K(old, nv uint32) {
	wasOn := SYSCTRL_XOSC32K_ENABLE.Extract(old) != 0
	on := SYSCTRL_XOSC32K_ENABLE.Extract(nv) != 0
	cfg := ^SYSCTRL_XOSC32K_ENABLE.Mask()
	if wasOn && on && old&cfg != nv&cfg {
		s.fault("XOSC32K reconfigured while enabled")
	}
	if SYSCTRL_XOSC32K_WRTLOCK.Extract(old) != 0 {
		s.fault("XOSC32K written while WRTLOCK set")
	}
	if !wasOn && on {
		s.oscPending = s.OscStartup
	}
}

func (s *Sim) writeDFLLCTRL(old, nv uint32) {
	if s.dfllPending != 0 {
		s.fault("DFLLCTRL written while DFLLRDY clear")
	}
	wasOn := SYSCTRL_DFLLCTRL_ENABLE.Extract(old) != 0
	closed := SYSCTRL_DFLLCTRL_MODE.Extract(nv) != 0 && SYSCTRL_DFLLCTRL_ENABLE.Extract(nv) != 0
	if closed && !wasOn {
		s.fault("DFLL48M closed loop enabled from disabled state: processor reset")
	}
	if closed {
		if s.dfllRef < 0 || !s.gens[s.dfllRef].enabled {
			s.fault("DFLL48M closed loop without an enabled reference clock")
		}
		if SYSCTRL_DFLLCTRL_MODE.Extract(old) == 0 || !wasOn {
			s.lockPending = s.DFLLLock
		}
	}
	s.dfllPending = s.DFLLSync
}

func (s *Sim) writeGENCTRL(nv uint32) {
	id := GCLK_GENCTRL_ID.Extract(nv)
	src := GCLK_GENCTRL_SRC.Extract(nv)
	en := GCLK_GENCTRL_GENEN.Extract(nv) != 0
	if id >= uint32(len(s.gens)) {
		s.fault("GENCTRL for nonexistent generator %d", id)
		return
	}
	if en && !s.sourceReady(src) {
		s.fault("generator %d enabled on source %#x before it is ready", id, src)
	}
	if id == 0 && !en {
		s.fault("generator 0 disabled: core clock stopped")
	}
	s.gens[id].enabled = en
	s.gens[id].src = src
	s.genPending = s.GenSync
}

func (s *Sim) writeCLKCTRL(nv uint32) {
	ch := GCLK_CLKCTRL_ID.Extract(nv)
	gen := int(GCLK_CLKCTRL_GEN.Extract(nv))
	en := GCLK_CLKCTRL_CLKEN.Extract(nv) != 0
	if en && (gen >= len(s.gens) || !s.gens[gen].enabled) {
		s.fault("channel %d bound to generator %d which is not enabled", ch, gen)
	}
	if ch == GCLK_CLKCTRL_ID_DFLL48 {
		if en {
			s.dfllRef = gen
		} else {
			s.dfllRef = -1
		}
	}
	s.genPending = s.GenSync
}

// Index returns the position in Trace of the first access matching pred, or
// -1.
func (s *Sim) Index(pred func(Access) bool) int {
	return slices.IndexFunc(s.Trace, pred)
}

// FirstWrite returns the position of the first write to the register or field
// named name, or -1.
func (s *Sim) FirstWrite(name string) int {
	return s.Index(func(a Access) bool {
		return a.Op == OpWrite && a.Field.Name == name
	})
}

// FirstSeen returns the position of the first read of the field named name
// that returned want, or -1.
func (s *Sim) FirstSeen(name string, want uint32) int {
	return s.Index(func(a Access) bool {
		return a.Op == OpRead && a.Field.Name == name && a.Value == want
	})
}

// Writes returns the recorded writes in order.
func (s *Sim) Writes() []Access {
	var w []Access
	for _, a := range s.Trace {
		if a.Op == OpWrite {
			w = append(w, a)
		}
	}
	return w
}
