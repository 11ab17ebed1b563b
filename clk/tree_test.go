package clk

import (
	"errors"
	"testing"

	"github.com/Jon-Bright/samclk/regs"
)

// testProfile is the default profile with small poll budgets, so stuck flags
// fail fast.
func testProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := LoadProfile(DefaultProfile)
	if err != nil {
		t.Fatalf("Failed to load default profile: %v", err)
	}
	for _, b := range []*BudgetProfile{&p.Budgets.Oscillator, &p.Budgets.GeneratorSync, &p.Budgets.MultiplierSync, &p.Budgets.MultiplierLock} {
		*b = BudgetProfile{Polls: 50}
	}
	return p
}

func testSim() *regs.Sim {
	s := regs.NewSim()
	s.OscStartup = 3
	s.GenSync = 2
	s.DFLLSync = 2
	s.DFLLLock = 4
	return s
}

func writeOf(s *regs.Sim, f regs.Field, pred func(v uint32) bool) int {
	return s.Index(func(a regs.Access) bool {
		return a.Op == regs.OpWrite && a.Field.Name == f.Name && pred(a.Value)
	})
}

func genWrite(s *regs.Sim, f, id regs.Field, gen uint32) int {
	return writeOf(s, f, func(v uint32) bool { return id.Extract(v) == gen })
}

func countReads(s *regs.Sim, name string) int {
	n := 0
	for _, a := range s.Trace {
		if a.Op == regs.OpRead && a.Field.Name == name {
			n++
		}
	}
	return n
}

// checkOrder verifies the bring-up wrote the clock tree in dependency order,
// observing each ready flag before relying on it.
func checkOrder(t *testing.T, s *regs.Sim) {
	t.Helper()
	steps := []struct {
		name string
		i    int
	}{
		{"flash wait states", s.FirstWrite("CTRLB.RWS")},
		{"XOSC32K configuration", s.FirstWrite("XOSC32K")},
		{"XOSC32K enable", writeOf(s, regs.SYSCTRL_XOSC32K_ENABLE, regs.IsSet)},
		{"XOSC32KRDY", s.FirstSeen("PCLKSR.XOSC32KRDY", 1)},
		{"GENDIV1", genWrite(s, regs.GCLK_GENDIV, regs.GCLK_GENDIV_ID, 1)},
		{"GENCTRL1", genWrite(s, regs.GCLK_GENCTRL, regs.GCLK_GENCTRL_ID, 1)},
		{"CLKCTRL", s.FirstWrite("CLKCTRL")},
		{"DFLLCTRL open loop", writeOf(s, regs.SYSCTRL_DFLLCTRL, func(v uint32) bool {
			return regs.SYSCTRL_DFLLCTRL_ENABLE.Extract(v) == 1 && regs.SYSCTRL_DFLLCTRL_MODE.Extract(v) == 0
		})},
		{"DFLLMUL", s.FirstWrite("DFLLMUL")},
		{"DFLLCTRL closed loop", writeOf(s, regs.SYSCTRL_DFLLCTRL, func(v uint32) bool {
			return regs.SYSCTRL_DFLLCTRL_MODE.Extract(v) == 1
		})},
		{"DFLLLCKC", s.FirstSeen("PCLKSR.DFLLLCKC", 1)},
		{"DFLLLCKF", s.FirstSeen("PCLKSR.DFLLLCKF", 1)},
		{"GENDIV0", genWrite(s, regs.GCLK_GENDIV, regs.GCLK_GENDIV_ID, 0)},
		{"GENCTRL0", genWrite(s, regs.GCLK_GENCTRL, regs.GCLK_GENCTRL_ID, 0)},
		{"OSC8M prescaler", s.FirstWrite("OSC8M.PRESC")},
		{"CPU prescaler", s.FirstWrite("CPUSEL.CPUDIV")},
	}
	prev := -1
	for i, st := range steps {
		if st.i < 0 {
			t.Errorf("%s never happened", st.name)
			continue
		}
		if st.i <= prev {
			t.Errorf("%s at trace position %d, before %s", st.name, st.i, steps[i-1].name)
		}
		prev = st.i
	}

	// Every GCLK write is synchronized before the next write, and likewise
	// every DFLL48M register write.
	for i, a := range s.Trace {
		if a.Op != regs.OpWrite {
			continue
		}
		flag := ""
		var want uint32
		switch {
		case a.Field.Block == regs.GCLK:
			flag, want = "STATUS.SYNCBUSY", 0
		case a.Field.Block == regs.SYSCTRL && (a.Field.Offset == regs.SYSCTRL_DFLLCTRL.Offset || a.Field.Offset == regs.SYSCTRL_DFLLMUL.Offset || a.Field.Offset == regs.SYSCTRL_DFLLVAL.Offset):
			flag, want = "PCLKSR.DFLLRDY", 1
		default:
			continue
		}
		synced := false
		for _, b := range s.Trace[i+1:] {
			if b.Op == regs.OpWrite {
				break
			}
			if b.Field.Name == flag && b.Value == want {
				synced = true
				break
			}
		}
		if !synced {
			t.Errorf("write %d (%v) not followed by %s = %d", i, a, flag, want)
		}
	}
}

func TestBringUp(t *testing.T) {
	s := testSim()
	tr := NewTree(s, testProfile(t))
	st, err := tr.BringUp()
	if err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if len(s.Faults) != 0 {
		t.Errorf("Hardware faults: %q", s.Faults)
	}
	checkOrder(t, s)

	want := State{
		Reference:  32768,
		Multiplier: 48005120,
		Main:       48005120,
		Internal:   8000000,
		CPU:        48005120,
		APBA:       48005120,
		APBB:       48005120,
		APBC:       48005120,
	}
	if st != want {
		t.Errorf("State incorrect, got: %+v, want %+v", st, want)
	}
	if got := tr.Multiplier().State(); got != ClosedLoopLocked {
		t.Errorf("Multiplier state incorrect, got: %v, want %v", got, ClosedLoopLocked)
	}
	if en, src, _ := s.Generator(0); !en || src != regs.GCLK_SRC_DFLL48M {
		t.Errorf("GCLK0 incorrect, got: enabled %v source %#x", en, src)
	}
	if en, src, div := s.Generator(1); !en || src != regs.GCLK_SRC_XOSC32K || div != 1 {
		t.Errorf("GCLK1 incorrect, got: enabled %v source %#x div %d", en, src, div)
	}
	if got := s.DFLLReference(); got != 1 {
		t.Errorf("DFLL48M reference incorrect, got: %d, want 1", got)
	}
	if got := s.Peek(regs.SYSCTRL_DFLLMUL_MUL); got != 1465 {
		t.Errorf("DFLLMUL.MUL incorrect, got: %d, want 1465", got)
	}
	if got := s.Peek(regs.NVMCTRL_CTRLB_RWS); got != 1 {
		t.Errorf("RWS incorrect, got: %d, want 1", got)
	}
	if cfg, ok := tr.Generators().Config(MainGenerator); !ok || cfg.Source != MultiplierOutput {
		t.Errorf("GCLK0 config incorrect, got: %+v (%v)", cfg, ok)
	}
}

func TestBringUpTwice(t *testing.T) {
	s := testSim()
	tr := NewTree(s, testProfile(t))
	if _, err := tr.BringUp(); err != nil {
		t.Fatalf("First BringUp failed: %v", err)
	}
	n := len(s.Trace)
	_, err := tr.BringUp()
	if !errors.Is(err, ErrSequenceViolation) {
		t.Errorf("Second BringUp on the same tree returned %v, want ErrSequenceViolation", err)
	}
	if len(s.Trace) != n {
		t.Errorf("Second BringUp touched registers: %v", s.Trace[n:])
	}
}

// A fresh tree over already-configured hardware must still follow the safe
// order: the crystal is stopped before being reconfigured and the DFLL48M
// goes through open loop again.
func TestBringUpReconfigure(t *testing.T) {
	s := testSim()
	if _, err := NewTree(s, testProfile(t)).BringUp(); err != nil {
		t.Fatalf("First BringUp failed: %v", err)
	}
	s.ClearTrace()
	if _, err := NewTree(s, testProfile(t)).BringUp(); err != nil {
		t.Fatalf("Second BringUp failed: %v", err)
	}
	if len(s.Faults) != 0 {
		t.Errorf("Hardware faults: %q", s.Faults)
	}
	checkOrder(t, s)
	if i, j := writeOf(s, regs.SYSCTRL_XOSC32K_ENABLE, regs.IsClear), s.FirstWrite("XOSC32K"); i < 0 || i > j {
		t.Errorf("XOSC32K not disabled before reconfiguration: disable at %d, configure at %d", i, j)
	}
}

func TestBringUpTimeouts(t *testing.T) {
	tests := []struct {
		name  string
		stall func(s *regs.Sim)
		stage Stage
		err   error
		flag  string
		reads int // most reads of flag the budget allows
	}{
		{"oscillator", func(s *regs.Sim) { s.OscStartup = regs.Never }, StageOscillator, ErrOscillatorStartupTimeout, "PCLKSR.XOSC32KRDY", 50},
		{"generator sync", func(s *regs.Sim) { s.GenSync = regs.Never }, StageReferenceGenerator, ErrGeneratorSyncTimeout, "STATUS.SYNCBUSY", 50},
		{"multiplier sync", func(s *regs.Sim) { s.DFLLSync = regs.Never }, StageOpenLoop, ErrMultiplierSyncTimeout, "PCLKSR.DFLLRDY", 51},
		{"multiplier lock", func(s *regs.Sim) { s.DFLLLock = regs.Never }, StageClosedLoop, ErrMultiplierLockTimeout, "PCLKSR.DFLLLCKC", 50},
	}
	for _, test := range tests {
		s := testSim()
		test.stall(s)
		_, err := NewTree(s, testProfile(t)).BringUp()
		var se *StageError
		if !errors.As(err, &se) {
			t.Errorf("%s: got %v, want a *StageError", test.name, err)
			continue
		}
		if se.Stage != test.stage {
			t.Errorf("%s: stage incorrect, got: %v, want %v", test.name, se.Stage, test.stage)
		}
		if !errors.Is(err, test.err) {
			t.Errorf("%s: error %v doesn't match %v", test.name, err, test.err)
		}
		if !errors.Is(err, regs.ErrPollBudget) {
			t.Errorf("%s: error %v doesn't wrap the poll budget error", test.name, err)
		}
		if n := countReads(s, test.flag); n > test.reads {
			t.Errorf("%s: %s read %d times, want at most %d", test.name, test.flag, n, test.reads)
		}
		if i := genWrite(s, regs.GCLK_GENCTRL, regs.GCLK_GENCTRL_ID, 0); i >= 0 {
			t.Errorf("%s: main generator switched at %d despite failure", test.name, i)
		}
		if i := s.FirstWrite("CPUSEL.CPUDIV"); i >= 0 {
			t.Errorf("%s: prescalers written at %d despite failure", test.name, i)
		}
	}
}

func TestBringUpInvalidProfile(t *testing.T) {
	s := testSim()
	p := testProfile(t)
	p.Multiplier.Ratio = 1400
	_, err := NewTree(s, p).BringUp()
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageValidate || !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("BringUp with an out-of-tolerance ratio returned %v", err)
	}
	if len(s.Trace) != 0 {
		t.Errorf("Invalid profile touched registers: %v", s.Trace)
	}
}

func TestBringUpNoWaitForLock(t *testing.T) {
	s := testSim()
	s.DFLLLock = 0
	p := testProfile(t)
	p.Multiplier.WaitForLock = false
	tr := NewTree(s, p)
	if _, err := tr.BringUp(); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if got := tr.Multiplier().State(); got != ClosedLoopLocking {
		t.Errorf("Multiplier state incorrect, got: %v, want %v", got, ClosedLoopLocking)
	}
	if n := countReads(s, "PCLKSR.DFLLLCKC"); n != 0 {
		t.Errorf("Lock polled %d times without WaitForLock", n)
	}
	if got := s.Peek(regs.SYSCTRL_DFLLCTRL_WAITLOCK); got != 0 {
		t.Errorf("WAITLOCK set without WaitForLock")
	}
	if len(s.Faults) != 0 {
		t.Errorf("Hardware faults: %q", s.Faults)
	}
}

func TestBringUpReferenceGenerator(t *testing.T) {
	s := testSim()
	p := testProfile(t)
	p.ReferenceGenerator.ID = 3
	if _, err := NewTree(s, p).BringUp(); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if got := s.DFLLReference(); got != 3 {
		t.Errorf("DFLL48M reference incorrect, got: %d, want 3", got)
	}
	if en, src, _ := s.Generator(3); !en || src != regs.GCLK_SRC_XOSC32K {
		t.Errorf("GCLK3 incorrect, got: enabled %v source %#x", en, src)
	}
	if en, _, _ := s.Generator(1); en {
		t.Errorf("GCLK1 enabled although the profile references GCLK3")
	}
	if len(s.Faults) != 0 {
		t.Errorf("Hardware faults: %q", s.Faults)
	}
}

func TestBringUpDividedBuses(t *testing.T) {
	s := testSim()
	p := testProfile(t)
	p.Prescalers.CPU = 1
	p.Prescalers.APBA = 2
	p.Prescalers.APBB = 4
	p.Prescalers.APBC = 8
	st, err := NewTree(s, p).BringUp()
	if err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if st.CPU != st.Main || st.APBA != st.Main/2 || st.APBB != st.Main/4 || st.APBC != st.Main/8 {
		t.Errorf("Bus frequencies incorrect: %v", st)
	}
	for _, c := range []struct {
		f    regs.Field
		want uint32
	}{
		{regs.PM_CPUSEL_CPUDIV, 0},
		{regs.PM_APBASEL_APBADIV, 1},
		{regs.PM_APBBSEL_APBBDIV, 2},
		{regs.PM_APBCSEL_APBCDIV, 3},
	} {
		if got := s.Peek(c.f); got != c.want {
			t.Errorf("%v incorrect, got: %d, want %d", c.f, got, c.want)
		}
	}
}
