package clk

import (
	"fmt"
	"math/bits"

	"golang.org/x/exp/slices"

	"github.com/Jon-Bright/samclk/regs"
)

// ClockSource is where a generator draws its input.
type ClockSource uint32

const (
	ExternalLowFrequencyCrystal     ClockSource = regs.GCLK_SRC_XOSC32K
	InternalHighFrequencyOscillator ClockSource = regs.GCLK_SRC_OSC8M
	MultiplierOutput                ClockSource = regs.GCLK_SRC_DFLL48M
)

var sourceNames = map[ClockSource]string{
	ExternalLowFrequencyCrystal:     "xosc32k",
	InternalHighFrequencyOscillator: "osc8m",
	MultiplierOutput:                "dfll48m",
}

func (s ClockSource) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return fmt.Sprintf("source(%#x)", uint32(s))
}

// GeneratorID identifies a generic clock generator. Generator 0 drives the
// CPU and buses.
type GeneratorID uint8

const (
	MainGenerator      GeneratorID = 0
	ReferenceGenerator GeneratorID = 1
	numGenerators                  = 9
)

// ConsumerID is a generic clock multiplexer channel.
type ConsumerID uint8

const MultiplierReference ConsumerID = regs.GCLK_CLKCTRL_ID_DFLL48

// DivideMode selects how GeneratorConfig.Divider is applied.
type DivideMode int

const (
	// UseDivider divides the source by Divider.
	UseDivider DivideMode = iota
	// Passthrough forwards the source undivided; Divider is ignored.
	Passthrough
	// PowerOfTwo divides by Divider using DIVSEL, reaching beyond the
	// integer divider range. Divider must be a power of two.
	PowerOfTwo
)

type GeneratorConfig struct {
	Source              ClockSource
	Divider             uint32
	DivideMode          DivideMode
	OutputEnabled       bool
	OutputIdleValue     bool
	DutyCycleCorrection bool
	RunInStandby        bool
}

// maxDivider returns the largest integer divider generator id accepts.
// GENDIV.DIV is 16 bits wide for generator 1, 5 bits for generator 2 and 8
// bits for the rest; the hardware ignores the bits above.
func maxDivider(id GeneratorID) uint32 {
	switch id {
	case ReferenceGenerator:
		return 0xffff
	case 2:
		return 0x1f
	}
	return 0xff
}

// divCode returns the GENDIV.DIV value for cfg.
func (cfg GeneratorConfig) divCode() uint32 {
	switch cfg.DivideMode {
	case Passthrough:
		return 1
	case PowerOfTwo:
		return uint32(bits.TrailingZeros32(cfg.Divider)) - 1
	}
	return cfg.Divider
}

// divisor returns what cfg actually divides its source by.
func (cfg GeneratorConfig) divisor() uint32 {
	if cfg.DivideMode == Passthrough || cfg.Divider == 0 {
		return 1
	}
	return cfg.Divider
}

// Validate checks cfg for generator id.
func (cfg GeneratorConfig) Validate(id GeneratorID) error {
	if id >= numGenerators {
		return fmt.Errorf("%w: generator %d does not exist", ErrInvalidConfig, id)
	}
	if _, ok := sourceNames[cfg.Source]; !ok {
		return fmt.Errorf("%w: generator %d: %v", ErrInvalidConfig, id, cfg.Source)
	}
	switch cfg.DivideMode {
	case UseDivider:
		if cfg.Divider < 1 {
			return fmt.Errorf("%w: generator %d: divider must be at least 1", ErrInvalidConfig, id)
		}
		if cfg.Divider > maxDivider(id) {
			return fmt.Errorf("%w: generator %d: divider %d exceeds %d", ErrInvalidConfig, id, cfg.Divider, maxDivider(id))
		}
	case Passthrough:
	case PowerOfTwo:
		if cfg.Divider < 2 || bits.OnesCount32(cfg.Divider) != 1 || cfg.Divider > 1<<17 {
			return fmt.Errorf("%w: generator %d: power-of-two divider %d", ErrInvalidConfig, id, cfg.Divider)
		}
	default:
		return fmt.Errorf("%w: generator %d: divide mode %d", ErrInvalidConfig, id, cfg.DivideMode)
	}
	return nil
}

// Output returns the frequency cfg produces from a source running at in Hz.
func (cfg GeneratorConfig) Output(in uint32) uint32 {
	return in / cfg.divisor()
}

type MultiplierMode int

const (
	OpenLoop MultiplierMode = iota
	ClosedLoop
)

// Calibration optionally preloads DFLLVAL before closed-loop operation to
// shorten lock time.
type Calibration struct {
	LoadCoarse bool   // copy the factory coarse value from the NVM calibration area
	Fine       uint32 // 0..1023, 512 is mid-range
}

type MultiplierConfig struct {
	ReferenceGenerator GeneratorID
	Ratio              uint32 // DFLLMUL.MUL, 1..65535
	CoarseStep         uint32 // 0..63
	FineStep           uint32 // 0..1023
	Mode               MultiplierMode
	WaitForLock        bool
	Calibration        Calibration
}

const (
	maxRatio      = 0xffff
	maxCoarseStep = 63
	maxFineStep   = 1023
	maxFine       = 1023
)

func (cfg MultiplierConfig) Validate() error {
	if cfg.ReferenceGenerator >= numGenerators {
		return fmt.Errorf("%w: multiplier reference generator %d", ErrInvalidConfig, cfg.ReferenceGenerator)
	}
	if cfg.Ratio < 1 || cfg.Ratio > maxRatio {
		return fmt.Errorf("%w: multiplier ratio %d not in 1..%d", ErrInvalidConfig, cfg.Ratio, maxRatio)
	}
	if cfg.CoarseStep > maxCoarseStep {
		return fmt.Errorf("%w: coarse step %d not in 0..%d", ErrInvalidConfig, cfg.CoarseStep, maxCoarseStep)
	}
	if cfg.FineStep > maxFineStep {
		return fmt.Errorf("%w: fine step %d not in 0..%d", ErrInvalidConfig, cfg.FineStep, maxFineStep)
	}
	if cfg.Calibration.Fine > maxFine {
		return fmt.Errorf("%w: fine calibration %d not in 0..%d", ErrInvalidConfig, cfg.Calibration.Fine, maxFine)
	}
	if cfg.Mode != OpenLoop && cfg.Mode != ClosedLoop {
		return fmt.Errorf("%w: multiplier mode %d", ErrInvalidConfig, cfg.Mode)
	}
	return nil
}

// BusPrescalerConfig holds the power-of-two dividers applied to the main
// clock. Zero means 1.
type BusPrescalerConfig struct {
	CPU  uint32
	APBA uint32
	APBB uint32
	APBC uint32
}

// prescalerCode returns the PM xxxSEL code for div (log2).
func prescalerCode(div uint32) (uint32, error) {
	if div == 0 {
		div = 1
	}
	if bits.OnesCount32(div) != 1 || div > 128 {
		return 0, fmt.Errorf("%w: bus prescaler %d is not a power of two in 1..128", ErrInvalidConfig, div)
	}
	return uint32(bits.TrailingZeros32(div)), nil
}

func (cfg BusPrescalerConfig) Validate() error {
	for _, d := range []uint32{cfg.CPU, cfg.APBA, cfg.APBB, cfg.APBC} {
		if _, err := prescalerCode(d); err != nil {
			return err
		}
	}
	return nil
}

func divOrOne(d uint32) uint32 {
	if d == 0 {
		return 1
	}
	return d
}

// startupCycles are the XOSC32K STARTUP choices, indexed by field value.
var startupCycles = []uint32{1, 32, 2048, 4096, 16384, 32768, 65536, 131072}

type OscillatorConfig struct {
	StartupCycles uint32
	OutputEnabled bool // EN32K
	RunInStandby  bool
	AutoAmplitude bool
}

func (cfg OscillatorConfig) startupCode() (uint32, error) {
	i := slices.Index(startupCycles, cfg.StartupCycles)
	if i < 0 {
		return 0, fmt.Errorf("%w: XOSC32K start-up of %d cycles, want one of %v", ErrInvalidConfig, cfg.StartupCycles, startupCycles)
	}
	return uint32(i), nil
}

func (cfg OscillatorConfig) Validate() error {
	_, err := cfg.startupCode()
	return err
}
