package clk

import (
	"embed"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jon-Bright/samclk/regs"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// DefaultProfile is the name of the built-in 48 MHz profile.
const DefaultProfile = "samd21-48m"

// Profile is the complete parameter set for one bring-up.
type Profile struct {
	Name            string `yaml:"name"`
	FlashWaitStates uint32 `yaml:"flashWaitStates"`

	Oscillator struct {
		Frequency     uint32 `yaml:"frequency"`
		StartupCycles uint32 `yaml:"startupCycles"`
		OutputEnabled bool   `yaml:"outputEnabled"`
		RunInStandby  bool   `yaml:"runInStandby"`
		AutoAmplitude bool   `yaml:"autoAmplitude"`
	} `yaml:"oscillator"`

	ReferenceGenerator GeneratorProfile `yaml:"referenceGenerator"`

	Multiplier struct {
		Target      uint32  `yaml:"target"`
		Ratio       uint32  `yaml:"ratio"` // 0 derives it from target
		Tolerance   float64 `yaml:"tolerance"`
		CoarseStep  uint32  `yaml:"coarseStep"`
		FineStep    uint32  `yaml:"fineStep"`
		WaitForLock bool    `yaml:"waitForLock"`
		Calibration struct {
			LoadCoarse bool   `yaml:"loadCoarse"`
			Fine       uint32 `yaml:"fine"`
		} `yaml:"calibration"`
	} `yaml:"multiplier"`

	MainGenerator GeneratorProfile `yaml:"mainGenerator"`

	InternalOscillator struct {
		Prescaler uint32 `yaml:"prescaler"`
		OnDemand  bool   `yaml:"onDemand"`
	} `yaml:"internalOscillator"`

	Prescalers struct {
		CPU  uint32 `yaml:"cpu"`
		APBA uint32 `yaml:"apba"`
		APBB uint32 `yaml:"apbb"`
		APBC uint32 `yaml:"apbc"`
	} `yaml:"prescalers"`

	Budgets struct {
		Oscillator     BudgetProfile `yaml:"oscillator"`
		GeneratorSync  BudgetProfile `yaml:"generatorSync"`
		MultiplierSync BudgetProfile `yaml:"multiplierSync"`
		MultiplierLock BudgetProfile `yaml:"multiplierLock"`
	} `yaml:"budgets"`
}

// GeneratorProfile is the YAML form of a GeneratorConfig; the source is fixed
// by the generator's place in the tree.
type GeneratorProfile struct {
	ID                  GeneratorID `yaml:"id"`
	Divider             uint32      `yaml:"divider"`
	DivideMode          string      `yaml:"divideMode"` // divide (default), passthrough or pow2
	OutputEnabled       bool        `yaml:"outputEnabled"`
	OutputIdleValue     bool        `yaml:"outputIdleValue"`
	DutyCycleCorrection bool        `yaml:"dutyCycleCorrection"`
	RunInStandby        bool        `yaml:"runInStandby"`
}

var divideModes = map[string]DivideMode{
	"":            UseDivider,
	"divide":      UseDivider,
	"passthrough": Passthrough,
	"pow2":        PowerOfTwo,
}

func (g GeneratorProfile) config(src ClockSource) GeneratorConfig {
	mode, ok := divideModes[g.DivideMode]
	if !ok {
		mode = -1 // Rejected by Validate
	}
	return GeneratorConfig{
		Source:              src,
		Divider:             divOrOne(g.Divider),
		DivideMode:          mode,
		OutputEnabled:       g.OutputEnabled,
		OutputIdleValue:     g.OutputIdleValue,
		DutyCycleCorrection: g.DutyCycleCorrection,
		RunInStandby:        g.RunInStandby,
	}
}

// BudgetProfile is the YAML form of a regs.Budget.
type BudgetProfile struct {
	Polls   int           `yaml:"polls"`
	Timeout time.Duration `yaml:"timeout"`
}

func (b BudgetProfile) Budget() regs.Budget {
	return regs.Budget{Polls: b.Polls, Timeout: b.Timeout}
}

// ParseProfile decodes a YAML profile.
func ParseProfile(b []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("couldn't parse profile: %w", err)
	}
	return &p, nil
}

// LoadProfile returns the built-in profile called name, or reads name as a
// YAML file if no built-in profile matches.
func LoadProfile(name string) (*Profile, error) {
	b, err := builtinProfiles.ReadFile(path.Join("profiles", name+".yaml"))
	if err != nil {
		b, err = os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("couldn't read profile %s: %w", name, err)
		}
	}
	p, err := ParseProfile(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(path.Base(name), ".yaml")
	}
	return p, nil
}

// BuiltinProfiles lists the names LoadProfile resolves without a file.
func BuiltinProfiles() []string {
	ents, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range ents {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return names
}

func (p *Profile) oscillator() OscillatorConfig {
	return OscillatorConfig{
		StartupCycles: p.Oscillator.StartupCycles,
		OutputEnabled: p.Oscillator.OutputEnabled,
		RunInStandby:  p.Oscillator.RunInStandby,
		AutoAmplitude: p.Oscillator.AutoAmplitude,
	}
}

func (p *Profile) referenceGenerator() GeneratorConfig {
	return p.ReferenceGenerator.config(ExternalLowFrequencyCrystal)
}

func (p *Profile) mainGenerator() GeneratorConfig {
	return p.MainGenerator.config(MultiplierOutput)
}

func (p *Profile) ratio() uint32 {
	if p.Multiplier.Ratio != 0 {
		return p.Multiplier.Ratio
	}
	ref := p.referenceGenerator().Output(p.Oscillator.Frequency)
	return RatioFor(ref, p.Multiplier.Target)
}

func (p *Profile) multiplier() MultiplierConfig {
	return MultiplierConfig{
		ReferenceGenerator: p.ReferenceGenerator.ID,
		Ratio:              p.ratio(),
		CoarseStep:         p.Multiplier.CoarseStep,
		FineStep:           p.Multiplier.FineStep,
		Mode:               ClosedLoop,
		WaitForLock:        p.Multiplier.WaitForLock,
		Calibration: Calibration{
			LoadCoarse: p.Multiplier.Calibration.LoadCoarse,
			Fine:       p.Multiplier.Calibration.Fine,
		},
	}
}

func (p *Profile) prescalers() BusPrescalerConfig {
	return BusPrescalerConfig{
		CPU:  p.Prescalers.CPU,
		APBA: p.Prescalers.APBA,
		APBB: p.Prescalers.APBB,
		APBC: p.Prescalers.APBC,
	}
}

// Validate checks every component configuration and the frequency plan.
func (p *Profile) Validate() error {
	if p.Oscillator.Frequency == 0 {
		return fmt.Errorf("%w: oscillator frequency not set", ErrInvalidConfig)
	}
	if p.FlashWaitStates > maxWaitStates {
		return fmt.Errorf("%w: %d flash wait states, max %d", ErrInvalidConfig, p.FlashWaitStates, maxWaitStates)
	}
	if err := p.oscillator().Validate(); err != nil {
		return err
	}
	if p.ReferenceGenerator.ID == MainGenerator {
		return fmt.Errorf("%w: reference generator can't be the main generator", ErrInvalidConfig)
	}
	if err := p.referenceGenerator().Validate(p.ReferenceGenerator.ID); err != nil {
		return err
	}
	if err := p.multiplier().Validate(); err != nil {
		return err
	}
	ref := p.referenceGenerator().Output(p.Oscillator.Frequency)
	if err := CheckTolerance(ref, p.ratio(), p.Multiplier.Target, p.Multiplier.Tolerance); err != nil {
		return err
	}
	if err := p.mainGenerator().Validate(MainGenerator); err != nil {
		return err
	}
	if _, err := osc8mPrescalerCode(p.InternalOscillator.Prescaler); err != nil {
		return err
	}
	return p.prescalers().Validate()
}
