package clk

import (
	"errors"
	"fmt"
)

var (
	ErrOscillatorStartupTimeout = errors.New("oscillator start-up timeout")
	ErrGeneratorSyncTimeout     = errors.New("generator synchronization timeout")
	ErrMultiplierSyncTimeout    = errors.New("multiplier register synchronization timeout")
	ErrMultiplierLockTimeout    = errors.New("multiplier lock timeout")
	ErrSequenceViolation        = errors.New("clock sequence violation")
	ErrInvalidConfig            = errors.New("invalid clock configuration")
)

// SequenceError reports a step attempted before its prerequisite. It matches
// ErrSequenceViolation with errors.Is.
type SequenceError struct {
	Op    string
	State string // state the component was in
	Want  string // state Op requires
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%v: %s called in state %s, requires %s", ErrSequenceViolation, e.Op, e.State, e.Want)
}

func (e *SequenceError) Is(target error) bool {
	return target == ErrSequenceViolation
}

// Stage names one step of the bring-up sequence.
type Stage int

const (
	StageValidate Stage = iota
	StageFlash
	StageOscillator
	StageReferenceGenerator
	StageBindReference
	StageOpenLoop
	StageParameters
	StageClosedLoop
	StageMainGenerator
	StageInternalOscillator
	StagePrescalers
)

var stageNames = []string{
	StageValidate:           "validate",
	StageFlash:              "flash wait states",
	StageOscillator:         "external oscillator",
	StageReferenceGenerator: "reference generator",
	StageBindReference:      "bind multiplier reference",
	StageOpenLoop:           "multiplier open loop",
	StageParameters:         "multiplier parameters",
	StageClosedLoop:         "multiplier closed loop",
	StageMainGenerator:      "main generator",
	StageInternalOscillator: "internal oscillator",
	StagePrescalers:         "bus prescalers",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError is the single failure BringUp returns: which stage failed and why.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("clock bring-up failed at %v: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
