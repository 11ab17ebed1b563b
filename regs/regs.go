// Package regs gives field-level access to memory-mapped hardware registers.
// Production code binds an Interface to real register windows once at start-up
// (see MMIO); tests substitute a Sim.
package regs

import (
	"errors"
	"fmt"
	"time"
)

// Block is a peripheral's register block.
type Block struct {
	Name string
	Base uintptr
	Size int
}

// Field is a run of bits inside a register of a Block. A Field whose Bits
// equal the register width covers the whole register.
type Field struct {
	Name   string
	Block  *Block
	Offset uintptr
	Width  int // register width in bytes: 1, 2 or 4
	Shift  uint
	Bits   uint
}

// Whole reports whether f covers its entire register.
func (f Field) Whole() bool {
	return f.Shift == 0 && f.Bits == uint(f.Width*8)
}

// Mask returns the in-register mask of f.
func (f Field) Mask() uint32 {
	if f.Bits >= 32 {
		return 0xffffffff
	}
	return ((1 << f.Bits) - 1) << f.Shift
}

// Max returns the largest value f can hold.
func (f Field) Max() uint32 {
	return f.Mask() >> f.Shift
}

// Insert returns reg with f set to v. Bits of v that don't fit are dropped.
func (f Field) Insert(reg, v uint32) uint32 {
	return (reg &^ f.Mask()) | ((v << f.Shift) & f.Mask())
}

// Extract returns the value of f in reg.
func (f Field) Extract(reg uint32) uint32 {
	return (reg & f.Mask()) >> f.Shift
}

// Set is shorthand for Insert(0, v): the register value with only f set.
func (f Field) Set(v uint32) uint32 {
	return f.Insert(0, v)
}

func (f Field) String() string {
	if f.Block == nil {
		return f.Name
	}
	return fmt.Sprintf("%s.%s", f.Block.Name, f.Name)
}

// Interface is field-level register access. Writing a partial field is a
// read-modify-write of the containing register; writing a whole-register
// field is a single store.
type Interface interface {
	Read(f Field) uint32
	Write(f Field, v uint32)
}

// ErrPollBudget is returned by Poll when the predicate didn't hold within the
// budget.
var ErrPollBudget = errors.New("poll budget exhausted")

// Budget bounds a Poll. A zero Polls or Timeout leaves that axis unbounded; a
// zero Budget waits forever.
type Budget struct {
	Polls   int
	Timeout time.Duration
}

func (b Budget) String() string {
	switch {
	case b.Polls == 0 && b.Timeout == 0:
		return "unbounded"
	case b.Timeout == 0:
		return fmt.Sprintf("%d polls", b.Polls)
	case b.Polls == 0:
		return b.Timeout.String()
	}
	return fmt.Sprintf("%d polls/%v", b.Polls, b.Timeout)
}

// Poll reads f until pred holds for its value. It returns the number of reads
// taken. If the budget runs out first, the error wraps ErrPollBudget.
func Poll(r Interface, f Field, pred func(uint32) bool, b Budget) (int, error) {
	start := time.Now()
	i := 0
	for {
		i++
		if pred(r.Read(f)) {
			return i, nil
		}
		if b.Polls > 0 && i >= b.Polls {
			return i, fmt.Errorf("%v after %d reads: %w", f, i, ErrPollBudget)
		}
		if b.Timeout > 0 {
			t := time.Now()
			if t.Sub(start) > b.Timeout {
				return i, fmt.Errorf("%v after %v (%d reads): %w", f, t.Sub(start), i, ErrPollBudget)
			}
		}
	}
}

// IsSet and IsClear are the usual Poll predicates for one-bit flags.
func IsSet(v uint32) bool   { return v != 0 }
func IsClear(v uint32) bool { return v == 0 }
