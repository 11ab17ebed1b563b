package clk

import (
	"fmt"

	"github.com/Jon-Bright/samclk/regs"
)

const maxWaitStates = 15

// SetFlashWaitStates sets the NVM read wait states. It has to happen before
// the core clock is raised: 48 MHz at 3.3 V needs one.
func SetFlashWaitStates(r regs.Interface, n uint32) error {
	if n > maxWaitStates {
		return fmt.Errorf("%w: %d flash wait states, max %d", ErrInvalidConfig, n, maxWaitStates)
	}
	r.Write(regs.NVMCTRL_CTRLB_RWS, n)
	return nil
}
