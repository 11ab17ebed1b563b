package regs

// SAMD21 clock-related registers. Offsets and bit positions are from the
// SAM D21 family datasheet (DS40001882), sections 15 (GCLK), 16 (PM),
// 17 (SYSCTRL) and 22 (NVMCTRL).

var (
	PM      = &Block{Name: "PM", Base: 0x40000400, Size: 0x20}
	SYSCTRL = &Block{Name: "SYSCTRL", Base: 0x40000800, Size: 0x60}
	GCLK    = &Block{Name: "GCLK", Base: 0x40000C00, Size: 0x10}
	NVMCTRL = &Block{Name: "NVMCTRL", Base: 0x41004000, Size: 0x20}
	// Software calibration area, read-only.
	NVMCAL = &Block{Name: "NVMCAL", Base: 0x00806020, Size: 0x08}
)

// Blocks lists every block the clock tree touches, in mapping order.
var Blocks = []*Block{PM, SYSCTRL, GCLK, NVMCTRL, NVMCAL}

func field(b *Block, name string, offs uintptr, width int, shift, bits uint) Field {
	return Field{Name: name, Block: b, Offset: offs, Width: width, Shift: shift, Bits: bits}
}

// PM
var (
	PM_CPUSEL          = field(PM, "CPUSEL", 0x08, 1, 0, 8)
	PM_CPUSEL_CPUDIV   = field(PM, "CPUSEL.CPUDIV", 0x08, 1, 0, 3)
	PM_APBASEL         = field(PM, "APBASEL", 0x09, 1, 0, 8)
	PM_APBASEL_APBADIV = field(PM, "APBASEL.APBADIV", 0x09, 1, 0, 3)
	PM_APBBSEL         = field(PM, "APBBSEL", 0x0a, 1, 0, 8)
	PM_APBBSEL_APBBDIV = field(PM, "APBBSEL.APBBDIV", 0x0a, 1, 0, 3)
	PM_APBCSEL         = field(PM, "APBCSEL", 0x0b, 1, 0, 8)
	PM_APBCSEL_APBCDIV = field(PM, "APBCSEL.APBCDIV", 0x0b, 1, 0, 3)
)

// SYSCTRL
var (
	SYSCTRL_PCLKSR            = field(SYSCTRL, "PCLKSR", 0x0c, 4, 0, 32)
	SYSCTRL_PCLKSR_XOSC32KRDY = field(SYSCTRL, "PCLKSR.XOSC32KRDY", 0x0c, 4, 1, 1)
	SYSCTRL_PCLKSR_OSC8MRDY   = field(SYSCTRL, "PCLKSR.OSC8MRDY", 0x0c, 4, 3, 1)
	SYSCTRL_PCLKSR_DFLLRDY    = field(SYSCTRL, "PCLKSR.DFLLRDY", 0x0c, 4, 4, 1)
	SYSCTRL_PCLKSR_DFLLOOB    = field(SYSCTRL, "PCLKSR.DFLLOOB", 0x0c, 4, 5, 1)
	SYSCTRL_PCLKSR_DFLLLCKF   = field(SYSCTRL, "PCLKSR.DFLLLCKF", 0x0c, 4, 6, 1)
	SYSCTRL_PCLKSR_DFLLLCKC   = field(SYSCTRL, "PCLKSR.DFLLLCKC", 0x0c, 4, 7, 1)

	SYSCTRL_XOSC32K          = field(SYSCTRL, "XOSC32K", 0x14, 2, 0, 16)
	SYSCTRL_XOSC32K_ENABLE   = field(SYSCTRL, "XOSC32K.ENABLE", 0x14, 2, 1, 1)
	SYSCTRL_XOSC32K_XTALEN   = field(SYSCTRL, "XOSC32K.XTALEN", 0x14, 2, 2, 1)
	SYSCTRL_XOSC32K_EN32K    = field(SYSCTRL, "XOSC32K.EN32K", 0x14, 2, 3, 1)
	SYSCTRL_XOSC32K_AAMPEN   = field(SYSCTRL, "XOSC32K.AAMPEN", 0x14, 2, 5, 1)
	SYSCTRL_XOSC32K_RUNSTDBY = field(SYSCTRL, "XOSC32K.RUNSTDBY", 0x14, 2, 6, 1)
	SYSCTRL_XOSC32K_ONDEMAND = field(SYSCTRL, "XOSC32K.ONDEMAND", 0x14, 2, 7, 1)
	SYSCTRL_XOSC32K_STARTUP  = field(SYSCTRL, "XOSC32K.STARTUP", 0x14, 2, 8, 3)
	SYSCTRL_XOSC32K_WRTLOCK  = field(SYSCTRL, "XOSC32K.WRTLOCK", 0x14, 2, 12, 1)

	SYSCTRL_OSC8M          = field(SYSCTRL, "OSC8M", 0x20, 4, 0, 32)
	SYSCTRL_OSC8M_ENABLE   = field(SYSCTRL, "OSC8M.ENABLE", 0x20, 4, 1, 1)
	SYSCTRL_OSC8M_ONDEMAND = field(SYSCTRL, "OSC8M.ONDEMAND", 0x20, 4, 7, 1)
	SYSCTRL_OSC8M_PRESC    = field(SYSCTRL, "OSC8M.PRESC", 0x20, 4, 8, 2)

	SYSCTRL_DFLLCTRL          = field(SYSCTRL, "DFLLCTRL", 0x24, 2, 0, 16)
	SYSCTRL_DFLLCTRL_ENABLE   = field(SYSCTRL, "DFLLCTRL.ENABLE", 0x24, 2, 1, 1)
	SYSCTRL_DFLLCTRL_MODE     = field(SYSCTRL, "DFLLCTRL.MODE", 0x24, 2, 2, 1)
	SYSCTRL_DFLLCTRL_ONDEMAND = field(SYSCTRL, "DFLLCTRL.ONDEMAND", 0x24, 2, 7, 1)
	SYSCTRL_DFLLCTRL_WAITLOCK = field(SYSCTRL, "DFLLCTRL.WAITLOCK", 0x24, 2, 11, 1)

	SYSCTRL_DFLLVAL        = field(SYSCTRL, "DFLLVAL", 0x28, 4, 0, 32)
	SYSCTRL_DFLLVAL_FINE   = field(SYSCTRL, "DFLLVAL.FINE", 0x28, 4, 0, 10)
	SYSCTRL_DFLLVAL_COARSE = field(SYSCTRL, "DFLLVAL.COARSE", 0x28, 4, 10, 6)

	SYSCTRL_DFLLMUL       = field(SYSCTRL, "DFLLMUL", 0x2c, 4, 0, 32)
	SYSCTRL_DFLLMUL_MUL   = field(SYSCTRL, "DFLLMUL.MUL", 0x2c, 4, 0, 16)
	SYSCTRL_DFLLMUL_FSTEP = field(SYSCTRL, "DFLLMUL.FSTEP", 0x2c, 4, 16, 10)
	SYSCTRL_DFLLMUL_CSTEP = field(SYSCTRL, "DFLLMUL.CSTEP", 0x2c, 4, 26, 6)
)

// GCLK. GENCTRL, GENDIV and CLKCTRL are indirect: the ID field of each write
// selects which generator or channel it applies to, so they are always
// written whole.
var (
	GCLK_STATUS          = field(GCLK, "STATUS", 0x01, 1, 0, 8)
	GCLK_STATUS_SYNCBUSY = field(GCLK, "STATUS.SYNCBUSY", 0x01, 1, 7, 1)

	GCLK_CLKCTRL       = field(GCLK, "CLKCTRL", 0x02, 2, 0, 16)
	GCLK_CLKCTRL_ID    = field(GCLK, "CLKCTRL.ID", 0x02, 2, 0, 6)
	GCLK_CLKCTRL_GEN   = field(GCLK, "CLKCTRL.GEN", 0x02, 2, 8, 4)
	GCLK_CLKCTRL_CLKEN = field(GCLK, "CLKCTRL.CLKEN", 0x02, 2, 14, 1)

	GCLK_GENCTRL          = field(GCLK, "GENCTRL", 0x04, 4, 0, 32)
	GCLK_GENCTRL_ID       = field(GCLK, "GENCTRL.ID", 0x04, 4, 0, 4)
	GCLK_GENCTRL_SRC      = field(GCLK, "GENCTRL.SRC", 0x04, 4, 8, 5)
	GCLK_GENCTRL_GENEN    = field(GCLK, "GENCTRL.GENEN", 0x04, 4, 16, 1)
	GCLK_GENCTRL_IDC      = field(GCLK, "GENCTRL.IDC", 0x04, 4, 17, 1)
	GCLK_GENCTRL_OOV      = field(GCLK, "GENCTRL.OOV", 0x04, 4, 18, 1)
	GCLK_GENCTRL_OE       = field(GCLK, "GENCTRL.OE", 0x04, 4, 19, 1)
	GCLK_GENCTRL_DIVSEL   = field(GCLK, "GENCTRL.DIVSEL", 0x04, 4, 20, 1)
	GCLK_GENCTRL_RUNSTDBY = field(GCLK, "GENCTRL.RUNSTDBY", 0x04, 4, 21, 1)

	GCLK_GENDIV     = field(GCLK, "GENDIV", 0x08, 4, 0, 32)
	GCLK_GENDIV_ID  = field(GCLK, "GENDIV.ID", 0x08, 4, 0, 4)
	GCLK_GENDIV_DIV = field(GCLK, "GENDIV.DIV", 0x08, 4, 8, 16)
)

// GENCTRL.SRC values.
const (
	GCLK_SRC_XOSC      = 0x00
	GCLK_SRC_GCLKIN    = 0x01
	GCLK_SRC_GCLKGEN1  = 0x02
	GCLK_SRC_OSCULP32K = 0x03
	GCLK_SRC_OSC32K    = 0x04
	GCLK_SRC_XOSC32K   = 0x05
	GCLK_SRC_OSC8M     = 0x06
	GCLK_SRC_DFLL48M   = 0x07
	GCLK_SRC_FDPLL96M  = 0x08
)

// CLKCTRL.ID values for the channels the clock tree binds.
const (
	GCLK_CLKCTRL_ID_DFLL48 = 0x00
)

// NVMCTRL
var (
	NVMCTRL_CTRLB     = field(NVMCTRL, "CTRLB", 0x04, 4, 0, 32)
	NVMCTRL_CTRLB_RWS = field(NVMCTRL, "CTRLB.RWS", 0x04, 4, 1, 4)
)

// DFLL48M coarse calibration lives in bits 63:58 of the calibration area,
// i.e. the top six bits of its second word.
var NVMCAL_DFLL48M_COARSE = field(NVMCAL, "CAL.DFLL48M_COARSE", 0x04, 4, 26, 6)
