package main

import "time"

// RTC slow memory layout (word addressed, 32-bit words)
const (
	RTC_SLOW_MEM_WORDS = 2048 // 8KB of RTC slow memory on the ESP32

	ULP_PROGRAM_WORDS = 20                    // control loop length
	ULP_INDEX_ADDR    = ULP_PROGRAM_WORDS     // read-index cell, written only by the ULP
	ULP_BUFFER_START  = ULP_INDEX_ADDR + 1    // first ring word
	DAC_TABLE_ENTRIES = 256                   // one entry per 8-bit DAC code
	DAC_TABLE_WORDS   = DAC_TABLE_ENTRIES * 2 // WR_REG + BXI per entry

	ULP_MIN_RING_WORDS = 2 // below this the ring cannot hold a single unread word

	ULP_RET_ADDR_1 = 9  // return point after the first DAC table
	ULP_RET_ADDR_2 = 14 // return point after the second DAC table
	ULP_LOOP_ENTRY = 3  // absolute target of the non-wrapping back branch
)

// Ring word encoding
const (
	DAC_MID_CODE   = 128    // DAC mid-point, zero output level
	SILENCE_WORD   = 0x8080 // both channels at DAC_MID_CODE
	RING_WORD_MASK = 0xFFFF // the ULP only sees the low half of a word
)

// Loop overhead in ULP cycles, excluding the calibrated DELAY operands.
// Derived from the per-opcode costs below; see assembleDACLoop.
const (
	ULP_LOOP_CYCLES_STEREO = 134 // one full iteration with dt2 == 0
	ULP_LOOP_CYCLES_HALF1  = 90  // mono: DAC1 write to DAC2 write side
	ULP_LOOP_CYCLES_HALF2  = 44  // mono: DAC2 write to next DAC1 write side
)

// ULP opcodes (bits 28..31)
const (
	ULP_OP_WR_REG = 1
	ULP_OP_RD_REG = 2
	ULP_OP_DELAY  = 4
	ULP_OP_ST     = 6
	ULP_OP_ALU    = 7
	ULP_OP_BRANCH = 8
	ULP_OP_END    = 9
	ULP_OP_HALT   = 11
	ULP_OP_LD     = 13
)

// Sub-opcodes (bits 25..27)
const (
	ULP_SUB_ALU_REG = 0
	ULP_SUB_ALU_IMM = 1

	ULP_SUB_BX = 0
	ULP_SUB_BR = 1

	ULP_SUB_ST = 4

	ULP_SUB_END = 0
)

// ALU selectors (bits 21..24)
const (
	ULP_ALU_ADD = 0
	ULP_ALU_SUB = 1
	ULP_ALU_AND = 2
	ULP_ALU_OR  = 3
	ULP_ALU_MOV = 4
	ULP_ALU_LSH = 5
	ULP_ALU_RSH = 6
)

// Branch compare modes for BR
const (
	ULP_BR_CMP_LT = 0
	ULP_BR_CMP_GE = 1
)

// ULP registers
const (
	R0 = 0
	R1 = 1
	R2 = 2
	R3 = 3
)

// Field limits
const (
	ULP_ADDR_MAX   = 0x7FF  // 11-bit address/offset operands
	ULP_IMM_MAX    = 0xFFFF // 16-bit immediates and DELAY cycles
	ULP_BR_OFF_MAX = 0x7F   // 7-bit relative branch magnitude
)

// Cycle cost per instruction class
const (
	ULP_CYCLES_ALU    = 6
	ULP_CYCLES_ST     = 8
	ULP_CYCLES_LD     = 8
	ULP_CYCLES_BRANCH = 4
	ULP_CYCLES_DELAY  = 6 // plus the DELAY operand
	ULP_CYCLES_WR_REG = 12
	ULP_CYCLES_RD_REG = 12
	ULP_CYCLES_END    = 6
	ULP_CYCLES_HALT   = 2
)

// RTC peripheral register map
const (
	DR_REG_RTCCNTL_BASE = 0x3FF48000
	DR_REG_RTCIO_BASE   = 0x3FF48400
	DR_REG_SENS_BASE    = 0x3FF48800
	DR_REG_RTC_I2C_BASE = 0x3FF48C00
	DR_REG_RTC_END      = 0x3FF48FFF

	RTC_IO_PAD_DAC1_REG = DR_REG_RTCIO_BASE + 0x84
	RTC_IO_PAD_DAC2_REG = DR_REG_RTCIO_BASE + 0x88

	RTC_IO_PDAC_DAC_LOW  = 19 // 8-bit DAC code field
	RTC_IO_PDAC_DAC_HIGH = 26
	RTC_IO_PDAC_XPD_DAC  = 1 << 18
	RTC_IO_PDAC_XPD_FORC = 1 << 17
)

// Clock calibration
const (
	RTC_CLK_CAL_FRACT    = 19       // Q13.19 period result
	RTC_SLOW_CLK_8MD256  = 256      // 8MD256 divides the fast clock by 256
	RTC_XTAL_FREQ_MHZ    = 40       // reference crystal
	RTC_FAST_NOMINAL_HZ  = 8500000  // RC_FAST nominal frequency
	ULP_CAL_SLOW_CYCLES  = 1000     // slow-clock cycles averaged per calibration
	ULP_CAL_MAX_DRIFTPPM = 200000   // ±20% is already a broken oscillator
	ULP_CAL_PERIOD_SCALE = 1000000  // microseconds per second
	ULP_CAL_TIMEOUT_HZ   = 100000   // below this the calibration counter never completes
)

// Host side defaults
const (
	DEFAULT_SAMPLE_RATE     = 44100
	DEFAULT_MIN_WRITE_BYTES = 128
	DEFAULT_WRITE_RETRY     = 20 * time.Millisecond
	ULP_START_POLL          = time.Millisecond
	ULP_STOP_TIMEOUT        = 2 * time.Second
	SAMPLE_BYTES            = 2 // only 16-bit input is accepted
	SUPPORTED_BITS          = 16
)
