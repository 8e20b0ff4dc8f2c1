/*
ulp_cpu.go - ULP FSM coprocessor core

This module emulates the subset of the ESP32 ULP finite state machine that a sample pump
needs: immediate ALU operations, register ALU operations, word loads and stores, absolute and
register jumps, R0 compare branches, fixed delays, RTC register writes/reads, END and HALT.

Core Features:

    Four 16-bit general registers R0..R3 and an 11-bit word program counter.
    Cycle counting per instruction class, so a loop's period can be checked to the cycle.
    ST writes the stored value into the low half of the word and the storing PC into bits
    21..31, the way the hardware tags stores. LD only sees the low half.
    WR_REG merges a literal into a peripheral register field through the RTC bus.
    Optional real-time pacing: the core sleeps whenever the cycle count runs ahead of the
    wall clock at the configured oscillator frequency.

The core is driven either by Step (tests, single stepping) or by Execute on its own goroutine
(free-running satellite). Execute returns when HALT executes, when Stop is called, or on a
fault.
*/

package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const ULP_PACE_CYCLES = 8192 // cycles between wall clock checks

type ULPCore struct {
	R  [4]uint16
	PC uint32

	bus *RTCMemoryBus

	cycles  atomic.Uint64
	running atomic.Bool
	halted  atomic.Bool
	timerOn atomic.Bool // wakeup timer, cleared by END
	clockHz atomic.Uint32

	Debug bool
}

func NewULPCore(bus *RTCMemoryBus) *ULPCore {
	return &ULPCore{bus: bus}
}

// Reset clears the registers, points the core at entry and arms it to run.
func (c *ULPCore) Reset(entry uint32) {
	c.R = [4]uint16{}
	c.PC = entry
	c.cycles.Store(0)
	c.halted.Store(false)
	c.timerOn.Store(true)
	c.running.Store(true)
}

// SetClock sets the pacing frequency. Zero lets Execute run unpaced.
func (c *ULPCore) SetClock(hz uint32) {
	c.clockHz.Store(hz)
}

func (c *ULPCore) Cycles() uint64  { return c.cycles.Load() }
func (c *ULPCore) Halted() bool    { return c.halted.Load() }
func (c *ULPCore) IsRunning() bool { return c.running.Load() }
func (c *ULPCore) TimerOn() bool   { return c.timerOn.Load() }

// Stop asks a running Execute loop to return. Stepping still works.
func (c *ULPCore) Stop() {
	c.running.Store(false)
}

// Step executes one instruction and returns its cycle cost.
// A halted core executes nothing and costs nothing.
func (c *ULPCore) Step() (uint32, error) {
	if c.halted.Load() {
		return 0, nil
	}
	words := c.bus.Words()
	pc := c.PC
	if pc >= words {
		return 0, fmt.Errorf("%w: PC %d", ErrAddressOutOfRange, pc)
	}

	in := decodeULP(c.bus.Read32(pc))
	cost := in.cycles()
	next := pc + 1

	if c.Debug {
		fmt.Printf("ULP %04d: %08X R0=%04X R1=%04X R2=%04X R3=%04X\n", pc, in.word, c.R[0], c.R[1], c.R[2], c.R[3])
	}

	switch in.opcode {
	case ULP_OP_ALU:
		var operand uint16
		switch in.sub {
		case ULP_SUB_ALU_IMM:
			operand = uint16(in.imm)
		case ULP_SUB_ALU_REG:
			operand = c.R[in.treg]
		default:
			return 0, c.illegal(pc, in.word)
		}
		src := c.R[in.sreg]
		var result uint16
		switch in.sel {
		case ULP_ALU_ADD:
			result = src + operand
		case ULP_ALU_SUB:
			result = src - operand
		case ULP_ALU_AND:
			result = src & operand
		case ULP_ALU_OR:
			result = src | operand
		case ULP_ALU_MOV:
			result = operand
		case ULP_ALU_LSH:
			result = src << (operand & 0xF)
		case ULP_ALU_RSH:
			result = src >> (operand & 0xF)
		default:
			return 0, c.illegal(pc, in.word)
		}
		c.R[in.dreg] = result

	case ULP_OP_ST:
		addr := uint32(c.R[in.sreg]) + in.offset
		if addr >= words {
			return 0, fmt.Errorf("%w: ST to %d at PC %d", ErrAddressOutOfRange, addr, pc)
		}
		c.bus.Write32(addr, (pc&ULP_ADDR_MAX)<<21|uint32(c.R[in.dreg]))

	case ULP_OP_LD:
		addr := uint32(c.R[in.sreg]) + in.offset
		if addr >= words {
			return 0, fmt.Errorf("%w: LD from %d at PC %d", ErrAddressOutOfRange, addr, pc)
		}
		c.R[in.dreg] = c.bus.Read16(addr)

	case ULP_OP_BRANCH:
		switch in.sub {
		case ULP_SUB_BX:
			if in.useReg {
				next = uint32(c.R[in.dreg])
			} else {
				next = in.offset
			}
		case ULP_SUB_BR:
			r0 := uint32(c.R[R0])
			taken := (in.cmp == ULP_BR_CMP_GE && r0 >= in.imm) || (in.cmp == ULP_BR_CMP_LT && r0 < in.imm)
			if taken {
				next = in.branchTarget(pc)
			}
		default:
			return 0, c.illegal(pc, in.word)
		}

	case ULP_OP_DELAY:
		// cost only

	case ULP_OP_WR_REG:
		c.bus.WriteRegField(in.reg, in.low, in.high, in.data)

	case ULP_OP_RD_REG:
		c.R[R0] = uint16(c.bus.ReadRegField(in.reg, in.low, in.high))

	case ULP_OP_END:
		c.timerOn.Store(false)

	case ULP_OP_HALT:
		c.halted.Store(true)
		c.cycles.Add(uint64(cost))
		return cost, nil

	default:
		return 0, c.illegal(pc, in.word)
	}

	c.PC = next
	c.cycles.Add(uint64(cost))
	return cost, nil
}

func (c *ULPCore) illegal(pc, word uint32) error {
	return fmt.Errorf("%w: %08X at PC %d", ErrIllegalInstruction, word, pc)
}

// Execute runs the core until HALT, Stop or a fault. A fault halts the core.
// Reset arms the core, so a Stop issued before Execute starts is not lost.
func (c *ULPCore) Execute() error {
	defer c.running.Store(false)

	start := time.Now()
	startCycles := c.Cycles()
	var sincePace uint64

	for c.running.Load() && !c.halted.Load() {
		cost, err := c.Step()
		if err != nil {
			c.halted.Store(true)
			return err
		}
		sincePace += uint64(cost)
		if sincePace < ULP_PACE_CYCLES {
			continue
		}
		sincePace = 0
		hz := uint64(c.clockHz.Load())
		if hz == 0 {
			continue
		}
		elapsed := c.Cycles() - startCycles
		due := time.Duration(elapsed/hz)*time.Second + time.Duration((elapsed%hz)*uint64(time.Second)/hz)
		if ahead := due - time.Since(start); ahead > 0 {
			time.Sleep(ahead)
		}
	}
	return nil
}
