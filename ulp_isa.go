package main

// ULP FSM instruction encoders. Each returns the 32-bit word exactly as the
// ESP32 ULP expects it in RTC slow memory.

func ulpALUImm(sel, dreg, sreg uint32, imm uint32) uint32 {
	return ULP_OP_ALU<<28 | ULP_SUB_ALU_IMM<<25 | (sel&0xF)<<21 | (imm&0xFFFF)<<4 | (sreg&3)<<2 | dreg&3
}

func ulpALUReg(sel, dreg, sreg, treg uint32) uint32 {
	return ULP_OP_ALU<<28 | ULP_SUB_ALU_REG<<25 | (sel&0xF)<<21 | (treg&3)<<4 | (sreg&3)<<2 | dreg&3
}

func ulpMOVI(dreg, imm uint32) uint32       { return ulpALUImm(ULP_ALU_MOV, dreg, 0, imm) }
func ulpADDI(dreg, sreg, imm uint32) uint32 { return ulpALUImm(ULP_ALU_ADD, dreg, sreg, imm) }
func ulpANDI(dreg, sreg, imm uint32) uint32 { return ulpALUImm(ULP_ALU_AND, dreg, sreg, imm) }
func ulpLSHI(dreg, sreg, imm uint32) uint32 { return ulpALUImm(ULP_ALU_LSH, dreg, sreg, imm) }
func ulpRSHI(dreg, sreg, imm uint32) uint32 { return ulpALUImm(ULP_ALU_RSH, dreg, sreg, imm) }

// ulpST stores the low half of val into mem[addrReg + offset].
func ulpST(val, addrReg, offset uint32) uint32 {
	return ULP_OP_ST<<28 | ULP_SUB_ST<<25 | (offset&ULP_ADDR_MAX)<<10 | (addrReg&3)<<2 | val&3
}

// ulpLD loads the low half of mem[addrReg + offset] into dreg.
func ulpLD(dreg, addrReg, offset uint32) uint32 {
	return ULP_OP_LD<<28 | (offset&ULP_ADDR_MAX)<<10 | (addrReg&3)<<2 | dreg&3
}

// ulpBXI jumps to an absolute word address.
func ulpBXI(addr uint32) uint32 {
	return ULP_OP_BRANCH<<28 | ULP_SUB_BX<<25 | (addr&ULP_ADDR_MAX)<<2
}

// ulpBXR jumps to the word address held in reg.
func ulpBXR(reg uint32) uint32 {
	return ULP_OP_BRANCH<<28 | ULP_SUB_BX<<25 | 1<<21 | reg&3
}

// ulpBR branches relative to the current word when R0 compares against imm.
func ulpBR(offset int, cmp uint32, imm uint32) uint32 {
	var sign uint32
	if offset < 0 {
		sign = 1
		offset = -offset
	}
	return ULP_OP_BRANCH<<28 | ULP_SUB_BR<<25 | sign<<24 | (uint32(offset)&ULP_BR_OFF_MAX)<<17 | (cmp&1)<<16 | imm&0xFFFF
}

func ulpBGE(offset int, imm uint32) uint32 { return ulpBR(offset, ULP_BR_CMP_GE, imm) }
func ulpBL(offset int, imm uint32) uint32  { return ulpBR(offset, ULP_BR_CMP_LT, imm) }

func ulpDELAY(cycles uint32) uint32 {
	return ULP_OP_DELAY<<28 | cycles&0xFFFF
}

// ulpPeriphSel maps an RTC register address onto the 2-bit peripheral selector.
func ulpPeriphSel(reg uint32) uint32 {
	switch {
	case reg >= DR_REG_RTC_I2C_BASE:
		return 3
	case reg >= DR_REG_SENS_BASE:
		return 2
	case reg >= DR_REG_RTCIO_BASE:
		return 1
	default:
		return 0
	}
}

// ulpWRREG writes val into bits low..high of an RTC peripheral register.
// The value is a literal baked into the instruction.
func ulpWRREG(reg, low, high, val uint32) uint32 {
	return ULP_OP_WR_REG<<28 | (high&0x1F)<<23 | (low&0x1F)<<18 | (val&0xFF)<<10 |
		ulpPeriphSel(reg)<<8 | ((reg&0xFF)/4)&0xFF
}

func ulpEND() uint32  { return ULP_OP_END<<28 | ULP_SUB_END<<25 | 1 }
func ulpHALT() uint32 { return ULP_OP_HALT << 28 }

// ulpInsn is a decoded instruction word.
type ulpInsn struct {
	word   uint32
	opcode uint32
	sub    uint32
	dreg   uint32
	sreg   uint32
	treg   uint32
	sel    uint32
	imm    uint32
	offset uint32 // ST/LD offset, BX address, BR magnitude
	sign   bool
	cmp    uint32
	useReg bool // BXR
	low    uint32
	high   uint32
	data   uint32
	reg    uint32 // full WR_REG target address
}

func decodeULP(word uint32) ulpInsn {
	in := ulpInsn{
		word:   word,
		opcode: word >> 28,
		sub:    (word >> 25) & 7,
		dreg:   word & 3,
		sreg:   (word >> 2) & 3,
	}
	switch in.opcode {
	case ULP_OP_ALU:
		in.sel = (word >> 21) & 0xF
		if in.sub == ULP_SUB_ALU_IMM {
			in.imm = (word >> 4) & 0xFFFF
		} else {
			in.treg = (word >> 4) & 3
		}
	case ULP_OP_ST, ULP_OP_LD:
		in.offset = (word >> 10) & ULP_ADDR_MAX
	case ULP_OP_BRANCH:
		if in.sub == ULP_SUB_BX {
			in.offset = (word >> 2) & ULP_ADDR_MAX
			in.useReg = word&(1<<21) != 0
		} else {
			in.imm = word & 0xFFFF
			in.cmp = (word >> 16) & 1
			in.offset = (word >> 17) & ULP_BR_OFF_MAX
			in.sign = word&(1<<24) != 0
		}
	case ULP_OP_DELAY:
		in.imm = word & 0xFFFF
	case ULP_OP_WR_REG, ULP_OP_RD_REG:
		in.high = (word >> 23) & 0x1F
		in.low = (word >> 18) & 0x1F
		in.data = (word >> 10) & 0xFF
		periph := (word >> 8) & 3
		in.reg = DR_REG_RTCCNTL_BASE + periph*0x400 + (word&0xFF)*4
	}
	return in
}

// cycles returns the execution cost of the instruction.
func (in ulpInsn) cycles() uint32 {
	switch in.opcode {
	case ULP_OP_ALU:
		return ULP_CYCLES_ALU
	case ULP_OP_ST:
		return ULP_CYCLES_ST
	case ULP_OP_LD:
		return ULP_CYCLES_LD
	case ULP_OP_BRANCH:
		return ULP_CYCLES_BRANCH
	case ULP_OP_DELAY:
		return ULP_CYCLES_DELAY + in.imm
	case ULP_OP_WR_REG:
		return ULP_CYCLES_WR_REG
	case ULP_OP_RD_REG:
		return ULP_CYCLES_RD_REG
	case ULP_OP_END:
		return ULP_CYCLES_END
	default:
		return ULP_CYCLES_HALT
	}
}

// branchTarget returns the destination of a relative branch at pc.
func (in ulpInsn) branchTarget(pc uint32) uint32 {
	if in.sign {
		return pc - in.offset
	}
	return pc + in.offset
}
