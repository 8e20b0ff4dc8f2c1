// debug_disasm_ulp.go - ULP FSM disassembler for listings and the scope overlay

package main

import "fmt"

// DisassembledLine represents one disassembled instruction.
type DisassembledLine struct {
	Address  uint64
	HexBytes string
	Mnemonic string
	Size     int
	IsPC     bool // true if this is the current PC
}

var ulpALUNames = map[uint32]string{
	ULP_ALU_ADD: "ADD", ULP_ALU_SUB: "SUB", ULP_ALU_AND: "AND", ULP_ALU_OR: "OR",
	ULP_ALU_MOV: "MOV", ULP_ALU_LSH: "LSH", ULP_ALU_RSH: "RSH",
}

var ulpRegNames = map[uint32]string{
	RTC_IO_PAD_DAC1_REG: "DAC1",
	RTC_IO_PAD_DAC2_REG: "DAC2",
}

// DisassembleULP disassembles words loaded at word address base.
func DisassembleULP(words []uint32, base uint32) []DisassembledLine {
	lines := make([]DisassembledLine, 0, len(words))
	for i, w := range words {
		addr := base + uint32(i)
		lines = append(lines, DisassembledLine{
			Address:  uint64(addr),
			HexBytes: fmt.Sprintf("%08X", w),
			Mnemonic: ulpMnemonic(w, addr),
			Size:     1,
		})
	}
	return lines
}

// DisassembleULPMemory disassembles count words of live slow memory, marking pc.
func DisassembleULPMemory(mem SharedWordMemory, addr uint32, count int, pc uint32) []DisassembledLine {
	words := make([]uint32, 0, count)
	for i := 0; i < count && addr+uint32(i) < mem.Words(); i++ {
		words = append(words, mem.Read32(addr+uint32(i)))
	}
	lines := DisassembleULP(words, addr)
	for i := range lines {
		lines[i].IsPC = lines[i].Address == uint64(pc)
	}
	return lines
}

func ulpMnemonic(w, addr uint32) string {
	in := decodeULP(w)
	switch in.opcode {
	case ULP_OP_ALU:
		name, ok := ulpALUNames[in.sel]
		if !ok {
			break
		}
		if in.sub == ULP_SUB_ALU_IMM {
			if in.sel == ULP_ALU_MOV {
				return fmt.Sprintf("MOVI R%d, $%04X", in.dreg, in.imm)
			}
			return fmt.Sprintf("%sI R%d, R%d, $%04X", name, in.dreg, in.sreg, in.imm)
		}
		if in.sub == ULP_SUB_ALU_REG {
			if in.sel == ULP_ALU_MOV {
				return fmt.Sprintf("MOV R%d, R%d", in.dreg, in.treg)
			}
			return fmt.Sprintf("%s R%d, R%d, R%d", name, in.dreg, in.sreg, in.treg)
		}
	case ULP_OP_ST:
		return fmt.Sprintf("ST R%d, R%d, %d", in.dreg, in.sreg, in.offset)
	case ULP_OP_LD:
		return fmt.Sprintf("LD R%d, R%d, %d", in.dreg, in.sreg, in.offset)
	case ULP_OP_BRANCH:
		switch in.sub {
		case ULP_SUB_BX:
			if in.useReg {
				return fmt.Sprintf("BXR R%d", in.dreg)
			}
			return fmt.Sprintf("BXI %d", in.offset)
		case ULP_SUB_BR:
			op := "BL"
			if in.cmp == ULP_BR_CMP_GE {
				op = "BGE"
			}
			return fmt.Sprintf("%s %d, %d", op, in.branchTarget(addr), in.imm)
		}
	case ULP_OP_DELAY:
		return fmt.Sprintf("DELAY %d", in.imm)
	case ULP_OP_WR_REG:
		return fmt.Sprintf("WR_REG %s, %d, %d, %d", ulpRegName(in.reg), in.low, in.high, in.data)
	case ULP_OP_RD_REG:
		return fmt.Sprintf("RD_REG %s, %d, %d", ulpRegName(in.reg), in.low, in.high)
	case ULP_OP_END:
		return "END"
	case ULP_OP_HALT:
		return "HALT"
	}
	return fmt.Sprintf(".long $%08X", w)
}

func ulpRegName(reg uint32) string {
	if name, ok := ulpRegNames[reg]; ok {
		return name
	}
	return fmt.Sprintf("$%08X", reg)
}

// FormatListing renders disassembled lines as text, one per line.
func FormatListing(lines []DisassembledLine) string {
	var out []byte
	for _, l := range lines {
		marker := "  "
		if l.IsPC {
			marker = "> "
		}
		out = fmt.Appendf(out, "%s%04d  %s  %s\n", marker, l.Address, l.HexBytes, l.Mnemonic)
	}
	return string(out)
}
