/*
ulp_assembler.go - DAC pump program and dispatch tables for the ULP

The ULP writes a DAC code with WR_REG, and WR_REG only takes the value as a literal baked
into the instruction. To emit a runtime byte the control loop jumps into a table of 256
two-word entries, one per code: WR_REG with that code followed by BXI back into the loop.

Slow memory layout (words):

    0 .. 19            control loop
    20                 read-index cell, written only by the ULP
    21 .. 21+cap-1     ring of packed sample words (low byte first output, high byte second)
    size-1024 ..       dispatch table 2 (high byte), returns to word 14
    size-512 ..        dispatch table 1 (low byte), returns to word 9

Control loop:

     0  MOVI  R3, 0
     1  DELAY dt                wrap path enters here
     2  MOVI  R0, 0
     3  ST    R0, R3, index     publish the read index
     4  LD    R1, R0, buf
     5  ANDI  R2, R1, 0xFF
     6  LSHI  R2, R2, 1
     7  ADDI  R2, R2, table1
     8  BXR   R2
     9  DELAY dt2               zero in stereo, half period in mono
    10  ANDI  R2, R1, 0xFF00
    11  RSHI  R2, R2, 7
    12  ADDI  R2, R2, table2
    13  BXR   R2
    14  MOVI  R1, 0x8080
    15  ST    R1, R0, buf       slot just read back to silence
    16  ADDI  R0, R0, 1
    17  BGE   1, capacity       wrap
    18  DELAY dt+2              pads the short path to the wrap path's length
    19  BXI   3

Both paths through the loop cost the same number of cycles, so consecutive first-table
writes are exactly one sample period apart.
*/

package main

import "fmt"

// ULPLayout places program, index cell, ring and tables in slow memory.
type ULPLayout struct {
	MemoryWords uint32
	IndexAddr   uint32
	BufferStart uint32
	Capacity    uint32
	Table1Addr  uint32
	Table2Addr  uint32
}

// NewULPLayout computes the layout for a slow memory of memWords words.
func NewULPLayout(memWords uint32) (ULPLayout, error) {
	fixed := uint32(ULP_BUFFER_START + 2*DAC_TABLE_WORDS + ULP_MIN_RING_WORDS)
	if memWords < fixed {
		return ULPLayout{}, fmt.Errorf("%w: %d words, need at least %d", ErrCapacity, memWords, fixed)
	}
	if memWords-1 > ULP_ADDR_MAX {
		return ULPLayout{}, fmt.Errorf("%w: %d words exceed the 11-bit address range", ErrCapacity, memWords)
	}
	return ULPLayout{
		MemoryWords: memWords,
		IndexAddr:   ULP_INDEX_ADDR,
		BufferStart: ULP_BUFFER_START,
		Capacity:    memWords - 2*DAC_TABLE_WORDS - ULP_BUFFER_START,
		Table1Addr:  memWords - DAC_TABLE_WORDS,
		Table2Addr:  memWords - 2*DAC_TABLE_WORDS,
	}, nil
}

// ULPLoopDelays returns the DELAY operands that make the control loop run at
// sampleRate on a ULP clocked at clockHz. Stereo uses a single delay per
// iteration. Mono splits the iteration into two sample periods, one per byte.
func ULPLoopDelays(clockHz, sampleRate uint32, stereo bool) (dt, dt2 uint32, err error) {
	if sampleRate == 0 {
		return 0, 0, fmt.Errorf("%w: zero sample rate", ErrSampleRateUnreachable)
	}
	period := int64(clockHz / sampleRate)
	var d1, d2 int64
	if stereo {
		d1 = period - ULP_LOOP_CYCLES_STEREO
	} else {
		d1 = period - ULP_LOOP_CYCLES_HALF1
		d2 = period - ULP_LOOP_CYCLES_HALF2
	}
	// word 18 delays dt+2, so two cycles of headroom are reserved
	if d1 < 0 || d2 < 0 || d1+2 > ULP_IMM_MAX || d2 > ULP_IMM_MAX {
		return 0, 0, fmt.Errorf("%w: %d Hz at %d Hz ULP clock gives %d cycles per sample", ErrSampleRateUnreachable, sampleRate, clockHz, period)
	}
	return uint32(d1), uint32(d2), nil
}

// assembleDACLoop encodes the control loop for a layout and delay pair.
func assembleDACLoop(l ULPLayout, dt, dt2 uint32) []uint32 {
	return []uint32{
		ulpMOVI(R3, 0),
		ulpDELAY(dt),
		ulpMOVI(R0, 0),
		ulpST(R0, R3, l.IndexAddr),
		ulpLD(R1, R0, l.BufferStart),
		ulpANDI(R2, R1, 0xFF),
		ulpLSHI(R2, R2, 1),
		ulpADDI(R2, R2, l.Table1Addr),
		ulpBXR(R2),
		ulpDELAY(dt2),
		ulpANDI(R2, R1, 0xFF00),
		ulpRSHI(R2, R2, 7),
		ulpADDI(R2, R2, l.Table2Addr),
		ulpBXR(R2),
		ulpMOVI(R1, SILENCE_WORD),
		ulpST(R1, R0, l.BufferStart),
		ulpADDI(R0, R0, 1),
		ulpBGE(1-17, l.Capacity),
		ulpDELAY(dt + 2),
		ulpBXI(ULP_LOOP_ENTRY),
	}
}

// buildDACTable returns the 256 WR_REG/BXI pairs that write each code to ch
// and jump back to ret.
func buildDACTable(ch DACChannel, ret uint32) []uint32 {
	table := make([]uint32, 0, DAC_TABLE_WORDS)
	for code := uint32(0); code < DAC_TABLE_ENTRIES; code++ {
		table = append(table,
			ulpWRREG(ch.padReg(), RTC_IO_PDAC_DAC_LOW, RTC_IO_PDAC_DAC_HIGH, code),
			ulpBXI(ret))
	}
	return table
}

// tableTargets maps an active-output mask onto the pad each table drives.
// With a single active pad both tables drive it.
func tableTargets(mask int) (DACChannel, DACChannel, error) {
	switch mask {
	case 1:
		return DAC_CHANNEL_1, DAC_CHANNEL_1, nil
	case 2:
		return DAC_CHANNEL_2, DAC_CHANNEL_2, nil
	case 3:
		return DAC_CHANNEL_1, DAC_CHANNEL_2, nil
	default:
		return 0, 0, fmt.Errorf("%w: output mask %d", ErrInvalidDAC, mask)
	}
}

// ULPImage is an assembled DAC pump ready to load into slow memory.
type ULPImage struct {
	Layout  ULPLayout
	Program []uint32
	Table1  []uint32
	Table2  []uint32
	Mask    int
	Stereo  bool
	Delay   uint32
	Delay2  uint32
}

// AssembleULPAudio builds the control loop and both dispatch tables.
func AssembleULPAudio(memWords, clockHz, sampleRate uint32, mask int) (*ULPImage, error) {
	layout, err := NewULPLayout(memWords)
	if err != nil {
		return nil, err
	}
	ch1, ch2, err := tableTargets(mask)
	if err != nil {
		return nil, err
	}
	stereo := mask == 3
	dt, dt2, err := ULPLoopDelays(clockHz, sampleRate, stereo)
	if err != nil {
		return nil, err
	}
	img := &ULPImage{
		Layout:  layout,
		Program: assembleDACLoop(layout, dt, dt2),
		Table1:  buildDACTable(ch1, ULP_RET_ADDR_1),
		Table2:  buildDACTable(ch2, ULP_RET_ADDR_2),
		Mask:    mask,
		Stereo:  stereo,
		Delay:   dt,
		Delay2:  dt2,
	}
	if len(img.Program) != ULP_PROGRAM_WORDS {
		return nil, fmt.Errorf("%w: program is %d words", ErrCapacity, len(img.Program))
	}
	return img, nil
}

// Load writes program and tables into slow memory. The ring and index cell
// are left to the ring channel.
func (img *ULPImage) Load(mem SharedWordMemory) {
	storeWords(mem, 0, img.Program)
	storeWords(mem, img.Layout.Table2Addr, img.Table2)
	storeWords(mem, img.Layout.Table1Addr, img.Table1)
}

// Listing disassembles the control loop followed by both tables.
func (img *ULPImage) Listing() []DisassembledLine {
	lines := DisassembleULP(img.Program, 0)
	lines = append(lines, DisassembleULP(img.Table2, img.Layout.Table2Addr)...)
	lines = append(lines, DisassembleULP(img.Table1, img.Layout.Table1Addr)...)
	return lines
}

// ulpHaltProgram stops the wakeup timer and halts the core.
func ulpHaltProgram() []uint32 {
	return []uint32{ulpEND(), ulpHALT()}
}

func storeWords(mem SharedWordMemory, addr uint32, words []uint32) {
	for i, w := range words {
		mem.Write32(addr+uint32(i), w)
	}
}
