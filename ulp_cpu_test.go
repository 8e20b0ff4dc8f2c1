package main

import (
	"errors"
	"testing"
	"time"
)

func newTestULP(words int, program []uint32) (*RTCMemoryBus, *ULPCore) {
	bus := NewRTCMemoryBus(words)
	bus.LoadWords(0, program)
	core := NewULPCore(bus)
	core.Reset(0)
	return bus, core
}

func stepULP(t *testing.T, core *ULPCore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := core.Step(); err != nil {
			t.Fatalf("step %d at PC %d: %v", i, core.PC, err)
		}
	}
}

// TestULPCoreALU verifies immediate and register ALU forms, including 16-bit wrap.
func TestULPCoreALU(t *testing.T) {
	_, core := newTestULP(32, []uint32{
		ulpMOVI(R1, 0x1200),
		ulpADDI(R2, R1, 1),
		ulpALUReg(ULP_ALU_SUB, R3, R2, R1),
		ulpLSHI(R0, R3, 4),
		ulpALUReg(ULP_ALU_OR, R0, R0, R2),
		ulpRSHI(R1, R0, 4),
		ulpANDI(R2, R0, 0xFF),
		ulpADDI(R3, R3, 0xFFFF),
	})
	stepULP(t, core, 8)

	want := [4]uint16{0x1211, 0x0121, 0x0011, 0x0000}
	if core.R != want {
		t.Fatalf("registers = %04X, want %04X", core.R, want)
	}
	if core.PC != 8 {
		t.Fatalf("PC = %d, want 8", core.PC)
	}
	if got := core.Cycles(); got != 8*ULP_CYCLES_ALU {
		t.Fatalf("cycles = %d, want %d", got, 8*ULP_CYCLES_ALU)
	}
}

// TestULPCoreStoreTagsPC verifies ST puts the storing PC in the upper bits and LD ignores it.
func TestULPCoreStoreTagsPC(t *testing.T) {
	bus, core := newTestULP(32, []uint32{
		ulpMOVI(R0, 5),
		ulpMOVI(R1, 0xBEEF),
		ulpST(R1, R0, 10),
		ulpLD(R2, R0, 10),
	})
	stepULP(t, core, 4)

	if got := bus.Read32(15); got != 2<<21|0xBEEF {
		t.Fatalf("stored word = 0x%08X, want 0x%08X", got, uint32(2<<21|0xBEEF))
	}
	if core.R[R2] != 0xBEEF {
		t.Fatalf("LD gave 0x%04X, want 0xBEEF", core.R[R2])
	}
	if got := core.Cycles(); got != 2*ULP_CYCLES_ALU+ULP_CYCLES_ST+ULP_CYCLES_LD {
		t.Fatalf("cycles = %d", got)
	}
}

// TestULPCoreBranches verifies conditional, register and absolute jumps.
func TestULPCoreBranches(t *testing.T) {
	program := make([]uint32, 32)
	copy(program, []uint32{
		ulpMOVI(R0, 7),
		ulpBL(3, 5),  // 7 < 5 is false, falls through
		ulpBGE(2, 7), // taken to 4
		ulpHALT(),
		ulpMOVI(R2, 16),
		ulpBXR(R2),
	})
	program[16] = ulpBXI(20)
	program[20] = ulpHALT()
	_, core := newTestULP(32, program)

	wantPCs := []uint32{1, 2, 4, 5, 16, 20}
	for i, want := range wantPCs {
		stepULP(t, core, 1)
		if core.PC != want {
			t.Fatalf("after step %d PC = %d, want %d", i, core.PC, want)
		}
	}
	stepULP(t, core, 1)
	if !core.Halted() {
		t.Fatal("core should be halted")
	}
	if got := core.Cycles(); got != 6+4+4+6+4+4+2 {
		t.Fatalf("cycles = %d, want 30", got)
	}
}

// TestULPCoreEndAndHalt verifies END stops the wakeup timer and HALT freezes the core.
func TestULPCoreEndAndHalt(t *testing.T) {
	_, core := newTestULP(8, ulpHaltProgram())
	if !core.TimerOn() {
		t.Fatal("Reset should arm the wakeup timer")
	}
	stepULP(t, core, 2)
	if core.TimerOn() {
		t.Fatal("END should clear the wakeup timer")
	}
	if !core.Halted() {
		t.Fatal("HALT should halt the core")
	}
	cycles := core.Cycles()
	cost, err := core.Step()
	if err != nil || cost != 0 || core.Cycles() != cycles {
		t.Fatalf("halted step: cost=%d err=%v cycles=%d", cost, err, core.Cycles())
	}
}

// TestULPCoreFaults verifies illegal opcodes and out-of-range stores are reported.
func TestULPCoreFaults(t *testing.T) {
	_, core := newTestULP(8, []uint32{0x30000000})
	if _, err := core.Step(); !errors.Is(err, ErrIllegalInstruction) {
		t.Fatalf("err = %v, want ErrIllegalInstruction", err)
	}

	_, core = newTestULP(8, []uint32{ulpMOVI(R0, 0x7FF), ulpST(R1, R0, 0)})
	stepULP(t, core, 1)
	if _, err := core.Step(); !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("err = %v, want ErrAddressOutOfRange", err)
	}

	_, core = newTestULP(8, []uint32{ulpBXI(100)})
	stepULP(t, core, 1)
	if _, err := core.Step(); !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("err = %v, want ErrAddressOutOfRange for PC", err)
	}
}

// TestULPCoreWritesDAC verifies WR_REG reaches the DAC pads through the register bus.
func TestULPCoreWritesDAC(t *testing.T) {
	bus, core := newTestULP(8, []uint32{
		ulpWRREG(RTC_IO_PAD_DAC1_REG, RTC_IO_PDAC_DAC_LOW, RTC_IO_PDAC_DAC_HIGH, 200),
		ulpWRREG(RTC_IO_PAD_DAC2_REG, RTC_IO_PDAC_DAC_LOW, RTC_IO_PDAC_DAC_HIGH, 7),
		ulpHALT(),
	})
	dac := NewDACPeripheral(bus, core.Cycles)
	var cycles []uint64
	dac.AddListener(func(cycle uint64, ch DACChannel, code uint8) {
		cycles = append(cycles, cycle)
	})
	stepULP(t, core, 3)

	if dac.Level(DAC_CHANNEL_1) != 200 || dac.Level(DAC_CHANNEL_2) != 7 {
		t.Fatalf("levels = %d/%d, want 200/7", dac.Level(DAC_CHANNEL_1), dac.Level(DAC_CHANNEL_2))
	}
	if len(cycles) != 2 || cycles[0] != 0 || cycles[1] != ULP_CYCLES_WR_REG {
		t.Fatalf("write cycles = %v, want [0 %d]", cycles, ULP_CYCLES_WR_REG)
	}
}

type dacWrite struct {
	cycle uint64
	ch    DACChannel
	code  uint8
}

// runDACLoop loads an assembled image over a preloaded ring and steps the core
// until n DAC writes have been observed.
func runDACLoop(t *testing.T, mask int, ring []uint16, n int) ([]dacWrite, *RTCMemoryBus, *ULPImage) {
	t.Helper()
	img, err := AssembleULPAudio(1053, 8_000_000, 8000, mask)
	if err != nil {
		t.Fatalf("AssembleULPAudio: %v", err)
	}
	bus := NewRTCMemoryBus(1053)
	NewRingChannel(bus, img.Layout).Reset()
	for i, w := range ring {
		bus.Write32(img.Layout.BufferStart+uint32(i), uint32(w))
	}
	img.Load(bus)

	core := NewULPCore(bus)
	dac := NewDACPeripheral(bus, core.Cycles)
	var writes []dacWrite
	dac.AddListener(func(cycle uint64, ch DACChannel, code uint8) {
		writes = append(writes, dacWrite{cycle, ch, code})
	})
	core.Reset(0)
	for steps := 0; len(writes) < n; steps++ {
		if steps > n*100 {
			t.Fatalf("only %d DAC writes after %d steps", len(writes), steps)
		}
		if _, err := core.Step(); err != nil {
			t.Fatalf("step at PC %d: %v", core.PC, err)
		}
	}
	return writes, bus, img
}

// TestULPDACLoopStereoPeriod verifies the stereo loop writes DAC1 once per sample
// period across ring wraps, with DAC2 following at a fixed offset.
func TestULPDACLoopStereoPeriod(t *testing.T) {
	ring := []uint16{0x00FF, 0xFF00, 0x1020, 0x3040, 0x5060, 0x7090, 0xA0B0, 0xC0D0}
	writes, bus, img := runDACLoop(t, 3, ring, 48)

	var dac1, dac2 []dacWrite
	for _, w := range writes {
		if w.ch == DAC_CHANNEL_1 {
			dac1 = append(dac1, w)
		} else {
			dac2 = append(dac2, w)
		}
	}
	if len(dac1) != 24 || len(dac2) != 24 {
		t.Fatalf("DAC1/DAC2 writes = %d/%d, want 24/24", len(dac1), len(dac2))
	}
	for i := 1; i < len(dac1); i++ {
		if d := dac1[i].cycle - dac1[i-1].cycle; d != 1000 {
			t.Fatalf("DAC1 write %d came %d cycles after the previous one, want 1000", i, d)
		}
	}
	for i := range dac2 {
		if d := dac2[i].cycle - dac1[i].cycle; d != ULP_LOOP_CYCLES_HALF2 {
			t.Fatalf("DAC2 write %d lags DAC1 by %d cycles, want %d", i, d, ULP_LOOP_CYCLES_HALF2)
		}
	}
	for i, w := range ring {
		if dac1[i].code != uint8(w) || dac2[i].code != uint8(w>>8) {
			t.Fatalf("sample %d played %d/%d, want %d/%d", i, dac1[i].code, dac2[i].code, uint8(w), uint8(w>>8))
		}
	}
	for i := len(ring); i < len(dac1); i++ {
		if dac1[i].code != DAC_MID_CODE || dac2[i].code != DAC_MID_CODE {
			t.Fatalf("second lap sample %d played %d/%d, want silence", i, dac1[i].code, dac2[i].code)
		}
	}
	for i := uint32(0); i < img.Layout.Capacity; i++ {
		if got := bus.Read16(img.Layout.BufferStart + i); got != SILENCE_WORD {
			t.Fatalf("slot %d = 0x%04X after playback, want silence", i, got)
		}
	}
}

// TestULPDACLoopMonoPeriod verifies mono output writes one byte per sample period,
// low byte first, on a single pad.
func TestULPDACLoopMonoPeriod(t *testing.T) {
	ring := []uint16{0x0201, 0x0403, 0x0605}
	writes, _, _ := runDACLoop(t, 1, ring, 40)

	for i, w := range writes {
		if w.ch != DAC_CHANNEL_1 {
			t.Fatalf("write %d went to %v, want DAC1", i, w.ch)
		}
		if i > 0 {
			if d := w.cycle - writes[i-1].cycle; d != 1000 {
				t.Fatalf("write %d came %d cycles after the previous one, want 1000", i, d)
			}
		}
	}
	for i := 0; i < 6; i++ {
		if writes[i].code != uint8(i+1) {
			t.Fatalf("byte %d played %d, want %d", i, writes[i].code, i+1)
		}
	}
}

// TestULPDACLoopPublishesIndex verifies the index cell tracks the slot being played.
func TestULPDACLoopPublishesIndex(t *testing.T) {
	writes, bus, img := runDACLoop(t, 3, nil, 2*5)
	if len(writes) != 10 {
		t.Fatalf("writes = %d", len(writes))
	}
	ring := NewRingChannel(bus, img.Layout)
	if got := ring.ReadIndex(); got != 4 {
		t.Fatalf("read index = %d after 5 samples, want 4", got)
	}
}

// TestULPCoreExecuteStop verifies Stop ends a free-running Execute, even when
// issued before Execute starts.
func TestULPCoreExecuteStop(t *testing.T) {
	_, core := newTestULP(8, []uint32{ulpBXI(0)})
	core.Stop()
	if err := core.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	core.Reset(0)
	done := make(chan error, 1)
	go func() { done <- core.Execute() }()
	time.Sleep(5 * time.Millisecond)
	core.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after Stop")
	}
	if core.IsRunning() {
		t.Fatal("core still reports running")
	}
}

// TestULPHaltProgramStopsCore verifies the halt image ends Execute on its own.
func TestULPHaltProgramStopsCore(t *testing.T) {
	_, core := newTestULP(8, ulpHaltProgram())
	if err := core.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !core.Halted() || core.TimerOn() {
		t.Fatalf("halted=%v timer=%v, want halted with timer off", core.Halted(), core.TimerOn())
	}
}
