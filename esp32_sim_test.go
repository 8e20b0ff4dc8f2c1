package main

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type dacLog struct {
	mu        sync.Mutex
	recording bool
	writes    []dacWrite
	limit     int
}

func (l *dacLog) observe(cycle uint64, ch DACChannel, code uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording && (l.limit == 0 || len(l.writes) < l.limit) {
		l.writes = append(l.writes, dacWrite{cycle, ch, code})
	}
}

func (l *dacLog) setRecording(on bool) {
	l.mu.Lock()
	l.recording = on
	l.mu.Unlock()
}

func (l *dacLog) snapshot() []dacWrite {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]dacWrite(nil), l.writes...)
}

// audibleCodes returns the non-mid-scale codes written to ch.
func audibleCodes(writes []dacWrite, ch DACChannel) []uint8 {
	var out []uint8
	for _, w := range writes {
		if w.ch == ch && w.code != DAC_MID_CODE {
			out = append(out, w.code)
		}
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the ULP")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSimulatedESP32PlaysFrames runs the audio output against the real-time
// simulated chip and checks four full-scale frames come out of both pads.
func TestSimulatedESP32PlaysFrames(t *testing.T) {
	chip := NewSimulatedESP32(DefaultESP32Config())
	log := &dacLog{}
	chip.DAC().AddListener(log.observe)

	o := NewULPAudioOutput(chip)
	o.SetWriteRetry(time.Millisecond)
	if err := o.Begin(AudioConfig{SampleRate: 44100, Channels: 2, BitsPerSample: 16}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// enabling a pad writes its reset code 0, so start after Begin
	log.setRecording(true)
	frames := pcm16(32767, 32767, -32768, -32768, 32767, 32767, -32768, -32768)
	if n, err := o.Write(frames); err != nil || n != len(frames) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	waitFor(t, 2*time.Second, func() bool {
		w := log.snapshot()
		return len(audibleCodes(w, DAC_CHANNEL_1)) >= 4 && len(audibleCodes(w, DAC_CHANNEL_2)) >= 4
	})
	if err := o.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := []uint8{255, 0, 255, 0}
	writes := log.snapshot()
	for _, ch := range []DACChannel{DAC_CHANNEL_1, DAC_CHANNEL_2} {
		got := audibleCodes(writes, ch)
		if len(got) != len(want) {
			t.Fatalf("%v played %v, want %v", ch, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%v played %v, want %v", ch, got, want)
			}
		}
	}
	if chip.DAC().Level(DAC_CHANNEL_1) != DAC_MID_CODE || chip.DAC().Level(DAC_CHANNEL_2) != DAC_MID_CODE {
		t.Fatal("pads not parked at mid-scale")
	}

	waitFor(t, time.Second, chip.Core().Halted)
	index := chip.Memory().Read32(ULP_INDEX_ADDR)
	time.Sleep(10 * time.Millisecond)
	if chip.Memory().Read32(ULP_INDEX_ADDR) != index {
		t.Fatal("read index still moving after End")
	}
	if err := chip.Err(); err != nil {
		t.Fatalf("ULP fault: %v", err)
	}
}

// TestSimulatedESP32LoopPeriod verifies that on a drifting oscillator the
// calibrated program spaces samples by exactly clock/rate ULP cycles.
func TestSimulatedESP32LoopPeriod(t *testing.T) {
	cfg := DefaultESP32Config()
	cfg.Paced = false
	cfg.DriftPPM = 30000
	chip := NewSimulatedESP32(cfg)
	log := &dacLog{limit: 200}
	chip.DAC().AddListener(log.observe)

	o := NewULPAudioOutput(chip)
	if err := o.Begin(AudioConfig{SampleRate: 8000, Channels: 2, BitsPerSample: 16}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	log.setRecording(true)
	waitFor(t, 2*time.Second, func() bool { return len(log.snapshot()) >= 200 })
	log.setRecording(false)
	st := o.Stats()
	if err := o.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	period := uint64(st.ClockHz / 8000)
	var prev uint64
	seen := 0
	for _, w := range log.snapshot() {
		if w.ch != DAC_CHANNEL_1 {
			continue
		}
		if seen > 0 && w.cycle-prev != period {
			t.Fatalf("DAC1 write %d came %d cycles after the previous one, want %d", seen, w.cycle-prev, period)
		}
		prev = w.cycle
		seen++
	}
	if seen < 50 {
		t.Fatalf("only %d DAC1 writes recorded", seen)
	}
}

func TestSimulatedESP32RunULPErrors(t *testing.T) {
	chip := NewSimulatedESP32(ESP32Config{SlowMemoryWords: 64, Paced: false})
	if err := chip.RunULP(64); !errors.Is(err, ErrAddressOutOfRange) {
		t.Fatalf("RunULP(64): %v", err)
	}
	chip.StopULP()

	chip.Memory().Write32(0, 0x30000000)
	if err := chip.RunULP(0); err != nil {
		t.Fatalf("RunULP: %v", err)
	}
	waitFor(t, time.Second, chip.Core().Halted)
	chip.StopULP()
	if err := chip.Err(); !errors.Is(err, ErrIllegalInstruction) {
		t.Fatalf("Err = %v, want ErrIllegalInstruction", err)
	}
}

func TestSimulatedESP32DACDriver(t *testing.T) {
	chip := NewSimulatedESP32(ESP32Config{SlowMemoryWords: 64})
	if err := chip.DACEnable(DAC_CHANNEL_2); err != nil {
		t.Fatalf("DACEnable: %v", err)
	}
	if err := chip.DACVoltage(DAC_CHANNEL_2, 42); err != nil {
		t.Fatalf("DACVoltage: %v", err)
	}
	if !chip.DAC().Enabled(DAC_CHANNEL_2) || chip.DAC().Level(DAC_CHANNEL_2) != 42 {
		t.Fatalf("DAC2 enabled=%v level=%d", chip.DAC().Enabled(DAC_CHANNEL_2), chip.DAC().Level(DAC_CHANNEL_2))
	}
	if chip.DAC().Enabled(DAC_CHANNEL_1) {
		t.Fatal("DAC1 should still be off")
	}
	if err := chip.DACVoltage(DACChannel(0), 1); !errors.Is(err, ErrInvalidDAC) {
		t.Fatalf("DACVoltage(0): %v", err)
	}
}
