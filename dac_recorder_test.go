package main

import (
	"context"
	"encoding/binary"
	"io"
	"path/filepath"
	"testing"
)

func TestDACCodeToPCM(t *testing.T) {
	for code, want := range map[uint8]int{0: -32768, 128: 0, 255: 32512, 200: 18432} {
		if got := dacCodeToPCM(code); got != want {
			t.Errorf("dacCodeToPCM(%d) = %d, want %d", code, got, want)
		}
	}
}

// TestDACRecorderWAV verifies recorded pad levels read back through the WAV source.
func TestDACRecorderWAV(t *testing.T) {
	tap := NewDACTap(1000, 100, 64)
	tap.Observe(0, DAC_CHANNEL_1, 200)
	tap.Observe(0, DAC_CHANNEL_2, 50)
	tap.Observe(30, DAC_CHANNEL_1, 0)

	path := filepath.Join(t.TempDir(), "pads.wav")
	rec, err := NewDACRecorder(path, tap, 100)
	if err != nil {
		t.Fatalf("NewDACRecorder: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Frames() != 3 {
		t.Fatalf("recorded %d frames, want 3", rec.Frames())
	}

	src, err := OpenPCMFile(path)
	if err != nil {
		t.Fatalf("OpenPCMFile: %v", err)
	}
	defer src.Close()
	if src.SampleRate() != 100 || src.Channels() != 2 {
		t.Fatalf("rate %d channels %d", src.SampleRate(), src.Channels())
	}
	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 3*4 {
		t.Fatalf("read %d bytes, want 12", len(data))
	}
	for i := 0; i < 3; i++ {
		l := int16(binary.LittleEndian.Uint16(data[4*i:]))
		r := int16(binary.LittleEndian.Uint16(data[4*i+2:]))
		if l != 18432 || r != -19968 {
			t.Fatalf("frame %d = %d/%d, want 18432/-19968", i, l, r)
		}
	}
}
