package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func int16At(p []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(p[2*i:]))
}

func TestToneSource(t *testing.T) {
	src := NewToneSource(2, 16, 2, 0.5)
	buf := make([]byte, 64)
	n, err := src.Read(buf)
	if err != nil || n != 8*4 {
		t.Fatalf("Read = %d, %v, want 32 bytes", n, err)
	}
	if int16At(buf, 0) != 0 || int16At(buf, 1) != 0 {
		t.Fatal("tone should start at zero")
	}
	if l, r := int16At(buf, 2), int16At(buf, 3); l != 18536 || r != l {
		t.Fatalf("frame 1 = %d/%d, want 18536 on both channels", l, r)
	}
	if _, err := src.Read(buf); err != io.EOF {
		t.Fatalf("Read past the end: %v, want EOF", err)
	}
}

func TestLimitPCMSource(t *testing.T) {
	src := LimitPCMSource(NewToneSource(1, 10, 1, 0), 0.5)
	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 5*2 {
		t.Fatalf("read %d bytes, want 10", len(data))
	}
	tone := NewToneSource(1, 10, 1, 0)
	if LimitPCMSource(tone, 0) != PCMSource(tone) {
		t.Fatal("zero limit should return the source itself")
	}
}

// TestLuaSource verifies scripted samples, clamping and the right-channel default.
func TestLuaSource(t *testing.T) {
	tests := []struct {
		name string
		code string
		want []int16
	}{
		{"mono ramp", "rate = 4 channels = 1 duration = 0.75\nfunction sample(n) return n - 1 end", []int16{-32767, 0, 32767}},
		{"stereo pair", "rate = 4 duration = 0.5\nfunction sample(n, rate) return 0.5, -0.5 end", []int16{16384, -16384, 16384, -16384}},
		{"right defaults to left", "rate = 4 duration = 0.25\nfunction sample() return 0.25 end", []int16{8192, 8192}},
	}
	for _, tt := range tests {
		src, err := NewLuaSource(tt.code)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			t.Fatalf("%s: ReadAll: %v", tt.name, err)
		}
		var got []int16
		for i := 0; i < len(data)/2; i++ {
			got = append(got, int16At(data, i))
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: samples %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLuaSourceErrors(t *testing.T) {
	if _, err := NewLuaSource("x = 1"); !errors.Is(err, ErrLuaNoSampleFunc) {
		t.Errorf("no sample function: %v", err)
	}
	if _, err := NewLuaSource("function sample( return"); err == nil {
		t.Error("syntax error accepted")
	}
	if _, err := NewLuaSource("channels = 3 function sample() return 0 end"); !errors.Is(err, ErrUnsupportedChannels) {
		t.Errorf("3 channels: %v", err)
	}

	src, err := NewLuaSource("function sample() error('boom') end")
	if err != nil {
		t.Fatalf("NewLuaSource: %v", err)
	}
	defer src.Close()
	if _, err := src.Read(make([]byte, 4)); err == nil {
		t.Fatal("script error not reported")
	}
}

// TestOpenPCMFile verifies dispatch by extension and file cleanup.
func TestOpenPCMFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ramp.LUA")
	if err := os.WriteFile(path, []byte("channels = 1 duration = 1\nfunction sample(n) return 0 end"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenPCMFile(path)
	if err != nil {
		t.Fatalf("OpenPCMFile: %v", err)
	}
	if src.Channels() != 1 || src.SampleRate() != DEFAULT_SAMPLE_RATE {
		t.Fatalf("channels %d rate %d", src.Channels(), src.SampleRate())
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := OpenPCMFile(filepath.Join(dir, "song.xyz")); err == nil {
		t.Fatal("unknown extension accepted")
	}
	if _, err := OpenPCMFile(filepath.Join(dir, "missing.wav")); err == nil {
		t.Fatal("missing file accepted")
	}

	bogus := filepath.Join(dir, "bogus.wav")
	if err := os.WriteFile(bogus, []byte("not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenPCMFile(bogus); !errors.Is(err, ErrNotWavFile) {
		t.Fatalf("bogus wav: %v", err)
	}
}

// wav8 builds a mono 8-bit PCM WAV file around the given unsigned samples.
func wav8(rate int, samples ...byte) []byte {
	var b bytes.Buffer
	le := func(v any) { binary.Write(&b, binary.LittleEndian, v) }
	b.WriteString("RIFF")
	le(uint32(36 + len(samples)))
	b.WriteString("WAVEfmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(1))
	le(uint32(rate))
	le(uint32(rate))
	le(uint16(1))
	le(uint16(8))
	b.WriteString("data")
	le(uint32(len(samples)))
	b.Write(samples)
	return b.Bytes()
}

// TestWAVSource8Bit verifies unsigned 8-bit WAV is centred on zero.
func TestWAVSource8Bit(t *testing.T) {
	src, err := OpenWAVSource(bytes.NewReader(wav8(8000, 128, 128, 255, 0)))
	if err != nil {
		t.Fatalf("OpenWAVSource: %v", err)
	}
	if src.SampleRate() != 8000 || src.Channels() != 1 {
		t.Fatalf("rate %d channels %d", src.SampleRate(), src.Channels())
	}
	data, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []int16{0, 0, 32512, -32768}
	if len(data) != 2*len(want) {
		t.Fatalf("read %d bytes, want %d", len(data), 2*len(want))
	}
	for i, w := range want {
		if got := int16At(data, i); got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestRegisteredPCMFormats(t *testing.T) {
	formats := registeredPCMFormats()
	for _, ext := range []string{".aif", ".aiff", ".lua", ".mp3", ".oga", ".ogg", ".wav"} {
		if !slices.Contains(formats, ext) {
			t.Errorf("%s not registered, have %v", ext, formats)
		}
	}
	if !slices.IsSorted(formats) {
		t.Errorf("formats not sorted: %v", formats)
	}
}
