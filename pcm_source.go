package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// PCMSource streams interleaved little-endian 16-bit PCM. Reads return whole
// frames where the decoder allows it; FrameWriter copes with the rest.
type PCMSource interface {
	io.ReadCloser
	SampleRate() int
	Channels() int
}

// PCMOpener opens a source from a seekable file.
type PCMOpener func(r io.ReadSeeker) (PCMSource, error)

var (
	pcmOpenersMu sync.Mutex
	pcmOpeners   = map[string]PCMOpener{}
)

// RegisterPCMFormat binds a file extension (with dot, lower case) to an opener.
func RegisterPCMFormat(ext string, open PCMOpener) {
	pcmOpenersMu.Lock()
	defer pcmOpenersMu.Unlock()
	pcmOpeners[strings.ToLower(ext)] = open
}

func pcmOpenerFor(path string) (PCMOpener, bool) {
	pcmOpenersMu.Lock()
	defer pcmOpenersMu.Unlock()
	open, ok := pcmOpeners[strings.ToLower(filepath.Ext(path))]
	return open, ok
}

// fileSource closes the underlying file with the decoder.
type fileSource struct {
	PCMSource
	f *os.File
}

func (s *fileSource) Close() error {
	err := s.PCMSource.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenPCMFile opens an audio file by extension.
func OpenPCMFile(path string) (PCMSource, error) {
	open, ok := pcmOpenerFor(path)
	if !ok {
		return nil, fmt.Errorf("unsupported audio file type: %s", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fileSource{PCMSource: src, f: f}, nil
}

// putSample clamps v in [-1, 1] to int16 and stores it little-endian.
func putSample(p []byte, v float64) {
	v = math.Max(-1, math.Min(1, v))
	binary.LittleEndian.PutUint16(p, uint16(int16(math.Round(v*32767))))
}

// ToneSource generates a sine tone, optionally for a limited number of frames.
type ToneSource struct {
	freq     float64
	rate     int
	channels int
	frames   int64 // zero means endless
	pos      int64
}

func NewToneSource(freq float64, rate, channels int, seconds float64) *ToneSource {
	t := &ToneSource{freq: freq, rate: rate, channels: channels}
	if seconds > 0 {
		t.frames = int64(seconds * float64(rate))
	}
	return t
}

func (t *ToneSource) SampleRate() int { return t.rate }
func (t *ToneSource) Channels() int   { return t.channels }
func (t *ToneSource) Close() error    { return nil }

func (t *ToneSource) Read(p []byte) (int, error) {
	frameSize := t.channels * SAMPLE_BYTES
	n := 0
	for len(p)-n >= frameSize {
		if t.frames > 0 && t.pos >= t.frames {
			break
		}
		v := 0.8 * math.Sin(2*math.Pi*t.freq*float64(t.pos)/float64(t.rate))
		for c := 0; c < t.channels; c++ {
			putSample(p[n+c*SAMPLE_BYTES:], v)
		}
		t.pos++
		n += frameSize
	}
	if n == 0 && len(p) >= frameSize {
		return 0, io.EOF
	}
	return n, nil
}

// limitedSource stops a source after a number of frames.
type limitedSource struct {
	PCMSource
	remaining int64
}

// LimitPCMSource caps src at seconds of audio. Zero leaves it unlimited.
func LimitPCMSource(src PCMSource, seconds float64) PCMSource {
	if seconds <= 0 {
		return src
	}
	frameSize := int64(src.Channels() * SAMPLE_BYTES)
	return &limitedSource{PCMSource: src, remaining: int64(seconds*float64(src.SampleRate())) * frameSize}
}

func (l *limitedSource) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.PCMSource.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// registeredPCMFormats lists the known file extensions, sorted.
func registeredPCMFormats() []string {
	pcmOpenersMu.Lock()
	defer pcmOpenersMu.Unlock()
	exts := make([]string, 0, len(pcmOpeners))
	for ext := range pcmOpeners {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
