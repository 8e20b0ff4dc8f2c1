package main

import (
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

func init() {
	RegisterPCMFormat(".mp3", OpenMP3Source)
}

// mp3Source passes go-mp3 output straight through: it already decodes to
// 16-bit little-endian stereo.
type mp3Source struct {
	dec *mp3.Decoder
}

func OpenMP3Source(r io.ReadSeeker) (PCMSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	return &mp3Source{dec: dec}, nil
}

func (s *mp3Source) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Source) Channels() int   { return 2 }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}
