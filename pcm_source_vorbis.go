package main

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

func init() {
	RegisterPCMFormat(".ogg", OpenVorbisSource)
	RegisterPCMFormat(".oga", OpenVorbisSource)
}

type vorbisSource struct {
	dec      *oggvorbis.Reader
	channels int
	buf      []float32
}

func OpenVorbisSource(r io.ReadSeeker) (PCMSource, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("ogg: %w", err)
	}
	return &vorbisSource{dec: dec, channels: dec.Channels()}, nil
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.channels }
func (s *vorbisSource) Close() error    { return nil }

func (s *vorbisSource) Read(p []byte) (int, error) {
	values := (len(p) / (s.channels * SAMPLE_BYTES)) * s.channels
	if values == 0 {
		return 0, nil
	}
	if cap(s.buf) < values {
		s.buf = make([]float32, values)
	}
	s.buf = s.buf[:values]
	// Read returns a multiple of Channels() values
	n, err := s.dec.Read(s.buf)
	for i, v := range s.buf[:n] {
		putSample(p[i*SAMPLE_BYTES:], float64(v))
	}
	return n * SAMPLE_BYTES, err
}
