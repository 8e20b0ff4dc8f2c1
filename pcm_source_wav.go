package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrNotWavFile = errors.New("not a WAV file")

func init() {
	RegisterPCMFormat(".wav", OpenWAVSource)
}

// intBufferSource adapts go-audio decoders, which hand out int samples, to
// 16-bit PCM bytes.
type intBufferSource struct {
	rate     int
	channels int
	bitDepth int
	bias     int // subtracted before scaling; 8-bit WAV is unsigned
	read     func(buf *audio.IntBuffer) (int, error)
	buf      *audio.IntBuffer
}

func (s *intBufferSource) SampleRate() int { return s.rate }
func (s *intBufferSource) Channels() int   { return s.channels }
func (s *intBufferSource) Close() error    { return nil }

func (s *intBufferSource) Read(p []byte) (int, error) {
	samples := (len(p) / (s.channels * SAMPLE_BYTES)) * s.channels
	if samples == 0 {
		return 0, nil
	}
	if s.buf == nil || cap(s.buf.Data) < samples {
		s.buf = &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: s.channels, SampleRate: s.rate},
			Data:           make([]int, samples),
			SourceBitDepth: s.bitDepth,
		}
	}
	s.buf.Data = s.buf.Data[:samples]
	n, err := s.read(s.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	shift := s.bitDepth - 16
	for i, v := range s.buf.Data[:n] {
		v -= s.bias
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		binary.LittleEndian.PutUint16(p[i*SAMPLE_BYTES:], uint16(int16(v)))
	}
	return n * SAMPLE_BYTES, nil
}

// OpenWAVSource decodes integer PCM WAV of any common bit depth into 16-bit.
func OpenWAVSource(r io.ReadSeeker) (PCMSource, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 || dec.NumChans == 0 {
		return nil, fmt.Errorf("%w: %d-bit, %d channels", ErrUnsupportedBitDepth, dec.BitDepth, dec.NumChans)
	}
	src := &intBufferSource{
		rate:     int(dec.SampleRate),
		channels: int(dec.NumChans),
		bitDepth: int(dec.BitDepth),
		read:     dec.PCMBuffer,
	}
	if dec.BitDepth == 8 {
		src.bias = 128
	}
	return src, nil
}
