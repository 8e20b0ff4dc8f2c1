package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	DAC_RECORD_BITS     = 16
	DAC_RECORD_CHANNELS = 2 // DAC1 left, DAC2 right
	DAC_RECORD_FORMAT   = 1 // WAVE_FORMAT_PCM
	DAC_RECORD_POLL     = 10 * time.Millisecond
)

// dacCodeToPCM maps an 8-bit DAC code back onto the signed 16-bit range.
func dacCodeToPCM(code uint8) int {
	return (int(code) - DAC_MID_CODE) << 8
}

// DACRecorder writes what the DAC pads output, as a stereo 16-bit WAV file.
type DACRecorder struct {
	f      *os.File
	enc    *wav.Encoder
	tap    *DACTap
	frames []DACFrame
	buf    *audio.IntBuffer
	count  uint64
}

func NewDACRecorder(path string, tap *DACTap, sampleRate int) (*DACRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &DACRecorder{
		f:      f,
		enc:    wav.NewEncoder(f, sampleRate, DAC_RECORD_BITS, DAC_RECORD_CHANNELS, DAC_RECORD_FORMAT),
		tap:    tap,
		frames: make([]DACFrame, 4096),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: DAC_RECORD_CHANNELS, SampleRate: sampleRate},
			Data:           make([]int, 0, 4096*DAC_RECORD_CHANNELS),
			SourceBitDepth: DAC_RECORD_BITS,
		},
	}, nil
}

// Drain writes every frame currently buffered in the tap.
func (r *DACRecorder) Drain() error {
	for {
		n := r.tap.Read(r.frames)
		if n == 0 {
			return nil
		}
		r.buf.Data = r.buf.Data[:0]
		for _, fr := range r.frames[:n] {
			r.buf.Data = append(r.buf.Data, dacCodeToPCM(fr.DAC1), dacCodeToPCM(fr.DAC2))
		}
		if err := r.enc.Write(r.buf); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		r.count += uint64(n)
	}
}

// Run drains the tap until ctx ends, then finishes the file.
func (r *DACRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(DAC_RECORD_POLL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Drain(); err != nil {
				r.Close()
				return err
			}
			return r.Close()
		case <-ticker.C:
			if err := r.Drain(); err != nil {
				r.Close()
				return err
			}
		}
	}
}

// Frames returns the number of frames written so far.
func (r *DACRecorder) Frames() uint64 {
	return r.count
}

// Close finalises the WAV header and closes the file.
func (r *DACRecorder) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.enc.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	return err
}
