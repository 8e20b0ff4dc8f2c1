package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

var ErrNotAiffFile = errors.New("not an AIFF file")

func init() {
	RegisterPCMFormat(".aif", OpenAIFFSource)
	RegisterPCMFormat(".aiff", OpenAIFFSource)
}

func OpenAIFFSource(r io.ReadSeeker) (PCMSource, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("aiff: missing COMM chunk")
	}
	if dec.BitDepth == 0 || dec.BitDepth > 32 || format.NumChannels == 0 {
		return nil, fmt.Errorf("%w: %d-bit, %d channels", ErrUnsupportedBitDepth, dec.BitDepth, format.NumChannels)
	}
	return &intBufferSource{
		rate:     format.SampleRate,
		channels: format.NumChannels,
		bitDepth: int(dec.BitDepth),
		read:     dec.PCMBuffer,
	}, nil
}
