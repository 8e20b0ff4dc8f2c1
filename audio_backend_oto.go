//go:build !headless

// audio_backend_oto.go - OTO v3 monitor for the DAC pads

/*
██╗   ██╗██╗     ██████╗      █████╗ ██╗   ██╗██████╗ ██╗ ██████╗
██║   ██║██║     ██╔══██╗    ██╔══██╗██║   ██║██╔══██╗██║██╔═══██╗
██║   ██║██║     ██████╔╝    ███████║██║   ██║██║  ██║██║██║   ██║
██║   ██║██║     ██╔═══╝     ██╔══██║██║   ██║██║  ██║██║██║   ██║
╚██████╔╝███████╗██║         ██║  ██║╚██████╔╝██████╔╝██║╚██████╔╝
 ╚═════╝ ╚══════╝╚═╝         ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝ ╚═════╝

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/ulpaudio
License: GPLv3 or later
*/

package main

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

const MONITOR_CHANNELS = 2 // DAC1 left, DAC2 right

type OtoPlayer struct {
	ctx       *oto.Context
	player    *oto.Player
	tap       atomic.Pointer[DACTap] // Atomic for lock-free Read()
	frameBuf  []DACFrame             // Pre-allocated frame buffer
	sampleBuf []float32              // Pre-allocated sample buffer
	last      DACFrame               // held when the tap runs dry
	started   bool
	mutex     sync.Mutex // Only for setup/control operations
}

func init() {
	compiledFeatures = append(compiledFeatures, "monitor:oto")
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: MONITOR_CHANNELS,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &OtoPlayer{
		ctx:     ctx,
		started: false,
		last:    DACFrame{DAC1: DAC_MID_CODE, DAC2: DAC_MID_CODE},
	}, nil
}

func (op *OtoPlayer) SetupPlayer(tap *DACTap) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.tap.Store(tap)
	op.player = op.ctx.NewPlayer(op)
	op.frameBuf = make([]DACFrame, 2048)
	op.sampleBuf = make([]float32, 2048*MONITOR_CHANNELS)
}

func dacCodeToFloat(code uint8) float32 {
	return float32(int(code)-DAC_MID_CODE) / DAC_MID_CODE
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	// Load tap pointer atomically - no lock needed for the hot path
	tap := op.tap.Load()
	if tap == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	numFrames := len(p) / (4 * MONITOR_CHANNELS)
	if numFrames == 0 {
		return 0, nil
	}
	if len(op.frameBuf) < numFrames {
		op.frameBuf = make([]DACFrame, numFrames)
		op.sampleBuf = make([]float32, numFrames*MONITOR_CHANNELS)
	}
	frames := op.frameBuf[:numFrames]
	samples := op.sampleBuf[:numFrames*MONITOR_CHANNELS]

	got := tap.Read(frames)
	for i := range frames {
		// Hold the last level on underrun, like the pads do
		if i < got {
			op.last = frames[i]
		}
		samples[2*i] = dacCodeToFloat(op.last.DAC1)
		samples[2*i+1] = dacCodeToFloat(op.last.DAC2)
	}

	size := numFrames * 4 * MONITOR_CHANNELS
	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:size])
	return size, nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
