package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// AudioConfig describes the PCM stream handed to Write.
type AudioConfig struct {
	SampleRate    int
	Channels      int  // 1 or 2
	BitsPerSample int  // only 16 is supported
	DownmixToMono bool // play 2-channel input on the mono DAC
}

// DefaultAudioConfig is 44.1 kHz 16-bit stereo.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: DEFAULT_SAMPLE_RATE, Channels: 2, BitsPerSample: SUPPORTED_BITS}
}

// MonoMix selects how a 2-channel frame becomes a single mono code.
type MonoMix int

const (
	MONO_MIX_AVERAGE MonoMix = iota
	MONO_MIX_LEFT
	MONO_MIX_RIGHT
)

func (m MonoMix) String() string {
	switch m {
	case MONO_MIX_LEFT:
		return "left"
	case MONO_MIX_RIGHT:
		return "right"
	default:
		return "average"
	}
}

// ParseMonoMix accepts "average", "left" or "right".
func ParseMonoMix(s string) (MonoMix, error) {
	switch s {
	case "", "average", "avg":
		return MONO_MIX_AVERAGE, nil
	case "left", "l":
		return MONO_MIX_LEFT, nil
	case "right", "r":
		return MONO_MIX_RIGHT, nil
	}
	return 0, fmt.Errorf("unknown mono mix %q", s)
}

const (
	ULP_STATE_IDLE int32 = iota
	ULP_STATE_CONFIGURING
	ULP_STATE_RUNNING
)

// ULPAudioStats is a snapshot of a running output.
type ULPAudioStats struct {
	Running       bool
	Stereo        bool
	ClockHz       uint32
	SampleRate    int
	Delay         uint32
	Delay2        uint32
	Capacity      int
	FramesWritten uint64
	WordsPushed   uint64
	Retries       uint64
	ReadIndex     uint32
}

// ULPAudioOutput streams 16-bit PCM to the DACs through a program running on
// the ULP. Write blocks while the ring is full and never reorders or drops
// samples. Write and AvailableForWrite must be called from one goroutine;
// Stats may be called from any.
type ULPAudioOutput struct {
	hw ULPHardware

	// Settings, applied on the next Begin.
	monoDAC       DACChannel
	minWriteBytes int
	monoMix       MonoMix
	retry         time.Duration

	// Logf receives progress messages. Nil keeps the output quiet.
	Logf func(format string, args ...any)

	state     atomic.Int32
	cfg       AudioConfig
	img       *ULPImage
	ring      *RingChannel
	clockHz   uint32
	stereo    bool
	frameSize int

	// mono pairing stage
	staged       uint8
	awaitingPair bool

	framesWritten atomic.Uint64
	wordsPushed   atomic.Uint64
	retries       atomic.Uint64

	sleep func(time.Duration)
}

func NewULPAudioOutput(hw ULPHardware) *ULPAudioOutput {
	return &ULPAudioOutput{
		hw:            hw,
		monoDAC:       DAC_CHANNEL_1,
		minWriteBytes: DEFAULT_MIN_WRITE_BYTES,
		retry:         DEFAULT_WRITE_RETRY,
		sleep:         time.Sleep,
	}
}

// SetMonoDAC selects the pad a mono stream plays on.
func (o *ULPAudioOutput) SetMonoDAC(ch DACChannel) error {
	if !ch.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDAC, int(ch))
	}
	o.monoDAC = ch
	return nil
}

// SetMinWriteBytes sets the threshold below which AvailableForWrite reports 0.
func (o *ULPAudioOutput) SetMinWriteBytes(n int) {
	if n < 0 {
		n = 0
	}
	o.minWriteBytes = n
}

func (o *ULPAudioOutput) SetMonoMix(m MonoMix) {
	o.monoMix = m
}

// SetWriteRetry sets how long Write sleeps between attempts on a full ring.
func (o *ULPAudioOutput) SetWriteRetry(d time.Duration) {
	if d <= 0 {
		d = DEFAULT_WRITE_RETRY
	}
	o.retry = d
}

func (o *ULPAudioOutput) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// IsRunning reports whether Begin has completed and End has not been called.
func (o *ULPAudioOutput) IsRunning() bool {
	return o.state.Load() == ULP_STATE_RUNNING
}

// Begin configures and starts the output, waiting until the ULP loop runs.
func (o *ULPAudioOutput) Begin(cfg AudioConfig) error {
	return o.BeginContext(context.Background(), cfg)
}

// BeginContext is Begin with a bound on the wait for the ULP to start. If ctx
// ends first the ULP is stopped and ErrSatelliteStalled is returned.
func (o *ULPAudioOutput) BeginContext(ctx context.Context, cfg AudioConfig) error {
	if !o.state.CompareAndSwap(ULP_STATE_IDLE, ULP_STATE_CONFIGURING) {
		return ErrAlreadyRunning
	}
	if err := o.start(ctx, cfg); err != nil {
		o.state.Store(ULP_STATE_IDLE)
		return err
	}
	o.state.Store(ULP_STATE_RUNNING)
	return nil
}

func (o *ULPAudioOutput) start(ctx context.Context, cfg AudioConfig) error {
	if cfg.BitsPerSample != SUPPORTED_BITS {
		return fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, cfg.BitsPerSample)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, cfg.Channels)
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("%w: %d Hz", ErrSampleRateUnreachable, cfg.SampleRate)
	}
	stereo := cfg.Channels == 2 && !cfg.DownmixToMono
	mask := 3
	if !stereo {
		if !o.monoDAC.valid() {
			return fmt.Errorf("%w: %d", ErrInvalidDAC, int(o.monoDAC))
		}
		mask = o.monoDAC.maskBit()
	}

	clockHz, err := CalibrateULPClock(o.hw)
	if err != nil {
		return err
	}
	o.logf("Real RTC clock: %d Hz\n", clockHz)

	mem := o.hw.SlowMemory()
	img, err := AssembleULPAudio(mem.Words(), clockHz, uint32(cfg.SampleRate), mask)
	if err != nil {
		return err
	}

	o.hw.StopULP()
	for _, ch := range []DACChannel{DAC_CHANNEL_1, DAC_CHANNEL_2} {
		if mask&ch.maskBit() == 0 {
			continue
		}
		if err := o.hw.DACEnable(ch); err != nil {
			o.releaseDACs(mask)
			return err
		}
		if err := o.hw.DACVoltage(ch, DAC_MID_CODE); err != nil {
			o.releaseDACs(mask)
			return err
		}
	}

	ring := NewRingChannel(mem, img.Layout)
	ring.Reset()
	img.Load(mem)

	o.cfg = cfg
	o.img = img
	o.ring = ring
	o.clockHz = clockHz
	o.stereo = stereo
	o.frameSize = cfg.Channels * SAMPLE_BYTES
	o.staged = DAC_MID_CODE
	o.awaitingPair = false
	o.framesWritten.Store(0)
	o.wordsPushed.Store(0)
	o.retries.Store(0)

	if err := o.hw.RunULP(0); err != nil {
		o.hw.StopULP()
		o.releaseDACs(mask)
		return err
	}
	o.logf("ULP running: %d Hz, %s on %s, delays %d/%d, ring %d words\n",
		cfg.SampleRate, o.modeName(), o.outputName(), img.Delay, img.Delay2, img.Layout.Capacity)

	for ring.ReadIndex() == 0 {
		select {
		case <-ctx.Done():
			o.hw.StopULP()
			o.releaseDACs(mask)
			return fmt.Errorf("%w: %v", ErrSatelliteStalled, ctx.Err())
		default:
		}
		o.sleep(ULP_START_POLL)
	}
	return nil
}

// releaseDACs parks and powers down the pads a failed start enabled.
func (o *ULPAudioOutput) releaseDACs(mask int) {
	for _, ch := range []DACChannel{DAC_CHANNEL_1, DAC_CHANNEL_2} {
		if mask&ch.maskBit() == 0 {
			continue
		}
		o.hw.DACVoltage(ch, DAC_MID_CODE)
		o.hw.DACDisable(ch)
	}
}

func (o *ULPAudioOutput) modeName() string {
	if o.stereo {
		return "stereo"
	}
	return "mono"
}

func (o *ULPAudioOutput) outputName() string {
	if o.stereo {
		return "DAC1+DAC2"
	}
	return o.monoDAC.String()
}

// sampleCode converts a signed 16-bit sample to an unsigned 8-bit DAC code.
func sampleCode(s int16) uint8 {
	return uint8(((int32(s) >> 8) + DAC_MID_CODE) & 0xFF)
}

func (o *ULPAudioOutput) mix(left, right uint8) uint8 {
	switch o.monoMix {
	case MONO_MIX_LEFT:
		return left
	case MONO_MIX_RIGHT:
		return right
	default:
		return uint8((uint32(left) + uint32(right)) >> 1)
	}
}

// Write consumes whole frames of little-endian 16-bit PCM and returns the
// number of bytes consumed. A trailing partial frame is left unconsumed. In
// mono an odd final frame stays staged until the next frame completes its word.
func (o *ULPAudioOutput) Write(p []byte) (int, error) {
	if !o.IsRunning() {
		return 0, ErrNotRunning
	}
	n := 0
	for len(p)-n >= o.frameSize {
		frame := p[n : n+o.frameSize]
		left := sampleCode(int16(binary.LittleEndian.Uint16(frame)))
		right := left
		if o.cfg.Channels == 2 {
			right = sampleCode(int16(binary.LittleEndian.Uint16(frame[2:])))
		}
		if o.stereo {
			o.pushBlocking(uint16(left) | uint16(right)<<8)
		} else {
			code := o.mix(left, right)
			if !o.awaitingPair {
				o.staged = code
				o.awaitingPair = true
			} else {
				o.pushBlocking(uint16(o.staged) | uint16(code)<<8)
				o.awaitingPair = false
			}
		}
		n += o.frameSize
		o.framesWritten.Add(1)
	}
	return n, nil
}

func (o *ULPAudioOutput) pushBlocking(word uint16) {
	for !o.ring.Push(word) {
		o.retries.Add(1)
		o.sleep(o.retry)
	}
	o.wordsPushed.Add(1)
}

// FrameSize returns the input frame size in bytes, or 0 when not running.
func (o *ULPAudioOutput) FrameSize() int {
	if !o.IsRunning() {
		return 0
	}
	return o.frameSize
}

// AvailableForWrite returns how many bytes Write would accept without
// blocking, or 0 when that is below the minimum write size.
func (o *ULPAudioOutput) AvailableForWrite() int {
	if !o.IsRunning() {
		return 0
	}
	framesPerWord := 1
	if !o.stereo {
		framesPerWord = 2
	}
	n := o.ring.AvailableSlots() * framesPerWord * o.frameSize
	if n < o.minWriteBytes {
		return 0
	}
	return n
}

// Drain waits long enough for the ULP to play every word pushed so far, or
// until ctx ends. A staged odd mono frame is not flushed.
func (o *ULPAudioOutput) Drain(ctx context.Context) error {
	if !o.IsRunning() {
		return ErrNotRunning
	}
	capacity := uint32(o.ring.Capacity())
	outstanding := (o.ring.Cursor() + capacity - o.ring.ReadIndex()) % capacity
	if outstanding == 0 {
		// cursor == index is also the full state
		outstanding = capacity - 1
	}
	framesPerWord := 1
	if !o.stereo {
		framesPerWord = 2
	}
	wait := time.Duration(outstanding) * time.Duration(framesPerWord) * time.Second / time.Duration(o.cfg.SampleRate)
	timer := time.NewTimer(wait + ULP_START_POLL)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// End halts the ULP and parks both DACs at mid-scale.
func (o *ULPAudioOutput) End() error {
	if !o.state.CompareAndSwap(ULP_STATE_RUNNING, ULP_STATE_CONFIGURING) {
		return ErrNotRunning
	}
	defer o.state.Store(ULP_STATE_IDLE)

	mem := o.hw.SlowMemory()
	o.hw.StopULP()
	storeWords(mem, 0, ulpHaltProgram())
	if err := o.hw.RunULP(0); err != nil {
		return err
	}
	for _, ch := range []DACChannel{DAC_CHANNEL_1, DAC_CHANNEL_2} {
		if err := o.hw.DACVoltage(ch, DAC_MID_CODE); err != nil {
			return err
		}
	}
	o.logf("ULP halted after %d frames\n", o.framesWritten.Load())
	return nil
}

// Listing disassembles the loaded program and tables.
func (o *ULPAudioOutput) Listing() []DisassembledLine {
	if !o.IsRunning() {
		return nil
	}
	return o.img.Listing()
}

// Stats returns a snapshot of the output's counters and timing.
func (o *ULPAudioOutput) Stats() ULPAudioStats {
	st := ULPAudioStats{
		Running:       o.IsRunning(),
		FramesWritten: o.framesWritten.Load(),
		WordsPushed:   o.wordsPushed.Load(),
		Retries:       o.retries.Load(),
	}
	if !st.Running {
		return st
	}
	st.Stereo = o.stereo
	st.ClockHz = o.clockHz
	st.SampleRate = o.cfg.SampleRate
	st.Delay = o.img.Delay
	st.Delay2 = o.img.Delay2
	st.Capacity = o.ring.Capacity()
	st.ReadIndex = o.ring.ReadIndex()
	return st
}
