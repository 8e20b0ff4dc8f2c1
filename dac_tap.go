package main

import "sync/atomic"

// DACFrame is the level of both pads at one output sample instant.
type DACFrame struct {
	DAC1 uint8
	DAC2 uint8
}

// DACTap turns cycle-stamped DAC writes into frames at the stream rate by
// sample-and-hold, the way an analog low-pass sees the pads. Frames go into
// a single-producer single-consumer ring: Observe runs on the ULP goroutine,
// Read on whichever monitor drains it.
type DACTap struct {
	clockHz uint64
	rate    uint64

	// producer side
	levels    [3]uint8 // indexed by DACChannel
	next      uint64   // index of the next frame to emit
	lastCycle uint64
	started   bool

	frames   []DACFrame
	size     int64
	writeIdx atomic.Int64
	readIdx  atomic.Int64
	dropped  atomic.Uint64
}

// NewDACTap samples at sampleRate against a ULP clocked at clockHz and
// buffers up to capacity-1 frames.
func NewDACTap(clockHz uint32, sampleRate int, capacity int) *DACTap {
	if capacity < 2 {
		capacity = 2
	}
	t := &DACTap{
		clockHz: uint64(clockHz),
		rate:    uint64(sampleRate),
		frames:  make([]DACFrame, capacity),
		size:    int64(capacity),
	}
	t.levels[DAC_CHANNEL_1] = DAC_MID_CODE
	t.levels[DAC_CHANNEL_2] = DAC_MID_CODE
	return t
}

// Attach registers the tap on a DAC peripheral.
func (t *DACTap) Attach(dac *DACPeripheral) {
	dac.AddListener(t.Observe)
}

// Observe emits every frame due before cycle at the held levels, then
// latches the new code. Sampling starts at the first observed write, so a tap
// attached to a running core does not replay its history. A cycle count that
// went backwards means the core was restarted; sampling restarts with it.
func (t *DACTap) Observe(cycle uint64, ch DACChannel, code uint8) {
	switch {
	case !t.started:
		t.started = true
		if t.clockHz != 0 {
			t.next = cycle * t.rate / t.clockHz
		}
	case cycle < t.lastCycle:
		t.next = 0
	}
	t.lastCycle = cycle
	if t.rate != 0 && t.clockHz != 0 {
		for {
			due := t.next * t.clockHz / t.rate
			if due >= cycle {
				break
			}
			t.push(DACFrame{DAC1: t.levels[DAC_CHANNEL_1], DAC2: t.levels[DAC_CHANNEL_2]})
			t.next++
		}
	}
	if ch.valid() {
		t.levels[ch] = code
	}
}

func (t *DACTap) push(f DACFrame) {
	writeIdx := t.writeIdx.Load()
	next := (writeIdx + 1) % t.size
	if next == t.readIdx.Load() {
		t.dropped.Add(1)
		return
	}
	t.frames[writeIdx] = f
	t.writeIdx.Store(next)
}

// Read moves buffered frames into dst and returns how many it moved.
func (t *DACTap) Read(dst []DACFrame) int {
	n := 0
	for n < len(dst) {
		readIdx := t.readIdx.Load()
		if readIdx == t.writeIdx.Load() {
			break
		}
		dst[n] = t.frames[readIdx]
		t.readIdx.Store((readIdx + 1) % t.size)
		n++
	}
	return n
}

// Buffered returns the number of frames waiting to be read.
func (t *DACTap) Buffered() int {
	w, r := t.writeIdx.Load(), t.readIdx.Load()
	return int((w - r + t.size) % t.size)
}

// Dropped counts frames lost because the reader fell behind.
func (t *DACTap) Dropped() uint64 {
	return t.dropped.Load()
}
