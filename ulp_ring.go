package main

// RingChannel is the host (producer) end of the sample ring in slow memory.
// The ULP is the consumer: it publishes its read position in the index cell,
// reads the word there and writes silence back into it. The host owns the
// write cursor and only ever writes words the ULP has not yet reached.
//
// There is no lock. The index cell has one writer (the ULP) and every unread
// slot has one writer (the host). Push reads the index before writing, so a
// concurrent advance can only make it reject a slot that just became free.
type RingChannel struct {
	mem       SharedWordMemory
	indexAddr uint32
	bufStart  uint32
	capacity  uint32
	cursor    uint32
}

func NewRingChannel(mem SharedWordMemory, layout ULPLayout) *RingChannel {
	return &RingChannel{
		mem:       mem,
		indexAddr: layout.IndexAddr,
		bufStart:  layout.BufferStart,
		capacity:  layout.Capacity,
	}
}

// Capacity returns the number of ring words.
func (r *RingChannel) Capacity() int { return int(r.capacity) }

// Cursor returns the host write cursor.
func (r *RingChannel) Cursor() uint32 { return r.cursor }

// ReadIndex returns the ULP read position. The store tag the ULP puts in the
// upper half of the word is masked off.
func (r *RingChannel) ReadIndex() uint32 {
	return r.mem.Read32(r.indexAddr) & RING_WORD_MASK
}

// Push writes word at the cursor unless the cursor has caught up with the
// ULP. It never blocks.
func (r *RingChannel) Push(word uint16) bool {
	if r.cursor == r.ReadIndex() {
		return false
	}
	r.mem.Write32(r.bufStart+r.cursor, uint32(word))
	r.cursor++
	if r.cursor >= r.capacity {
		r.cursor = 0
	}
	return true
}

// AvailableSlots returns how many pushes would succeed right now. It is a
// lower bound: the ULP keeps freeing slots while the caller looks.
func (r *RingChannel) AvailableSlots() int {
	index := r.ReadIndex()
	if index >= r.capacity {
		return 0
	}
	return int((index + r.capacity - r.cursor) % r.capacity)
}

// Reset fills the ring with silence, zeroes the index cell and rewinds the
// cursor. Only valid while the ULP is stopped.
func (r *RingChannel) Reset() {
	for i := uint32(0); i < r.capacity; i++ {
		r.mem.Write32(r.bufStart+i, SILENCE_WORD)
	}
	r.mem.Write32(r.indexAddr, 0)
	r.cursor = 0
}
