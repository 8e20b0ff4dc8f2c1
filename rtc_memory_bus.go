/*
rtc_memory_bus.go - RTC slow memory and peripheral register bus

This module models the memory the host and the ULP coprocessor share. It has two halves:

    RTC slow memory: a small array of 32-bit words, word addressed exactly as the ULP sees it.
    Each word is an atomic.Uint32 so either side can read or write a word at any time
    without a lock. The hardware guarantees the same word-level atomicity and nothing more.

    RTC peripheral registers: a sparse register file at 0x3FF48000..0x3FF48FFF reached by
    the ULP WR_REG/RD_REG instructions and by host driver calls. Register regions are
    mapped with MapIO and dispatched through page keys, like the main system bus.

Register access is rare (DAC writes, enable bits) and goes through a mutex. Slow memory
access is the hot path for both processors and never blocks.
*/

package main

import (
	"sync"
	"sync/atomic"
)

const (
	RTC_REG_PAGE_SIZE = 0x100
	RTC_REG_PAGE_MASK = 0xFFFFFF00
)

// SharedWordMemory is the view of slow memory the host-side core needs.
type SharedWordMemory interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
	Words() uint32
}

type RTCMemoryBus struct {
	/*
		RTCMemoryBus holds slow memory and the peripheral register file.

		Slow memory words are atomics; the register file and its
		I/O mapping are guarded by mutex.
	*/

	words []atomic.Uint32

	mutex   sync.RWMutex
	regs    map[uint32]uint32
	mapping map[uint32][]IORegion
}

type IORegion struct {
	/*
		IORegion represents a memory-mapped peripheral register range.
		onWrite sees the full register value after the write has been
		merged; onRead may override the stored value.
	*/
	start   uint32
	end     uint32
	onRead  func(addr uint32) uint32
	onWrite func(addr uint32, value uint32)
}

func NewRTCMemoryBus(words int) *RTCMemoryBus {
	return &RTCMemoryBus{
		words:   make([]atomic.Uint32, words),
		regs:    make(map[uint32]uint32),
		mapping: make(map[uint32][]IORegion),
	}
}

// Words returns the slow memory size in 32-bit words.
func (bus *RTCMemoryBus) Words() uint32 {
	return uint32(len(bus.words))
}

// Read32 reads a slow memory word. Out-of-range addresses read as zero.
func (bus *RTCMemoryBus) Read32(addr uint32) uint32 {
	if addr >= uint32(len(bus.words)) {
		return 0
	}
	return bus.words[addr].Load()
}

// Write32 writes a slow memory word. Out-of-range writes are dropped.
func (bus *RTCMemoryBus) Write32(addr uint32, value uint32) {
	if addr >= uint32(len(bus.words)) {
		return
	}
	bus.words[addr].Store(value)
}

// Read16 returns the half of a word the ULP can load.
func (bus *RTCMemoryBus) Read16(addr uint32) uint16 {
	return uint16(bus.Read32(addr) & RING_WORD_MASK)
}

// LoadWords copies a block of words into slow memory starting at addr.
func (bus *RTCMemoryBus) LoadWords(addr uint32, data []uint32) {
	for i, w := range data {
		bus.Write32(addr+uint32(i), w)
	}
}

// Reset zeroes slow memory and forgets register contents. Mappings survive.
func (bus *RTCMemoryBus) Reset() {
	for i := range bus.words {
		bus.words[i].Store(0)
	}
	bus.mutex.Lock()
	clear(bus.regs)
	bus.mutex.Unlock()
}

func (bus *RTCMemoryBus) MapIO(start, end uint32, onRead func(addr uint32) uint32, onWrite func(addr uint32, value uint32)) {
	/*
		MapIO registers a peripheral register region. The region is added to
		every page key it spans so dispatch only scans regions on the same page.
	*/

	region := IORegion{
		start:   start,
		end:     end,
		onRead:  onRead,
		onWrite: onWrite,
	}
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	for page := start & RTC_REG_PAGE_MASK; page <= end&RTC_REG_PAGE_MASK; page += RTC_REG_PAGE_SIZE {
		bus.mapping[page] = append(bus.mapping[page], region)
	}
}

// ReadReg reads a peripheral register.
func (bus *RTCMemoryBus) ReadReg(addr uint32) uint32 {
	bus.mutex.RLock()
	value := bus.regs[addr]
	var onRead func(addr uint32) uint32
	if region, ok := bus.regionFor(addr); ok {
		onRead = region.onRead
	}
	bus.mutex.RUnlock()

	if onRead != nil {
		return onRead(addr)
	}
	return value
}

// WriteReg stores a full peripheral register value and notifies its region.
func (bus *RTCMemoryBus) WriteReg(addr uint32, value uint32) {
	bus.mutex.Lock()
	bus.regs[addr] = value
	var onWrite func(addr uint32, value uint32)
	if region, ok := bus.regionFor(addr); ok {
		onWrite = region.onWrite
	}
	bus.mutex.Unlock()

	if onWrite != nil {
		onWrite(addr, value)
	}
}

// WriteRegField replaces bits low..high of a register, the WR_REG semantics.
func (bus *RTCMemoryBus) WriteRegField(addr, low, high, value uint32) {
	mask := fieldMask(low, high)
	bus.mutex.Lock()
	merged := (bus.regs[addr] &^ mask) | ((value << low) & mask)
	bus.regs[addr] = merged
	var onWrite func(addr uint32, value uint32)
	if region, ok := bus.regionFor(addr); ok {
		onWrite = region.onWrite
	}
	bus.mutex.Unlock()

	if onWrite != nil {
		onWrite(addr, merged)
	}
}

// ReadRegField extracts bits low..high of a register, the RD_REG semantics.
func (bus *RTCMemoryBus) ReadRegField(addr, low, high uint32) uint32 {
	return (bus.ReadReg(addr) & fieldMask(low, high)) >> low
}

// regionFor must be called with mutex held.
func (bus *RTCMemoryBus) regionFor(addr uint32) (IORegion, bool) {
	for _, region := range bus.mapping[addr&RTC_REG_PAGE_MASK] {
		if addr >= region.start && addr <= region.end {
			return region, true
		}
	}
	return IORegion{}, false
}

func fieldMask(low, high uint32) uint32 {
	if high < low {
		return 0
	}
	width := high - low + 1
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return ((1 << width) - 1) << low
}
