package main

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DACChannel selects one of the two 8-bit DAC pads.
type DACChannel int

const (
	DAC_CHANNEL_1 DACChannel = 1 // GPIO25
	DAC_CHANNEL_2 DACChannel = 2 // GPIO26
)

func (ch DACChannel) String() string {
	switch ch {
	case DAC_CHANNEL_1:
		return "DAC1"
	case DAC_CHANNEL_2:
		return "DAC2"
	default:
		return fmt.Sprintf("DAC?%d", int(ch))
	}
}

// padReg returns the RTC IO pad register of the channel.
func (ch DACChannel) padReg() uint32 {
	if ch == DAC_CHANNEL_2 {
		return RTC_IO_PAD_DAC2_REG
	}
	return RTC_IO_PAD_DAC1_REG
}

// maskBit returns the active-output mask bit of the channel.
func (ch DACChannel) maskBit() int {
	return int(ch)
}

func (ch DACChannel) valid() bool {
	return ch == DAC_CHANNEL_1 || ch == DAC_CHANNEL_2
}

// DACListener observes every DAC code write. cycle is the ULP cycle count at
// the time of the write, or the last known count for host-side writes.
type DACListener func(cycle uint64, ch DACChannel, code uint8)

// DACPeripheral models the two DAC pads behind RTC_IO_PAD_DAC{1,2}_REG.
type DACPeripheral struct {
	bus   *RTCMemoryBus
	clock func() uint64

	levels  [3]atomic.Uint32 // indexed by DACChannel
	enabled [3]atomic.Bool
	writes  atomic.Uint64

	mu        sync.Mutex
	listeners []DACListener
}

// NewDACPeripheral maps both pad registers on the bus. clock supplies the
// cycle stamp handed to listeners and may be nil.
func NewDACPeripheral(bus *RTCMemoryBus, clock func() uint64) *DACPeripheral {
	dac := &DACPeripheral{bus: bus, clock: clock}
	dac.levels[DAC_CHANNEL_1].Store(DAC_MID_CODE)
	dac.levels[DAC_CHANNEL_2].Store(DAC_MID_CODE)
	bus.MapIO(RTC_IO_PAD_DAC1_REG, RTC_IO_PAD_DAC2_REG, nil, dac.HandleWrite)
	return dac
}

// AddListener registers a DAC write observer. Listeners run on the writing
// goroutine (usually the ULP core) and must not block.
func (dac *DACPeripheral) AddListener(l DACListener) {
	dac.mu.Lock()
	dac.listeners = append(dac.listeners, l)
	dac.mu.Unlock()
}

// HandleWrite decodes a pad register value written through the bus.
func (dac *DACPeripheral) HandleWrite(addr uint32, value uint32) {
	var ch DACChannel
	switch addr {
	case RTC_IO_PAD_DAC1_REG:
		ch = DAC_CHANNEL_1
	case RTC_IO_PAD_DAC2_REG:
		ch = DAC_CHANNEL_2
	default:
		return
	}
	dac.enabled[ch].Store(value&RTC_IO_PDAC_XPD_DAC != 0)
	code := uint8((value >> RTC_IO_PDAC_DAC_LOW) & 0xFF)
	dac.levels[ch].Store(uint32(code))
	dac.writes.Add(1)

	var cycle uint64
	if dac.clock != nil {
		cycle = dac.clock()
	}
	dac.mu.Lock()
	listeners := dac.listeners
	dac.mu.Unlock()
	for _, l := range listeners {
		l(cycle, ch, code)
	}
}

// Enable powers up the pad, like dac_output_enable.
func (dac *DACPeripheral) Enable(ch DACChannel) error {
	if !ch.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDAC, int(ch))
	}
	reg := ch.padReg()
	dac.bus.WriteReg(reg, dac.bus.ReadReg(reg)|RTC_IO_PDAC_XPD_DAC|RTC_IO_PDAC_XPD_FORC)
	return nil
}

// Disable powers the pad down, like dac_output_disable.
func (dac *DACPeripheral) Disable(ch DACChannel) error {
	if !ch.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDAC, int(ch))
	}
	reg := ch.padReg()
	dac.bus.WriteReg(reg, dac.bus.ReadReg(reg)&^(RTC_IO_PDAC_XPD_DAC|RTC_IO_PDAC_XPD_FORC))
	return nil
}

// SetVoltage sets the 8-bit output code, like dac_output_voltage.
func (dac *DACPeripheral) SetVoltage(ch DACChannel, code uint8) error {
	if !ch.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDAC, int(ch))
	}
	dac.bus.WriteRegField(ch.padReg(), RTC_IO_PDAC_DAC_LOW, RTC_IO_PDAC_DAC_HIGH, uint32(code))
	return nil
}

// Level returns the current output code of a pad.
func (dac *DACPeripheral) Level(ch DACChannel) uint8 {
	if !ch.valid() {
		return 0
	}
	return uint8(dac.levels[ch].Load())
}

// Enabled reports whether the pad is powered.
func (dac *DACPeripheral) Enabled(ch DACChannel) bool {
	if !ch.valid() {
		return false
	}
	return dac.enabled[ch].Load()
}

// Writes counts code writes since creation.
func (dac *DACPeripheral) Writes() uint64 {
	return dac.writes.Load()
}
