package main

import "fmt"

// RTCCalClock selects the clock measured by a calibration run.
type RTCCalClock int

const (
	RTC_CAL_RTC_MUX RTCCalClock = iota // current slow clock
	RTC_CAL_8MD256                     // RC_FAST / 256
	RTC_CAL_32K_XTAL                   // external 32 kHz crystal
)

// RCOscillator models the RC_FAST oscillator that clocks the ULP. Its real
// frequency differs per chip from the nominal value by driftPPM.
type RCOscillator struct {
	nominalHz uint32
	driftPPM  int32
	broken    bool // calibration counter never completes
}

func NewRCOscillator(nominalHz uint32, driftPPM int32) *RCOscillator {
	if driftPPM > ULP_CAL_MAX_DRIFTPPM {
		driftPPM = ULP_CAL_MAX_DRIFTPPM
	} else if driftPPM < -ULP_CAL_MAX_DRIFTPPM {
		driftPPM = -ULP_CAL_MAX_DRIFTPPM
	}
	return &RCOscillator{nominalHz: nominalHz, driftPPM: driftPPM}
}

// FrequencyHz returns the oscillator's real frequency.
func (o *RCOscillator) FrequencyHz() uint32 {
	return uint32(int64(o.nominalHz) * (1_000_000 + int64(o.driftPPM)) / 1_000_000)
}

// SetBroken makes every following calibration fail, like a dead oscillator.
func (o *RCOscillator) SetBroken(broken bool) {
	o.broken = broken
}

var _ SlowClockCalibrator = (*RCOscillator)(nil)

// CalibrateSlowClock lets a bare oscillator stand in for the chip's
// calibration primitive.
func (o *RCOscillator) CalibrateSlowClock(clk RTCCalClock, slowCycles uint32) (uint32, error) {
	return o.Calibrate(clk, slowCycles)
}

// Calibrate counts reference crystal ticks over slowCycles cycles of the
// selected slow clock and returns the average slow clock period in
// microseconds, Q13.19 fixed point, like rtc_clk_cal.
func (o *RCOscillator) Calibrate(clk RTCCalClock, slowCycles uint32) (uint32, error) {
	if slowCycles == 0 {
		return 0, fmt.Errorf("%w: zero calibration cycles", ErrClockCalibration)
	}
	fast := uint64(o.FrequencyHz())
	if o.broken || fast < ULP_CAL_TIMEOUT_HZ {
		return 0, fmt.Errorf("%w: calibration counter timed out", ErrClockCalibration)
	}

	// Slow clock period expressed as a fraction num/den seconds.
	var num, den uint64
	switch clk {
	case RTC_CAL_8MD256, RTC_CAL_RTC_MUX:
		num, den = RTC_SLOW_CLK_8MD256, fast
	case RTC_CAL_32K_XTAL:
		num, den = 1, 32768
	default:
		return 0, fmt.Errorf("%w: unknown calibration clock %d", ErrClockCalibration, clk)
	}

	// The hardware counts whole XTAL ticks; the fractional tick is lost.
	xtalTicks := uint64(slowCycles) * RTC_XTAL_FREQ_MHZ * ULP_CAL_PERIOD_SCALE * num / den
	period := (xtalTicks << RTC_CLK_CAL_FRACT) / (uint64(slowCycles) * RTC_XTAL_FREQ_MHZ)
	return uint32(period), nil
}
