package main

import (
	"errors"
	"fmt"
)

// SlowClockCalibrator is the hardware primitive behind rtc_clk_cal: it
// returns the average period of one cycle of clk over slowCycles cycles, in
// microseconds as Q13.19 fixed point.
type SlowClockCalibrator interface {
	CalibrateSlowClock(clk RTCCalClock, slowCycles uint32) (uint32, error)
}

// CalibrateULPClock measures the real RC_FAST frequency that clocks the ULP.
// There is no fallback to the nominal frequency: an unmeasured clock would
// play every stream at the wrong pitch.
func CalibrateULPClock(cal SlowClockCalibrator) (uint32, error) {
	period, err := cal.CalibrateSlowClock(RTC_CAL_8MD256, ULP_CAL_SLOW_CYCLES)
	if err != nil {
		if errors.Is(err, ErrClockCalibration) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrClockCalibration, err)
	}
	if period == 0 {
		return 0, fmt.Errorf("%w: zero period", ErrClockCalibration)
	}
	hz := (uint64(ULP_CAL_PERIOD_SCALE) << RTC_CLK_CAL_FRACT) * RTC_SLOW_CLK_8MD256 / uint64(period)
	if hz == 0 || hz > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: implausible frequency %d Hz", ErrClockCalibration, hz)
	}
	return uint32(hz), nil
}
