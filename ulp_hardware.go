package main

// ULPHardware is the capability the audio output drives: shared slow memory,
// the ULP program loader/runner, the two DAC pads and the clock calibration
// primitive. SimulatedESP32 implements it in software; tests substitute
// lighter fakes.
type ULPHardware interface {
	SlowClockCalibrator

	// SlowMemory is the memory both processors address, in 32-bit words.
	SlowMemory() SharedWordMemory

	// RunULP starts the ULP at entry, restarting it if it is already running.
	RunULP(entry uint32) error
	// StopULP stops the ULP timer and waits for the core to settle.
	StopULP()

	DACEnable(ch DACChannel) error
	DACDisable(ch DACChannel) error
	DACVoltage(ch DACChannel, code uint8) error
}
