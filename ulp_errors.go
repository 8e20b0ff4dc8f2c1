package main

import "errors"

var (
	// Configuration errors, returned from Begin before anything is started.
	ErrUnsupportedBitDepth   = errors.New("unsupported bits per sample")
	ErrUnsupportedChannels   = errors.New("unsupported channel count")
	ErrSampleRateUnreachable = errors.New("sample rate not reachable with this ULP clock")
	ErrInvalidDAC            = errors.New("invalid DAC channel")

	// ErrCapacity means program, tables and ring do not fit in slow memory.
	ErrCapacity = errors.New("ULP program, tables and ring exceed slow memory")

	// ErrClockCalibration means the ULP clock could not be measured.
	ErrClockCalibration = errors.New("ULP clock calibration failed")

	ErrNotRunning       = errors.New("ULP audio output not running")
	ErrAlreadyRunning   = errors.New("ULP audio output already running")
	ErrSatelliteStalled = errors.New("ULP did not advance its read index")

	// Emulator faults.
	ErrIllegalInstruction = errors.New("illegal ULP instruction")
	ErrAddressOutOfRange  = errors.New("ULP address out of range")
)
