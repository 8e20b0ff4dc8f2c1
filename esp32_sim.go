/*
esp32_sim.go - software ESP32 exposing the ULP audio hardware capability

SimulatedESP32 wires RTC slow memory, the ULP core, both DAC pads and the RC_FAST oscillator
into one ULPHardware. The ULP runs as a worker goroutine: RunULP starts it, StopULP asks the
core to stop and waits for the goroutine to finish, the same way coprocessor workers are
started and stopped elsewhere in this codebase.

With pacing on, the core runs in real time at the oscillator's true frequency, so a program
assembled against the calibrated clock plays at the intended sample rate. Without pacing the
core runs as fast as the host allows, which is what cycle-exact tests want.
*/

package main

import (
	"fmt"
	"sync"
	"time"
)

// ESP32Config describes the simulated chip.
type ESP32Config struct {
	SlowMemoryWords int
	RCFastHz        uint32
	DriftPPM        int32
	Paced           bool
}

func DefaultESP32Config() ESP32Config {
	return ESP32Config{
		SlowMemoryWords: RTC_SLOW_MEM_WORDS,
		RCFastHz:        RTC_FAST_NOMINAL_HZ,
		Paced:           true,
	}
}

// ulpWorker is a running ULP core goroutine.
type ulpWorker struct {
	stop func()        // sets running=false on the core
	done chan struct{} // closed when Execute returns
}

type SimulatedESP32 struct {
	mem   *RTCMemoryBus
	core  *ULPCore
	dac   *DACPeripheral
	osc   *RCOscillator
	paced bool

	mu      sync.Mutex
	worker  *ulpWorker
	lastErr error
}

func NewSimulatedESP32(cfg ESP32Config) *SimulatedESP32 {
	if cfg.SlowMemoryWords <= 0 {
		cfg.SlowMemoryWords = RTC_SLOW_MEM_WORDS
	}
	if cfg.RCFastHz == 0 {
		cfg.RCFastHz = RTC_FAST_NOMINAL_HZ
	}
	mem := NewRTCMemoryBus(cfg.SlowMemoryWords)
	core := NewULPCore(mem)
	return &SimulatedESP32{
		mem:   mem,
		core:  core,
		dac:   NewDACPeripheral(mem, core.Cycles),
		osc:   NewRCOscillator(cfg.RCFastHz, cfg.DriftPPM),
		paced: cfg.Paced,
	}
}

func (s *SimulatedESP32) SlowMemory() SharedWordMemory { return s.mem }
func (s *SimulatedESP32) Memory() *RTCMemoryBus       { return s.mem }
func (s *SimulatedESP32) Core() *ULPCore               { return s.core }
func (s *SimulatedESP32) DAC() *DACPeripheral          { return s.dac }
func (s *SimulatedESP32) Oscillator() *RCOscillator    { return s.osc }

func (s *SimulatedESP32) CalibrateSlowClock(clk RTCCalClock, slowCycles uint32) (uint32, error) {
	return s.osc.Calibrate(clk, slowCycles)
}

func (s *SimulatedESP32) DACEnable(ch DACChannel) error {
	return s.dac.Enable(ch)
}

func (s *SimulatedESP32) DACDisable(ch DACChannel) error {
	return s.dac.Disable(ch)
}

func (s *SimulatedESP32) DACVoltage(ch DACChannel, code uint8) error {
	return s.dac.SetVoltage(ch, code)
}

// RunULP restarts the core at entry on a new worker goroutine.
func (s *SimulatedESP32) RunULP(entry uint32) error {
	if entry >= s.mem.Words() {
		return fmt.Errorf("%w: entry %d", ErrAddressOutOfRange, entry)
	}
	s.StopULP()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.core.Reset(entry)
	if s.paced {
		s.core.SetClock(s.osc.FrequencyHz())
	} else {
		s.core.SetClock(0)
	}
	s.lastErr = nil

	done := make(chan struct{})
	s.worker = &ulpWorker{
		stop: s.core.Stop,
		done: done,
	}
	go func() {
		defer close(done)
		if err := s.core.Execute(); err != nil {
			fmt.Printf("ULP fault: %v\n", err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}()
	return nil
}

// StopULP stops the worker, if any, and waits for it to exit.
func (s *SimulatedESP32) StopULP() {
	s.mu.Lock()
	worker := s.worker
	s.worker = nil
	s.mu.Unlock()
	if worker == nil {
		return
	}
	worker.stop()
	select {
	case <-worker.done:
	case <-time.After(ULP_STOP_TIMEOUT):
	}
}

// Err returns the fault that stopped the last worker, if any.
func (s *SimulatedESP32) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
