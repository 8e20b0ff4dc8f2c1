package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BoardProfile describes one simulated board and how the output is set up
// on it. Zero fields keep their defaults.
type BoardProfile struct {
	Name            string        `yaml:"name"`
	RCFastHz        uint32        `yaml:"rc_fast_hz"`
	DriftPPM        int32         `yaml:"drift_ppm"`
	SlowMemoryWords int           `yaml:"slow_memory_words"`
	Paced           *bool         `yaml:"paced"`
	MonoDAC         int           `yaml:"mono_dac"`
	MonoMix         string        `yaml:"mono_mix"`
	MinWriteBytes   int           `yaml:"min_write_bytes"`
	WriteRetry      time.Duration `yaml:"write_retry"`
}

func DefaultBoardProfile() BoardProfile {
	paced := true
	return BoardProfile{
		Name:            "esp32-devkit",
		RCFastHz:        RTC_FAST_NOMINAL_HZ,
		SlowMemoryWords: RTC_SLOW_MEM_WORDS,
		Paced:           &paced,
		MonoDAC:         int(DAC_CHANNEL_1),
		MonoMix:         MONO_MIX_AVERAGE.String(),
		MinWriteBytes:   DEFAULT_MIN_WRITE_BYTES,
		WriteRetry:      DEFAULT_WRITE_RETRY,
	}
}

// LoadBoardProfile reads a YAML profile from path.
func LoadBoardProfile(path string) (BoardProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return BoardProfile{}, fmt.Errorf("board: open %q: %w", path, err)
	}
	defer f.Close()

	p, err := LoadBoardProfileFromReader(f)
	if err != nil {
		return BoardProfile{}, fmt.Errorf("board: parse %q: %w", path, err)
	}
	return p, nil
}

// LoadBoardProfileFromReader decodes a profile over the defaults and
// validates it. Unknown keys are rejected.
func LoadBoardProfileFromReader(r io.Reader) (BoardProfile, error) {
	p := DefaultBoardProfile()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return BoardProfile{}, fmt.Errorf("board: decode yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return BoardProfile{}, err
	}
	return p, nil
}

// Validate reports every invalid field at once.
func (p BoardProfile) Validate() error {
	var errs []error
	if p.RCFastHz < ULP_CAL_TIMEOUT_HZ {
		errs = append(errs, fmt.Errorf("rc_fast_hz %d is below %d", p.RCFastHz, ULP_CAL_TIMEOUT_HZ))
	}
	if p.DriftPPM > ULP_CAL_MAX_DRIFTPPM || p.DriftPPM < -ULP_CAL_MAX_DRIFTPPM {
		errs = append(errs, fmt.Errorf("drift_ppm %d is outside ±%d", p.DriftPPM, ULP_CAL_MAX_DRIFTPPM))
	}
	if _, err := NewULPLayout(uint32(max(p.SlowMemoryWords, 0))); err != nil {
		errs = append(errs, fmt.Errorf("slow_memory_words: %w", err))
	}
	if !DACChannel(p.MonoDAC).valid() {
		errs = append(errs, fmt.Errorf("mono_dac: %w: %d", ErrInvalidDAC, p.MonoDAC))
	}
	if _, err := ParseMonoMix(p.MonoMix); err != nil {
		errs = append(errs, fmt.Errorf("mono_mix: %w", err))
	}
	if p.MinWriteBytes < 0 {
		errs = append(errs, fmt.Errorf("min_write_bytes %d is negative", p.MinWriteBytes))
	}
	if p.WriteRetry < 0 {
		errs = append(errs, fmt.Errorf("write_retry %v is negative", p.WriteRetry))
	}
	return errors.Join(errs...)
}

// ESP32Config returns the simulated chip described by the profile.
func (p BoardProfile) ESP32Config() ESP32Config {
	paced := true
	if p.Paced != nil {
		paced = *p.Paced
	}
	return ESP32Config{
		SlowMemoryWords: p.SlowMemoryWords,
		RCFastHz:        p.RCFastHz,
		DriftPPM:        p.DriftPPM,
		Paced:           paced,
	}
}

// Apply configures an output with the profile's settings.
func (p BoardProfile) Apply(o *ULPAudioOutput) error {
	if err := o.SetMonoDAC(DACChannel(p.MonoDAC)); err != nil {
		return err
	}
	mix, err := ParseMonoMix(p.MonoMix)
	if err != nil {
		return err
	}
	o.SetMonoMix(mix)
	o.SetMinWriteBytes(p.MinWriteBytes)
	o.SetWriteRetry(p.WriteRetry)
	return nil
}
