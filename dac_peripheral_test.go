package main

import (
	"errors"
	"testing"
)

func TestDACPeripheralDriver(t *testing.T) {
	bus := NewRTCMemoryBus(4)
	dac := NewDACPeripheral(bus, nil)
	if dac.Level(DAC_CHANNEL_1) != DAC_MID_CODE || dac.Enabled(DAC_CHANNEL_1) {
		t.Fatal("pads should start at mid-scale and powered down")
	}

	var got []dacWrite
	dac.AddListener(func(cycle uint64, ch DACChannel, code uint8) {
		got = append(got, dacWrite{cycle, ch, code})
	})
	if err := dac.Enable(DAC_CHANNEL_1); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := dac.SetVoltage(DAC_CHANNEL_1, 99); err != nil {
		t.Fatalf("SetVoltage: %v", err)
	}
	if !dac.Enabled(DAC_CHANNEL_1) || dac.Level(DAC_CHANNEL_1) != 99 {
		t.Fatalf("enabled=%v level=%d", dac.Enabled(DAC_CHANNEL_1), dac.Level(DAC_CHANNEL_1))
	}
	if len(got) != 2 || got[1] != (dacWrite{0, DAC_CHANNEL_1, 99}) {
		t.Fatalf("listener saw %+v", got)
	}
	if dac.Writes() != 2 {
		t.Fatalf("writes = %d", dac.Writes())
	}

	if err := dac.Disable(DAC_CHANNEL_1); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if dac.Enabled(DAC_CHANNEL_1) || dac.Level(DAC_CHANNEL_1) != 99 {
		t.Fatal("Disable should power down and keep the code")
	}
}

func TestDACPeripheralInvalidChannel(t *testing.T) {
	dac := NewDACPeripheral(NewRTCMemoryBus(4), nil)
	for _, ch := range []DACChannel{0, 3, -1} {
		if err := dac.Enable(ch); !errors.Is(err, ErrInvalidDAC) {
			t.Errorf("Enable(%d): %v", ch, err)
		}
		if err := dac.SetVoltage(ch, 1); !errors.Is(err, ErrInvalidDAC) {
			t.Errorf("SetVoltage(%d): %v", ch, err)
		}
		if dac.Level(ch) != 0 || dac.Enabled(ch) {
			t.Errorf("channel %d reports state", ch)
		}
	}
	if DAC_CHANNEL_2.String() != "DAC2" || DACChannel(7).String() != "DAC?7" {
		t.Fatal("channel names")
	}
}
