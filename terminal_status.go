package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const STATUS_REFRESH = 250 * time.Millisecond

// TerminalStatus redraws a one-line playback status on stdout while
// stdout is a terminal.
type TerminalStatus struct {
	out   io.Writer
	fd    int
	audio *ULPAudioOutput
	dac   *DACPeripheral
	width int
}

func NewTerminalStatus(out *ULPAudioOutput, dac *DACPeripheral) *TerminalStatus {
	return &TerminalStatus{out: os.Stdout, fd: int(os.Stdout.Fd()), audio: out, dac: dac, width: 80}
}

// Enabled reports whether stdout is a terminal the line can be drawn on.
func (s *TerminalStatus) Enabled() bool {
	return term.IsTerminal(s.fd)
}

// Line formats the current status, cut to width columns.
func (s *TerminalStatus) Line(width int) string {
	st := s.audio.Stats()
	var b strings.Builder
	if !st.Running {
		b.WriteString("ULP idle")
	} else {
		mode := "mono"
		if st.Stereo {
			mode = "stereo"
		}
		fmt.Fprintf(&b, "%s %d Hz | idx %4d/%d | frames %d | retries %d",
			mode, st.SampleRate, st.ReadIndex, st.Capacity, st.FramesWritten, st.Retries)
	}
	if s.dac != nil {
		fmt.Fprintf(&b, " | DAC1 %3d DAC2 %3d", s.dac.Level(DAC_CHANNEL_1), s.dac.Level(DAC_CHANNEL_2))
	}
	line := b.String()
	if width > 0 && len(line) > width-1 {
		line = line[:width-1]
	}
	return line
}

// Run redraws the line until ctx ends, then clears it.
func (s *TerminalStatus) Run(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if w, _, err := term.GetSize(s.fd); err == nil && w > 0 {
		s.width = w
	}
	ticker := time.NewTicker(STATUS_REFRESH)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.width-1))
			return nil
		case <-ticker.C:
			fmt.Fprintf(s.out, "\r%-*s", s.width-1, s.Line(s.width))
		}
	}
}
