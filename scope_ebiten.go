//go:build !headless

// scope_ebiten.go - Ebiten oscilloscope for the DAC pads

/*
██╗   ██╗██╗     ██████╗      █████╗ ██╗   ██╗██████╗ ██╗ ██████╗
██║   ██║██║     ██╔══██╗    ██╔══██╗██║   ██║██╔══██╗██║██╔═══██╗
██║   ██║██║     ██████╔╝    ███████║██║   ██║██║  ██║██║██║   ██║
██║   ██║██║     ██╔═══╝     ██╔══██║██║   ██║██║  ██║██║██║   ██║
╚██████╔╝███████╗██║         ██║  ██║╚██████╔╝██████╔╝██║╚██████╔╝
 ╚═════╝ ╚══════╝╚═╝         ╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝ ╚═════╝

(c) 2024 - 2026 Zayn Otley
https://github.com/intuitionamiga/ulpaudio
License: GPLv3 or later
*/

package main

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	SCOPE_WIDTH    = 640
	SCOPE_HEIGHT   = 360
	SCOPE_TRACE_H  = 140 // pixel height of one pad's trace
	SCOPE_MARGIN   = 20
	SCOPE_MSG_TIME = 2 * time.Second
)

var (
	scopeBackground = color.RGBA{0x10, 0x10, 0x18, 0xFF}
	scopeGrid       = color.RGBA{0x30, 0x30, 0x40, 0xFF}
	scopeDAC1       = color.RGBA{0x40, 0xFF, 0x80, 0xFF}
	scopeDAC2       = color.RGBA{0xFF, 0xB0, 0x40, 0xFF}
	scopeText       = color.RGBA{0xE0, 0xE0, 0xE0, 0xFF}
)

// ScopeWindow draws the last SCOPE_WIDTH frames of both pads. C copies the
// ULP program listing to the clipboard; Escape closes the window.
type ScopeWindow struct {
	tap    *DACTap
	audio  *ULPAudioOutput
	frames []DACFrame

	history [SCOPE_WIDTH]DACFrame
	pos     int

	clipboardOnce sync.Once
	clipboardOK   bool
	message       string
	messageUntil  time.Time

	closing atomic.Bool
}

func init() {
	compiledFeatures = append(compiledFeatures, "scope:ebiten")
}

func NewScopeWindow(tap *DACTap, audio *ULPAudioOutput) *ScopeWindow {
	s := &ScopeWindow{tap: tap, audio: audio, frames: make([]DACFrame, 4096)}
	for i := range s.history {
		s.history[i] = DACFrame{DAC1: DAC_MID_CODE, DAC2: DAC_MID_CODE}
	}
	return s
}

// Run opens the window and blocks until it is closed. Must be called from
// the main goroutine.
func (s *ScopeWindow) Run() error {
	ebiten.SetWindowSize(SCOPE_WIDTH*2, SCOPE_HEIGHT*2)
	ebiten.SetWindowTitle("ULP DAC scope")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	err := ebiten.RunGame(s)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Close asks the window to shut down on its next update.
func (s *ScopeWindow) Close() {
	s.closing.Store(true)
}

func (s *ScopeWindow) Update() error {
	if s.closing.Load() || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	for {
		n := s.tap.Read(s.frames)
		for _, f := range s.frames[:n] {
			s.history[s.pos] = f
			s.pos = (s.pos + 1) % SCOPE_WIDTH
		}
		if n < len(s.frames) {
			break
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		s.copyListing()
	}
	return nil
}

func (s *ScopeWindow) copyListing() {
	s.clipboardOnce.Do(func() {
		s.clipboardOK = clipboard.Init() == nil
	})
	if !s.clipboardOK {
		s.flash("clipboard unavailable")
		return
	}
	lines := s.audio.Listing()
	if len(lines) == 0 {
		s.flash("no ULP program loaded")
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(FormatListing(lines)))
	s.flash(fmt.Sprintf("copied %d ULP words", len(lines)))
}

func (s *ScopeWindow) flash(msg string) {
	s.message = msg
	s.messageUntil = time.Now().Add(SCOPE_MSG_TIME)
}

func scopeY(top int, code uint8) int {
	return top + SCOPE_TRACE_H - 1 - int(code)*(SCOPE_TRACE_H-1)/255
}

func (s *ScopeWindow) Draw(screen *ebiten.Image) {
	screen.Fill(scopeBackground)

	tops := [2]int{SCOPE_MARGIN, SCOPE_MARGIN*2 + SCOPE_TRACE_H}
	for _, top := range tops {
		mid := scopeY(top, DAC_MID_CODE)
		for x := 0; x < SCOPE_WIDTH; x += 2 {
			screen.Set(x, mid, scopeGrid)
		}
	}

	prev1, prev2 := -1, -1
	for x := 0; x < SCOPE_WIDTH; x++ {
		f := s.history[(s.pos+x)%SCOPE_WIDTH]
		y1 := scopeY(tops[0], f.DAC1)
		y2 := scopeY(tops[1], f.DAC2)
		drawColumn(screen, x, prev1, y1, scopeDAC1)
		drawColumn(screen, x, prev2, y2, scopeDAC2)
		prev1, prev2 = y1, y2
	}

	face := basicfont.Face7x13
	text.Draw(screen, "DAC1", face, 4, tops[0]+12, scopeDAC1)
	text.Draw(screen, "DAC2", face, 4, tops[1]+12, scopeDAC2)

	st := s.audio.Stats()
	status := "ULP idle"
	if st.Running {
		status = fmt.Sprintf("%d Hz  clk %d Hz  idx %d/%d  retries %d  dropped %d",
			st.SampleRate, st.ClockHz, st.ReadIndex, st.Capacity, st.Retries, s.tap.Dropped())
	}
	text.Draw(screen, status, face, 4, SCOPE_HEIGHT-8, scopeText)
	if s.message != "" && time.Now().Before(s.messageUntil) {
		text.Draw(screen, s.message, face, SCOPE_WIDTH-7*len(s.message)-4, SCOPE_HEIGHT-8, scopeText)
	}
}

// drawColumn joins the previous trace point to y with a vertical run.
func drawColumn(screen *ebiten.Image, x, prev, y int, c color.Color) {
	if prev < 0 {
		prev = y
	}
	lo, hi := min(prev, y), max(prev, y)
	for yy := lo; yy <= hi; yy++ {
		screen.Set(x, yy, c)
	}
}

func (s *ScopeWindow) Layout(outsideWidth, outsideHeight int) (int, int) {
	return SCOPE_WIDTH, SCOPE_HEIGHT
}
