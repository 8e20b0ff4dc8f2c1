package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	PLAYER_COPY_BUFFER   = 4096
	PLAYER_BEGIN_TIMEOUT = 2 * time.Second
	DAC_TAP_FRAMES       = 1 << 16
)

// PlayerOptions selects the optional front-ends around a playback.
type PlayerOptions struct {
	Mono       bool   // downmix 2-channel sources onto the mono DAC
	RecordPath string // WAV capture of the DAC pads
	Monitor    bool   // play the DAC pads on the sound card
	Scope      bool   // open the oscilloscope window
	Listing    bool   // print the ULP program after Begin
}

// Player feeds a PCMSource through the ULP audio output of a simulated board.
type Player struct {
	board BoardProfile
	chip  *SimulatedESP32
	out   *ULPAudioOutput
}

func NewPlayer(board BoardProfile) (*Player, error) {
	chip := NewSimulatedESP32(board.ESP32Config())
	out := NewULPAudioOutput(chip)
	if err := board.Apply(out); err != nil {
		return nil, err
	}
	out.Logf = func(format string, args ...any) { fmt.Printf(format, args...) }
	return &Player{board: board, chip: chip, out: out}, nil
}

func (p *Player) Output() *ULPAudioOutput { return p.out }
func (p *Player) Chip() *SimulatedESP32   { return p.chip }

// contextReader stops a copy between chunks once ctx ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

// newTap attaches a fresh DAC tap running at the output's sample rate.
func (p *Player) newTap() *DACTap {
	st := p.out.Stats()
	tap := NewDACTap(st.ClockHz, st.SampleRate, DAC_TAP_FRAMES)
	tap.Attach(p.chip.DAC())
	return tap
}

// Play streams src until it ends or ctx is cancelled, then halts the ULP.
func (p *Player) Play(ctx context.Context, src PCMSource, opts PlayerOptions) error {
	cfg := AudioConfig{
		SampleRate:    src.SampleRate(),
		Channels:      src.Channels(),
		BitsPerSample: SUPPORTED_BITS,
		DownmixToMono: opts.Mono,
	}
	beginCtx, cancelBegin := context.WithTimeout(ctx, PLAYER_BEGIN_TIMEOUT)
	err := p.out.BeginContext(beginCtx, cfg)
	cancelBegin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := p.out.End(); err != nil && !errors.Is(err, ErrNotRunning) {
			fmt.Printf("Error stopping ULP: %v\n", err)
		}
	}()

	if opts.Listing {
		fmt.Print(FormatListing(p.out.Listing()[:ULP_PROGRAM_WORDS]))
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer stop()
		w := NewFrameWriter(p.out)
		buf := make([]byte, PLAYER_COPY_BUFFER)
		if _, err := io.CopyBuffer(w, contextReader{ctx: gctx, r: src}, buf); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("feed: %w", err)
		}
		return p.out.Drain(gctx)
	})

	status := NewTerminalStatus(p.out, p.chip.DAC())
	g.Go(func() error {
		return status.Run(gctx)
	})

	if opts.RecordPath != "" {
		rec, err := NewDACRecorder(opts.RecordPath, p.newTap(), cfg.SampleRate)
		if err != nil {
			stop()
			g.Wait()
			return fmt.Errorf("record: %w", err)
		}
		g.Go(func() error {
			err := rec.Run(gctx)
			fmt.Printf("Recorded %d frames to %s\n", rec.Frames(), opts.RecordPath)
			return err
		})
	}

	if opts.Monitor {
		monitor, err := NewOtoPlayer(cfg.SampleRate)
		if err != nil {
			fmt.Printf("Failed to initialize monitor: %v\n", err)
		} else {
			monitor.SetupPlayer(p.newTap())
			monitor.Start()
			g.Go(func() error {
				<-gctx.Done()
				monitor.Close()
				return nil
			})
		}
	}

	if opts.Scope {
		scope := NewScopeWindow(p.newTap(), p.out)
		g.Go(func() error {
			<-gctx.Done()
			scope.Close()
			return nil
		})
		// ebiten owns the main goroutine until the window closes
		if err := scope.Run(); err != nil {
			fmt.Printf("Scope: %v\n", err)
		} else {
			stop()
		}
	}

	err = g.Wait()
	st := p.out.Stats()
	fmt.Printf("Played %d frames, %d ring words, %d full-ring retries\n", st.FramesWritten, st.WordsPushed, st.Retries)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
