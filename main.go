// main.go - Main entry point for the ULP audio bridge

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
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const PROJECT_URL = "https://github.com/intuitionamiga/ulpaudio"

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147mULP Audio\033[0m - ESP32 ULP coprocessor DAC streaming")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println(PROJECT_URL)
	fmt.Println("License: GPLv3 or later")
}

func main() {
	var (
		toneHz      float64
		toneRate    int
		luaScript   string
		mono        bool
		dac         int
		mix         string
		boardPath   string
		recordPath  string
		listing     bool
		monitor     bool
		scope       bool
		seconds     float64
		showVersion bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Float64Var(&toneHz, "tone", 0, "Play a sine tone of this frequency instead of a file")
	flagSet.IntVar(&toneRate, "rate", DEFAULT_SAMPLE_RATE, "Sample rate of the -tone source")
	flagSet.StringVar(&luaScript, "lua", "", "Render audio from a Lua script defining sample(n, rate)")
	flagSet.BoolVar(&mono, "mono", false, "Downmix to a single DAC")
	flagSet.IntVar(&dac, "dac", 0, "DAC used for mono output (1 or 2, default from board)")
	flagSet.StringVar(&mix, "mix", "", "Mono mix policy: average, left or right")
	flagSet.StringVar(&boardPath, "board", "", "YAML board profile")
	flagSet.StringVar(&recordPath, "record", "", "Record the DAC pads to a WAV file")
	flagSet.BoolVar(&listing, "listing", false, "Print the generated ULP program")
	flagSet.BoolVar(&monitor, "monitor", false, "Play the DAC pads on the sound card")
	flagSet.BoolVar(&scope, "scope", false, "Show the DAC oscilloscope window")
	flagSet.Float64Var(&seconds, "seconds", 0, "Stop after this many seconds of audio")
	flagSet.BoolVar(&showVersion, "features", false, "Print version and compiled features")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./ulp_audio [-mono] [-dac 1|2] [-board board.yaml] [-record out.wav] [-monitor] [-scope] file|-tone Hz|-lua script.lua")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if showVersion {
		printFeatures()
		return
	}

	boilerPlate()

	filename := flagSet.Arg(0)
	if luaScript != "" {
		filename = luaScript
	}
	if filename == "" && toneHz <= 0 {
		flagSet.Usage()
		os.Exit(1)
	}

	board := DefaultBoardProfile()
	if boardPath != "" {
		var err error
		board, err = LoadBoardProfile(boardPath)
		if err != nil {
			fmt.Printf("Error loading board profile: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Board: %s\n", board.Name)
	}
	if dac != 0 {
		board.MonoDAC = dac
	}
	if mix != "" {
		board.MonoMix = mix
	}
	if err := board.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var src PCMSource
	if filename != "" {
		var err error
		src, err = OpenPCMFile(filename)
		if err != nil {
			fmt.Printf("Error opening audio: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Playing %s: %d Hz, %d channels\n", filename, src.SampleRate(), src.Channels())
	} else {
		src = NewToneSource(toneHz, toneRate, 2, 0)
		fmt.Printf("Playing %.1f Hz tone at %d Hz\n", toneHz, toneRate)
	}
	src = LimitPCMSource(src, seconds)
	defer src.Close()

	player, err := NewPlayer(board)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = player.Play(ctx, src, PlayerOptions{
		Mono:       mono,
		RecordPath: recordPath,
		Monitor:    monitor,
		Scope:      scope,
		Listing:    listing,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		src.Close()
		os.Exit(1)
	}
}
