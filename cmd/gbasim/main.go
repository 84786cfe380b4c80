// Package main provides the entry point for gbasim, a headless runner for the
// ARM7TDMI core. It loads a BIOS, a cartridge or an ARM ELF image, runs a
// number of frames and reports execution statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

var (
	biosPath    = flag.String("bios", "", "Path to a 16 KiB BIOS image")
	romPath     = flag.String("rom", "", "Path to a cartridge ROM image")
	elfPath     = flag.String("elf", "", "Path to a 32-bit ARM ELF executable")
	frames      = flag.Uint64("frames", 60, "Number of frames to run (0 = until interrupted)")
	configPath  = flag.String("config", "", "Path to timing configuration JSON or YAML file")
	verbosity   = flag.Int("v", 0, "Log verbosity")
	trace       = flag.Bool("trace", false, "Print every executed instruction")
	directBoot  = flag.Bool("direct-boot", false, "Skip the BIOS and start at the cartridge")
	hle         = flag.Bool("hle", false, "Service arithmetic and halt BIOS calls on the host")
	decodeCache = flag.Bool("decode-cache", true, "Cache decoded instructions")
	pace        = flag.Bool("pace", false, "Run frames at real-time speed")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	statsAddr   = flag.String("statsview", "", "Serve live runtime charts on this address, e.g. localhost:12600")
)

func main() {
	flag.Parse()

	if *biosPath == "" && *romPath == "" && *elfPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: gbasim [options] -rom <game.gba> | -elf <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := newLogger(*verbosity)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *statsAddr != "" {
		stopStats := launchStatsView(*statsAddr, log.WithName("statsview"))
		defer stopStats()
	}

	opts := options{
		biosPath:    *biosPath,
		romPath:     *romPath,
		elfPath:     *elfPath,
		configPath:  *configPath,
		frames:      *frames,
		directBoot:  *directBoot,
		hle:         *hle,
		decodeCache: *decodeCache,
		pace:        *pace,
	}
	if *trace {
		opts.trace = os.Stdout
	}

	s, err := newSession(opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := s.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	if *memProfile != "" {
		writeHeapProfile(*memProfile)
	}

	s.report(os.Stdout, elapsed)
}

// newLogger writes structured log lines to stderr.
func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: v})
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
		return
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
	}
}
