package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/insts/cache"
	"github.com/sarchlab/gbasim/loader"
	"github.com/sarchlab/gbasim/timing/frame"
	"github.com/sarchlab/gbasim/timing/latency"
)

var errNoImage = errors.New("no BIOS, ROM or ELF image given")

// options selects what a session loads and how it runs.
type options struct {
	biosPath   string
	romPath    string
	elfPath    string
	configPath string

	frames      uint64
	directBoot  bool
	hle         bool
	decodeCache bool
	pace        bool

	// trace receives one disassembled line per executed instruction.
	trace io.Writer
}

// session is a CPU wired to flat memory through the display and interrupt
// registers of a timeline, and a frame driver.
type session struct {
	opts options
	log  logr.Logger

	mem      *emu.Memory
	irq      *emu.IRQLine
	cpu      *emu.CPU
	timeline *frame.Timeline
	driver   *frame.Driver

	rom *loader.ROM
	elf *loader.Program
}

func newSession(opts options, log logr.Logger) (*session, error) {
	if opts.biosPath == "" && opts.romPath == "" && opts.elfPath == "" {
		return nil, errNoImage
	}

	config := latency.DefaultTimingConfig()
	if opts.configPath != "" {
		var err error
		config, err = latency.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	s := &session{
		opts: opts,
		log:  log,
		mem:  emu.NewMemory(),
		irq:  &emu.IRQLine{},
	}

	if err := s.loadImages(); err != nil {
		return nil, err
	}

	s.timeline = frame.NewTimeline(s.irq)
	if err := s.buildCPU(latency.NewTableWithConfig(config)); err != nil {
		return nil, err
	}

	s.driver = frame.NewDriver(s.cpu, s.timeline,
		frame.WithLogger(log.WithName("frame")),
		frame.WithFramePacing(opts.pace))

	return s, nil
}

func (s *session) loadImages() error {
	if s.opts.biosPath != "" {
		if err := loader.LoadBIOS(s.opts.biosPath, s.mem); err != nil {
			return fmt.Errorf("failed to load BIOS: %w", err)
		}
	}

	if s.opts.romPath != "" {
		rom, err := loader.LoadROM(s.opts.romPath)
		if err != nil {
			return fmt.Errorf("failed to load ROM: %w", err)
		}
		if !rom.Header.ChecksumOK {
			s.log.Info("cartridge header complement mismatch",
				"title", rom.Header.Title, "complement", rom.Header.Complement)
		}
		rom.LoadInto(s.mem)
		s.rom = rom
	}

	if s.opts.elfPath != "" {
		prog, err := loader.Load(s.opts.elfPath)
		if err != nil {
			return fmt.Errorf("failed to load ELF: %w", err)
		}
		prog.LoadInto(s.mem)
		s.elf = prog
	}

	return nil
}

func (s *session) buildCPU(table *latency.Table) error {
	cpuOpts := []emu.CPUOption{
		emu.WithBus(frame.NewRegisterBus(s.mem, s.timeline)),
		emu.WithInterruptLine(s.irq),
		emu.WithLatencyTable(table),
		emu.WithLogger(s.log.WithName("cpu")),
	}

	// Without a BIOS there is nothing at the reset vector, and interrupts
	// need the dispatcher the BIOS would provide.
	if s.opts.biosPath == "" {
		loader.InstallIRQDispatch(s.mem)
	}
	if s.opts.directBoot || s.opts.biosPath == "" {
		cpuOpts = append(cpuOpts, emu.WithDirectBoot())
	}
	if s.opts.hle {
		cpuOpts = append(cpuOpts, emu.WithSWIHandler(emu.NewHLEHandler(s.log.WithName("bios"))))
	}
	if s.opts.decodeCache {
		cpuOpts = append(cpuOpts, emu.WithDecodeCache(cache.DefaultConfig()))
	}
	if s.opts.trace != nil {
		w := s.opts.trace
		cpuOpts = append(cpuOpts, emu.WithTraceHook(func(addr uint32, inst insts.Instruction) {
			fmt.Fprintf(w, "%08X  %s\n", addr, inst)
		}))
	}

	s.cpu = emu.NewCPU(cpuOpts...)
	if err := s.cpu.Reset(); err != nil {
		return fmt.Errorf("failed to reset cpu: %w", err)
	}

	if s.elf != nil {
		regs := s.cpu.RegFile()
		regs.CPSR.T = s.elf.Thumb
		regs.SetPC(s.elf.EntryPoint)
		regs.Set(13, s.elf.InitialSP)
	}

	return nil
}

// run drives the configured number of frames. An interrupted run is not an
// error.
func (s *session) run(ctx context.Context) error {
	err := s.driver.Run(ctx, s.opts.frames)
	if errors.Is(err, context.Canceled) {
		s.log.Info("interrupted", "frames", s.driver.Stats().Frames)
		return nil
	}
	return err
}

func (s *session) report(w io.Writer, elapsed time.Duration) {
	stats := s.cpu.Stats()
	frames := s.driver.Stats()
	state := s.cpu.State()

	if s.rom != nil {
		h := s.rom.Header
		fmt.Fprintf(w, "Cartridge: %q (%s, maker %s, v%d)\n", h.Title, h.GameCode, h.MakerCode, h.Version)
	}
	if s.elf != nil {
		fmt.Fprintf(w, "Program: %s (entry 0x%08X, %d segments)\n",
			s.opts.elfPath, s.elf.EntryPoint, len(s.elf.Segments))
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Frames: %d\n", frames.Frames)
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "  Condition failed: %d\n", stats.Skipped)
	fmt.Fprintf(w, "  Memory ops: %d\n", stats.MemoryOps)
	fmt.Fprintf(w, "  Branches: %d\n", stats.Branches)
	fmt.Fprintf(w, "Halted Cycles: %d\n", stats.HaltedCycles)
	if executed := stats.Cycles - stats.HaltedCycles; stats.Instructions > 0 {
		fmt.Fprintf(w, "CPI: %.2f\n", float64(executed)/float64(stats.Instructions))
	}

	fmt.Fprintf(w, "\nExceptions:\n")
	for k := 0; k < emu.NumExceptionKinds; k++ {
		if n := stats.Exceptions[k]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", emu.ExceptionKind(k), n)
		}
	}

	if dc := s.cpu.DecodeCache(); dc != nil {
		cs := dc.Stats()
		fmt.Fprintf(w, "\nDecode cache: %d hits, %d misses, %d stale, %d evictions\n",
			cs.Hits, cs.Misses, cs.Stale, cs.Evictions)
	}

	fmt.Fprintf(w, "\nFinal PC: 0x%08X  CPSR: %s\n", state.R[15], state.CPSR)
	if elapsed > 0 {
		emulated := time.Duration(frames.Frames) * frame.FrameTime
		fmt.Fprintf(w, "Elapsed: %v (%.1fx real time)\n",
			elapsed.Round(time.Millisecond), emulated.Seconds()/elapsed.Seconds())
	}
}
