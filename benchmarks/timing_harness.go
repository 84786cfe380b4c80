// Package benchmarks provides cycle-count benchmarks for the ARM7TDMI cost
// model: small hand-assembled kernels that run from the cartridge window and
// end with a BIOS halt call.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts/cache"
	"github.com/sarchlab/gbasim/timing/latency"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count charged by the cost model.
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// Instructions counts every fetched instruction, skipped ones included.
	Instructions uint64 `json:"instructions"`

	// Skipped is the number of instructions whose condition failed.
	Skipped uint64 `json:"skipped"`

	MemoryOps uint64 `json:"memory_ops"`
	Branches  uint64 `json:"branches"`

	CPI float64 `json:"cpi"`

	// Exceptions is the number of exceptions taken.
	Exceptions uint64 `json:"exceptions"`

	DecodeHits   uint64 `json:"decode_hits,omitempty"`
	DecodeMisses uint64 `json:"decode_misses,omitempty"`

	// R0 is the value left in r0 when the benchmark halted.
	R0 uint32 `json:"r0"`

	// Halted is false if the benchmark ran out of cycles.
	Halted bool `json:"halted"`

	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// Setup prepares registers and memory after reset.
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is machine code loaded at the cartridge entry.
	Program []byte

	// Thumb starts the program in the 16-bit encoding.
	Thumb bool

	// ExpectedR0 is the value r0 must hold at the halt.
	ExpectedR0 uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Timing is the cost model. Nil selects the defaults.
	Timing *latency.TimingConfig

	// DecodeCache enables the decoded-instruction cache.
	DecodeCache bool

	// MaxCycles bounds each benchmark.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	Log logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Timing:      latency.DefaultTimingConfig(),
		DecodeCache: true,
		MaxCycles:   1_000_000,
		Output:      os.Stdout,
		Log:         logr.Discard(),
	}
}

// Harness runs benchmarks and collects timing results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	if config.Log.GetSink() == nil {
		config.Log = logr.Discard()
	}
	return &Harness{config: config}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll runs all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))
	for _, bench := range h.benchmarks {
		results = append(results, h.Run(bench))
	}
	return results
}

// Run executes one benchmark on a fresh CPU booted straight into the
// cartridge with host-serviced BIOS calls.
func (h *Harness) Run(bench Benchmark) BenchmarkResult {
	memory := emu.NewMemory()
	memory.LoadBytes(emu.CartridgeEntry, bench.Program)

	opts := []emu.CPUOption{
		emu.WithBus(memory),
		emu.WithDirectBoot(),
		emu.WithLatencyTable(latency.NewTableWithConfig(h.config.Timing)),
		emu.WithSWIHandler(emu.NewHLEHandler(h.config.Log)),
		emu.WithLogger(h.config.Log.WithValues("benchmark", bench.Name)),
	}
	if h.config.DecodeCache {
		opts = append(opts, emu.WithDecodeCache(cache.DefaultConfig()))
	}

	cpu := emu.NewCPU(opts...)
	if err := cpu.Reset(); err != nil {
		h.config.Log.Error(err, "reset failed", "benchmark", bench.Name)
		return BenchmarkResult{Name: bench.Name, Description: bench.Description}
	}

	regFile := cpu.RegFile()
	if bench.Thumb {
		regFile.CPSR.T = true
		regFile.SetPC(emu.CartridgeEntry)
	}
	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	start := time.Now()
	for !cpu.Halted() && cpu.Stats().Cycles < h.config.MaxCycles {
		cpu.Step()
	}
	wallTime := time.Since(start)

	stats := cpu.Stats()
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		SimulatedCycles: stats.Cycles,
		Instructions:    stats.Instructions,
		Skipped:         stats.Skipped,
		MemoryOps:       stats.MemoryOps,
		Branches:        stats.Branches,
		R0:              regFile.Get(0),
		Halted:          cpu.Halted(),
		WallTime:        wallTime,
	}
	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}
	for _, n := range stats.Exceptions {
		result.Exceptions += n
	}
	if dc := cpu.DecodeCache(); dc != nil {
		cs := dc.Stats()
		result.DecodeHits = cs.Hits
		result.DecodeMisses = cs.Misses
	}

	if !result.Halted {
		h.config.Log.Info("benchmark did not halt", "benchmark", bench.Name, "cycles", stats.Cycles)
	} else if result.R0 != bench.ExpectedR0 {
		h.config.Log.Info("unexpected result", "benchmark", bench.Name,
			"r0", result.R0, "expected", bench.ExpectedR0)
	}

	return result
}

// PrintResults prints benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "=== ARM7TDMI Cycle Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  r0: %d (halted: %v)\n", r.R0, r.Halted)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:  %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions:      %d\n", r.Instructions)
		_, _ = fmt.Fprintf(w, "  Condition Failed:  %d\n", r.Skipped)
		_, _ = fmt.Fprintf(w, "  Memory Ops:        %d\n", r.MemoryOps)
		_, _ = fmt.Fprintf(w, "  Branches:          %d\n", r.Branches)
		_, _ = fmt.Fprintf(w, "  CPI:               %.3f\n", r.CPI)
		if r.Exceptions > 0 {
			_, _ = fmt.Fprintf(w, "  Exceptions:        %d\n", r.Exceptions)
		}
		if r.DecodeHits > 0 || r.DecodeMisses > 0 {
			_, _ = fmt.Fprintln(w, "  --- Decode Cache ---")
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.DecodeHits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.DecodeMisses)
		}
		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV prints benchmark results in CSV format.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "name,cycles,instructions,skipped,memory_ops,branches,cpi,exceptions,decode_hits,decode_misses,r0,halted")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s,%d,%d,%d,%d,%d,%.3f,%d,%d,%d,%d,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.Instructions,
			r.Skipped,
			r.MemoryOps,
			r.Branches,
			r.CPI,
			r.Exceptions,
			r.DecodeHits,
			r.DecodeMisses,
			r.R0,
			r.Halted,
		)
	}
}

// PrintJSON writes benchmark results as an indented JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	enc := json.NewEncoder(h.config.Output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}
