// Command benchmark runs the ARM7TDMI cycle benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv              Output results in CSV format (default: human-readable)
//	-json             Output results as JSON
//	-core             Run only the core benchmarks
//	-config           Timing configuration JSON or YAML file
//	-no-decode-cache  Disable the decoded-instruction cache
//
// Example:
//
//	# Compare two cost models
//	go run ./cmd/benchmark -csv > default.csv
//	go run ./cmd/benchmark -csv -config slow-rom.yaml > slow-rom.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/gbasim/benchmarks"
	"github.com/sarchlab/gbasim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Path to timing configuration JSON or YAML file")
	noDecodeCache := flag.Bool("no-decode-cache", false, "Disable the decoded-instruction cache")
	verbosity := flag.Int("v", 0, "Log verbosity")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.DecodeCache = !*noDecodeCache
	config.Output = os.Stdout
	config.Log = funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: *verbosity})

	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		if err := timing.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error in timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("ARM7TDMI Cycle Benchmark Harness")
		fmt.Println("================================")
		fmt.Printf("Decode cache: %v\n", config.DecodeCache)
		fmt.Println("")
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Halted {
			os.Exit(1)
		}
	}
}
