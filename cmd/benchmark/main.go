// Command benchmark runs the rvpe timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv       Output results in CSV format (default: human-readable)
//	-json      Output results as JSON
//	-no-cache  Disable the L1 cache model
//	-config    Timing configuration (JSON or YAML)
//	-parallel  Number of benchmarks run at once (0 = all)
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/rvpe/benchmarks"
	"github.com/sarchlab/rvpe/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	noCache := flag.Bool("no-cache", false, "Disable the L1 cache model")
	configPath := flag.String("config", "", "Path to timing configuration JSON or YAML file")
	parallel := flag.Int("parallel", 0, "Number of benchmarks run at once (0 = all)")
	core := flag.Bool("core", false, "Run only the core benchmarks")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableCache = !*noCache
	config.Parallel = *parallel
	config.Output = os.Stdout

	if *configPath != "" {
		timing, err := latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *core {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("rvpe Timing Benchmark Harness")
		fmt.Println("=============================")
		fmt.Printf("L1 cache: %v\n", config.EnableCache)
		fmt.Println("")
	}

	results, err := harness.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *csvOutput:
		harness.PrintCSV(results)
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		harness.PrintResults(results)
	}

	for _, r := range results {
		if !r.Passed {
			fmt.Fprintf(os.Stderr, "%s: unexpected result %d\n", r.Name, r.Result)
			os.Exit(1)
		}
	}
}
