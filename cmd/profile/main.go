// Package main provides a profiling wrapper for rvpe to identify simulator
// performance bottlenecks.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/loader"
	"github.com/sarchlab/rvpe/timing/core"
)

var (
	timing      = flag.Bool("timing", false, "Enable timing simulation mode")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Uint64("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
	maxCycles   = flag.Uint64("max-cycles", 10000000, "max cycles in timing mode (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.elf|program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
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

	programPath := flag.Arg(0)

	var (
		prog *loader.Program
		err  error
	)
	if strings.EqualFold(filepath.Ext(programPath), ".elf") {
		prog, err = loader.Load(programPath)
	} else {
		prog, err = loader.LoadBinary(programPath, 0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	start := time.Now()

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	e := emu.NewEmulator(emu.WithMaxInstructions(*instruction))
	if err := prog.LoadInto(e); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	var cycles uint64
	if *timing {
		cycles, err = runTimingProfile(e)
	} else {
		_, err = e.Run()
		cycles = e.Cycles()
	}
	if err != nil {
		fmt.Printf("Stopped: %v\n", err)
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	instrCount := e.InstructionCount()
	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Instructions executed: %d\n", instrCount)
	fmt.Printf("Simulated cycles: %d\n", cycles)
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
}

// runTimingProfile clocks e on a core until it idles or hits the cycle
// limit.
func runTimingProfile(e *emu.Emulator) (uint64, error) {
	c := core.NewCore("PE[0].Core", sim.NewSerialEngine(), 1*sim.GHz, e,
		core.WithMaxCycles(*maxCycles))

	err := c.Run()
	return c.Stats().Cycles, err
}
