// Package main provides the rvpe command line simulator.
// It runs an RV32IM program on one processing element, functionally or
// with timing, or on a grid of elements described by a testcase.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvpe/emu"
	"github.com/sarchlab/rvpe/insts"
	"github.com/sarchlab/rvpe/loader"
	"github.com/sarchlab/rvpe/platform"
	"github.com/sarchlab/rvpe/timing/cache"
	"github.com/sarchlab/rvpe/timing/core"
	"github.com/sarchlab/rvpe/timing/latency"
)

type options struct {
	timing       bool
	configPath   string
	platformPath string
	enableCache  bool
	loadAddr     uint64
	maxCycles    uint64
	maxInsts     uint64
	verbosity    int
}

func main() {
	var opts options
	flag.BoolVar(&opts.timing, "timing", false, "Enable timing simulation mode")
	flag.StringVar(&opts.configPath, "config", "", "Path to timing configuration JSON or YAML file")
	flag.StringVar(&opts.platformPath, "platform", "", "Path to a platform testcase YAML file")
	flag.BoolVar(&opts.enableCache, "cache", false, "Place an L1 cache in front of memory (timing mode)")
	flag.Uint64Var(&opts.loadAddr, "addr", 0, "Load and entry address of raw binary images")
	flag.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = no limit)")
	flag.Uint64Var(&opts.maxInsts, "max-insts", 0, "Stop after this many instructions (0 = no limit)")
	flag.IntVar(&opts.verbosity, "v", 0, "Log verbosity")
	flag.Parse()

	if flag.NArg() < 1 && opts.platformPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: rvpe [options] <program.elf|program.bin>\n")
		fmt.Fprintf(os.Stderr, "       rvpe -platform testcase.yaml [program]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: opts.verbosity})

	if err := run(opts, flag.Args(), os.Stdout, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string, out io.Writer, log logr.Logger) error {
	var prog *loader.Program
	if len(args) > 0 {
		var err error
		prog, err = loadProgram(args[0], uint32(opts.loadAddr))
		if err != nil {
			return err
		}
		log.V(1).Info("loaded", "path", args[0], "entry", prog.EntryPoint,
			"segments", len(prog.Segments))
	}

	switch {
	case opts.platformPath != "":
		return runPlatform(opts, prog, out, log)
	case opts.timing:
		return runTiming(opts, prog, out, log)
	default:
		return runEmulation(opts, prog, out, log)
	}
}

func loadProgram(path string, addr uint32) (*loader.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".elf") {
		return loader.Load(path)
	}
	return loader.LoadBinary(path, addr)
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(opts options, prog *loader.Program, out io.Writer, log logr.Logger) error {
	e := emu.NewEmulator(
		emu.WithLogger(log.WithName("emu")),
		emu.WithMaxInstructions(opts.maxInsts),
	)
	if err := prog.LoadInto(e); err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	_, err := e.Run()
	printEmulatorReport(out, e)
	return err
}

// runTiming runs the program on a clocked core.
func runTiming(opts options, prog *loader.Program, out io.Writer, log logr.Logger) error {
	timingConfig := latency.DefaultTimingConfig()
	if opts.configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
	}
	if err := timingConfig.Validate(); err != nil {
		return fmt.Errorf("invalid timing config: %w", err)
	}

	memory := emu.NewMemory()
	emuOpts := []emu.EmulatorOption{
		emu.WithMemory(memory),
		emu.WithLogger(log.WithName("emu")),
	}
	coreOpts := []core.CoreOption{
		core.WithLatencyTable(latency.NewTableWithConfig(timingConfig)),
		core.WithMaxCycles(opts.maxCycles),
		core.WithLogger(log.WithName("core")),
	}

	var bus *cache.CachedBus
	if opts.enableCache {
		bus = cache.NewCachedBus(cache.DefaultL1Config(), memory)
		emuOpts = append(emuOpts, emu.WithBus(bus))
		coreOpts = append(coreOpts, core.WithMemoryLatency(bus))
	}

	e := emu.NewEmulator(emuOpts...)
	if err := prog.LoadInto(e); err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	c := core.NewCore("PE[0].Core", sim.NewSerialEngine(), 1*sim.GHz, e, coreOpts...)
	if err := c.Run(); err != nil {
		return err
	}

	printEmulatorReport(out, e)
	printCoreReport(out, c.Stats())
	if bus != nil {
		s := bus.Cache().Stats()
		_, _ = fmt.Fprintf(out, "L1: %d hits, %d misses (%.1f%% hit rate)\n",
			s.Hits, s.Misses, 100*s.HitRate())
	}
	return nil
}

// runPlatform runs a testcase grid, optionally loading prog into every
// element.
func runPlatform(opts options, prog *loader.Program, out io.Writer, log logr.Logger) error {
	config, err := platform.LoadConfig(opts.platformPath)
	if err != nil {
		return err
	}
	if opts.maxCycles > 0 {
		config.HW.MaxCycles = opts.maxCycles
	}

	p, err := platform.New(config, platform.WithLogger(log))
	if err != nil {
		return err
	}
	if prog != nil {
		if err := p.LoadProgram(prog); err != nil {
			return err
		}
	}

	if err := p.Run(); err != nil {
		return err
	}

	for _, pe := range p.PEs() {
		_, _ = fmt.Fprintf(out, "=== PE(%d,%d) ===\n", pe.X, pe.Y)
		printCoreReport(out, pe.Core.Stats())
	}
	return nil
}

func printEmulatorReport(out io.Writer, e *emu.Emulator) {
	stats := e.Stats()

	_, _ = fmt.Fprintf(out, "PC: 0x%08X  privilege: %v  a0: %d\n",
		e.RegFile().PC, e.Privilege(), e.RegFile().ReadReg(10))
	_, _ = fmt.Fprintf(out, "Instructions: %d (kernel %d, tasks %d)\n",
		stats.Retired(), stats.KernelInstructions(), stats.TaskInstructions())

	for c := insts.Class(0); c < insts.NumClasses; c++ {
		if n := stats.Class(c); n > 0 {
			_, _ = fmt.Fprintf(out, "  %-10s %d\n", c, n)
		}
	}
	for code, n := range stats.Exceptions {
		if n > 0 {
			_, _ = fmt.Fprintf(out, "Exception %v: %d\n", emu.ExceptionCode(code), n)
		}
	}
	for code, n := range stats.Interrupts {
		if n > 0 {
			_, _ = fmt.Fprintf(out, "Interrupt %v: %d\n", emu.InterruptCode(code), n)
		}
	}
}

func printCoreReport(out io.Writer, s core.Stats) {
	_, _ = fmt.Fprintf(out, "Cycles: %d (reset %d, idle %d, stall %d)\n",
		s.Cycles, s.ResetCycles, s.IdleCycles, s.StallCycles)
	_, _ = fmt.Fprintf(out, "Retired: %d  traps: %d  CPI: %.2f\n",
		s.Instructions, s.Traps, s.CPI())
}
