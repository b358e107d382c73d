// Package main provides the entry point for rvpe.
// rvpe is a cycle-timed RV32IM processing-element simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/rvpe
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvpe - RV32IM Processing Element Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: rvpe [options] <program.elf|program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing    Enable timing simulation mode")
	fmt.Println("  -config    Path to timing configuration JSON or YAML file")
	fmt.Println("  -platform  Path to a platform testcase YAML file")
	fmt.Println("  -cache     Enable the L1 cache model")
	fmt.Println("  -v         Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvpe' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvpe' instead.")
	}
}
