// Validate decoder throughput - measures allocations per decoded word
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/rvpe/insts"
)

func main() {
	decoder := insts.NewDecoder()

	words := []uint32{
		insts.Encode(insts.OpADDI, 10, 11, 0, 42),   // addi a0, a1, 42
		insts.Encode(insts.OpADD, 12, 13, 14, 0),    // add a2, a3, a4
		insts.Encode(insts.OpLW, 5, 2, 0, -8),       // lw t0, -8(sp)
		insts.Encode(insts.OpBNE, 0, 5, 6, -16),     // bne t0, t1, -16
		insts.Encode(insts.OpMUL, 7, 5, 6, 0),       // mul t2, t0, t1
		insts.EncodeCSR(insts.OpCSRRW, 0, 5, 0x305), // csrw mtvec, t0
	}

	// Warm up
	for i := 0; i < 1000; i++ {
		decoder.Decode(words[0])
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000

	var unknown int
	for i := 0; i < iterations; i++ {
		for _, w := range words {
			if decoder.Decode(w).Op == insts.OpUnknown {
				unknown++
			}
		}
	}

	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	totalDecodes := iterations * len(words)
	allocations := m2.Mallocs - m1.Mallocs
	allocatedBytes := m2.TotalAlloc - m1.TotalAlloc

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Total decode operations: %d\n", totalDecodes)
	fmt.Printf("Unknown words: %d\n", unknown)
	fmt.Printf("Time elapsed: %v\n", elapsed)
	fmt.Printf("Decodes per second: %.0f\n", float64(totalDecodes)/elapsed.Seconds())
	fmt.Printf("Allocations: %d\n", allocations)
	fmt.Printf("Allocated bytes: %d\n", allocatedBytes)
	fmt.Printf("Allocations per decode: %.3f\n", float64(allocations)/float64(totalDecodes))
	fmt.Printf("Bytes per decode: %.1f\n", float64(allocatedBytes)/float64(totalDecodes))

	if unknown > 0 {
		fmt.Printf("\nFAIL: %d words decoded as unknown\n", unknown)
	} else if float64(allocations)/float64(totalDecodes) <= 1.0 {
		fmt.Printf("\nOK: at most one allocation per decode\n")
	} else {
		fmt.Printf("\nWARNING: high allocation rate detected\n")
	}
}
