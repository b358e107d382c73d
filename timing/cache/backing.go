package cache

import (
	"github.com/sarchlab/rvpe/emu"
)

// BusBacking wraps an emu.Bus as a BackingStore. Block transfers are
// issued as whole words.
type BusBacking struct {
	bus emu.Bus
}

// NewBusBacking creates a new BusBacking adapter.
func NewBusBacking(bus emu.Bus) *BusBacking {
	return &BusBacking{bus: bus}
}

// Read fetches size bytes starting at the word-aligned addr.
func (b *BusBacking) Read(addr uint32, size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i += 4 {
		w := b.bus.Read32(addr + uint32(i))
		for j := 0; j < 4 && i+j < size; j++ {
			data[i+j] = byte(w >> (8 * j))
		}
	}
	return data
}

// Write stores data starting at addr, one byte lane at a time.
func (b *BusBacking) Write(addr uint32, data []byte) {
	for i, v := range data {
		a := addr + uint32(i)
		lane := a & 3
		b.bus.Write32(a, uint32(v)<<(8*lane), 1<<lane)
	}
}
