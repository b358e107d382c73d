package cache

import (
	"math/bits"

	"github.com/sarchlab/rvpe/emu"
)

// CachedBus places a Cache in front of a bus. It implements emu.Bus and
// accumulates the latency of the accesses it serves until drained.
type CachedBus struct {
	cache   *Cache
	next    emu.Bus
	pending uint64
}

// NewCachedBus creates a cache of the given configuration backed by next.
func NewCachedBus(config Config, next emu.Bus) *CachedBus {
	return &CachedBus{
		cache: New(config, NewBusBacking(next)),
		next:  next,
	}
}

// Cache returns the underlying cache.
func (b *CachedBus) Cache() *Cache {
	return b.cache
}

// Read32 reads the aligned word containing addr through the cache.
func (b *CachedBus) Read32(addr uint32) uint32 {
	r := b.cache.Read(addr&^3, 4)
	b.pending += r.Latency
	return r.Data
}

// Write32 writes the enabled byte lanes through the cache. The enabled
// lanes must be contiguous.
func (b *CachedBus) Write32(addr uint32, data uint32, byteEnable uint8) {
	if byteEnable == 0 {
		return
	}
	lo := bits.TrailingZeros8(byteEnable)
	size := bits.OnesCount8(byteEnable)

	r := b.cache.Write(addr&^3+uint32(lo), size, data>>(8*lo))
	b.pending += r.Latency
}

// Mapped reports whether the next level backs addr.
func (b *CachedBus) Mapped(addr uint32) bool {
	return b.next.Mapped(addr)
}

// Flush writes every dirty line back to the next level. Memory read
// directly after a write-back run is stale until the bus is flushed.
func (b *CachedBus) Flush() {
	b.cache.Flush()
}

// DrainLatency returns the cycles accumulated since the last drain and
// resets the counter.
func (b *CachedBus) DrainLatency() uint64 {
	n := b.pending
	b.pending = 0
	return n
}
