// Package cache provides an optional L1 model for a processing element,
// built on the Akita cache directory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size" yaml:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity" yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size" yaml:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency" yaml:"hit_latency"`
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64 `json:"miss_latency" yaml:"miss_latency"`
	// WriteBack keeps stores in the cache until eviction. Otherwise every
	// store is also written to the backing store.
	WriteBack bool `json:"write_back" yaml:"write_back"`
}

// DefaultL1Config returns the default configuration of a processing
// element's unified L1: 8KB, 2-way, 32B lines, write-through.
func DefaultL1Config() Config {
	return Config{
		Size:          8 * 1024,
		Associativity: 2,
		BlockSize:     32,
		HitLatency:    1,
		MissLatency:   8,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Data is the data read (for load operations).
	Data uint32
}

// Cache represents an L1 cache using Akita cache components.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// HitRate returns hits over all accesses, or 0 before any access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// BackingStore interface for the next level in the memory hierarchy.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	bs := uint32(c.config.BlockSize)
	return addr / bs * bs
}

// Read performs a cache read operation.
// Returns the access result including hit/miss and latency.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Reads++

	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint32(c.config.BlockSize)
		blockData := c.dataStore[c.blockIndex(block)]

		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
			Data:    extractData(blockData, offset, size),
		}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write operation.
// Uses write-allocate policy: on miss, fetch the block first, then write.
func (c *Cache) Write(addr uint32, size int, data uint32) AccessResult {
	c.stats.Writes++

	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))

	var result AccessResult
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint32(c.config.BlockSize)
		blockData := c.dataStore[c.blockIndex(block)]
		storeData(blockData, offset, size, data)
		block.IsDirty = c.config.WriteBack

		result = AccessResult{Hit: true, Latency: c.config.HitLatency}
	} else {
		c.stats.Misses++
		result = c.handleMiss(addr, size, true, data)
	}

	if !c.config.WriteBack && c.backing != nil {
		buf := make([]byte, size)
		storeData(buf, 0, size, data)
		c.backing.Write(addr, buf)
	}

	return result
}

// handleMiss handles a cache miss by fetching from backing store.
func (c *Cache) handleMiss(addr uint32, size int, isWrite bool, writeData uint32) AccessResult {
	result := AccessResult{
		Hit:     false,
		Latency: c.config.MissLatency,
	}

	blockAddr := c.blockAddr(addr)

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.Write(uint32(victim.Tag), victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.Read(blockAddr, c.config.BlockSize))
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	// Tag holds the block-aligned address.
	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr % uint32(c.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = c.config.WriteBack
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)

	return result
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				blockData := c.dataStore[c.blockIndex(block)]
				c.backing.Write(uint32(block.Tag), blockData)
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

func extractData(data []byte, offset uint32, size int) uint32 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}

	var result uint32
	for i := 0; i < size; i++ {
		result |= uint32(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint32, size int, value uint32) {
	if data == nil || int(offset)+size > len(data) {
		return
	}

	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
