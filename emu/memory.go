package emu

// Bus is the synchronous memory interface of a processing element. Read32
// and Write32 operate on the aligned word containing addr; byteEnable
// selects the byte lanes Write32 updates (bit i enables byte i).
type Bus interface {
	Read32(addr uint32) uint32
	Write32(addr uint32, data uint32, byteEnable uint8)
	Mapped(addr uint32) bool
}

const memPageBits = 12

// Memory is a sparse little-endian byte store. A non-zero size bounds the
// mapped range to [0, size).
type Memory struct {
	pages map[uint32]*[1 << memPageBits]byte
	size  uint32
}

// NewMemory creates an unbounded memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[1 << memPageBits]byte)}
}

// NewBoundedMemory creates a memory that maps only [0, size).
func NewBoundedMemory(size uint32) *Memory {
	m := NewMemory()
	m.size = size
	return m
}

// Size returns the mapped size, or 0 if unbounded.
func (m *Memory) Size() uint32 {
	return m.size
}

// Mapped reports whether addr is backed by this memory.
func (m *Memory) Mapped(addr uint32) bool {
	return m.size == 0 || addr < m.size
}

// Read8 reads a byte. Unwritten bytes read as zero.
func (m *Memory) Read8(addr uint32) uint8 {
	page, ok := m.pages[addr>>memPageBits]
	if !ok {
		return 0
	}
	return page[addr&(1<<memPageBits-1)]
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	key := addr >> memPageBits
	page, ok := m.pages[key]
	if !ok {
		page = new([1 << memPageBits]byte)
		m.pages[key] = page
	}
	page[addr&(1<<memPageBits-1)] = value
}

// Read32 reads the aligned word containing addr.
func (m *Memory) Read32(addr uint32) uint32 {
	addr &^= 3
	return uint32(m.Read8(addr)) |
		uint32(m.Read8(addr+1))<<8 |
		uint32(m.Read8(addr+2))<<16 |
		uint32(m.Read8(addr+3))<<24
}

// Write32 writes the enabled byte lanes of the aligned word containing addr.
func (m *Memory) Write32(addr uint32, data uint32, byteEnable uint8) {
	addr &^= 3
	for i := uint32(0); i < 4; i++ {
		if byteEnable>>i&1 == 1 {
			m.Write8(addr+i, uint8(data>>(8*i)))
		}
	}
}

// LoadProgram copies data into memory starting at addr.
func (m *Memory) LoadProgram(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// busPort is the emulator's side of the bus. It counts the accesses each
// phase issues and remembers the last address driven.
type busPort struct {
	bus    Bus
	addr   uint32
	reads  int
	writes int
}

func (p *busPort) read(addr uint32) uint32 {
	p.addr = addr
	p.reads++
	return p.bus.Read32(addr)
}

func (p *busPort) write(addr, data uint32, byteEnable uint8) {
	p.addr = addr
	p.writes++
	p.bus.Write32(addr, data, byteEnable)
}

func (p *busPort) mapped(addr uint32) bool {
	return p.bus.Mapped(addr)
}

// begin starts a new phase and clears the access counters.
func (p *busPort) begin() {
	p.reads = 0
	p.writes = 0
}
