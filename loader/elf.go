// Package loader reads RV32 program images for a processing element.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvpe/emu"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment of a program image.
type Segment struct {
	// VirtAddr is the address the program was linked for.
	VirtAddr uint32
	// PhysAddr is the address the segment is copied to.
	PhysAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint32
	// Segments contains all loadable segments.
	Segments []Segment
}

// Load parses an RV32 ELF executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			PhysAddr: uint32(phdr.Paddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadBinary reads a raw memory image that is placed and entered at addr.
func LoadBinary(path string, addr uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary image: %w", err)
	}

	return &Program{
		EntryPoint: addr,
		Segments: []Segment{{
			VirtAddr: addr,
			PhysAddr: addr,
			Data:     data,
			MemSize:  uint32(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}, nil
}

// LoadInto copies the segments into the emulator's memory, zero-fills
// their BSS tails and makes the entry point the reset vector.
func (p *Program) LoadInto(e *emu.Emulator) error {
	mem := e.Memory()
	if mem == nil {
		return fmt.Errorf("emulator has no backing memory")
	}

	for _, seg := range p.Segments {
		if seg.MemSize == 0 {
			continue
		}
		end := seg.PhysAddr + seg.MemSize - 1
		if end < seg.PhysAddr || !mem.Mapped(seg.PhysAddr) || !mem.Mapped(end) {
			return fmt.Errorf("segment 0x%x-0x%x does not fit in memory", seg.PhysAddr, end)
		}

		mem.LoadProgram(seg.PhysAddr, seg.Data)
		for i := uint32(len(seg.Data)); i < seg.MemSize; i++ {
			mem.Write8(seg.PhysAddr+i, 0)
		}
	}

	e.SetResetVector(p.EntryPoint)
	return nil
}
