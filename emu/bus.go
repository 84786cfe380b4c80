package emu

import (
	"encoding/binary"
	"sync/atomic"
)

// Bus is the memory system seen by the core. Addresses of 16- and 32-bit
// accesses are already aligned; how unmapped regions read is up to the host.
type Bus interface {
	Read8(addr uint32) uint8
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
	Write8(addr uint32, v uint8)
	Write16(addr uint32, v uint16)
	Write32(addr uint32, v uint32)
}

// InterruptLine reports whether an interrupt controller is asserting IRQ.
type InterruptLine interface {
	IRQPending() bool
}

// IRQLine is a level-triggered interrupt line a host can raise and clear from
// any goroutine.
type IRQLine struct {
	pending atomic.Bool
}

// Raise asserts the line.
func (l *IRQLine) Raise() { l.pending.Store(true) }

// Clear deasserts the line.
func (l *IRQLine) Clear() { l.pending.Store(false) }

// IRQPending reports whether the line is asserted.
func (l *IRQLine) IRQPending() bool { return l.pending.Load() }

const (
	pageShift = 12
	pageSize  = 1 << pageShift
	pageMask  = pageSize - 1
)

// Memory is a sparse little-endian RAM covering the full 32-bit address
// space. Pages are allocated on first write; unwritten memory reads as zero.
type Memory struct {
	pages map[uint32]*[pageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[pageSize]byte)}
}

func (m *Memory) page(addr uint32, alloc bool) *[pageSize]byte {
	p := m.pages[addr>>pageShift]
	if p == nil && alloc {
		p = new([pageSize]byte)
		m.pages[addr>>pageShift] = p
	}
	return p
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint32) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint32, v uint8) {
	m.page(addr, true)[addr&pageMask] = v
}

// Read16 reads a halfword. Aligned accesses never straddle a page.
func (m *Memory) Read16(addr uint32) uint16 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint16(p[off : off+2])
}

// Write16 writes a halfword.
func (m *Memory) Write16(addr uint32, v uint16) {
	off := addr & pageMask
	binary.LittleEndian.PutUint16(m.page(addr, true)[off:off+2], v)
}

// Read32 reads a word.
func (m *Memory) Read32(addr uint32) uint32 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint32(p[off : off+4])
}

// Write32 writes a word.
func (m *Memory) Write32(addr uint32, v uint32) {
	off := addr & pageMask
	binary.LittleEndian.PutUint32(m.page(addr, true)[off:off+4], v)
}

// LoadBytes copies data into memory starting at addr.
func (m *Memory) LoadBytes(addr uint32, data []byte) {
	for len(data) > 0 {
		p := m.page(addr, true)
		n := copy(p[addr&pageMask:], data)
		data = data[n:]
		addr += uint32(n)
	}
}

// LoadWords stores a program of 32-bit opcodes at addr.
func (m *Memory) LoadWords(addr uint32, words ...uint32) {
	for i, w := range words {
		m.Write32(addr+uint32(i)*4, w)
	}
}

// LoadHalfwords stores a program of 16-bit opcodes at addr.
func (m *Memory) LoadHalfwords(addr uint32, halves ...uint16) {
	for i, h := range halves {
		m.Write16(addr+uint32(i)*2, h)
	}
}
