package frame

import "github.com/sarchlab/gbasim/emu"

// Addresses of the registers a Timeline answers for.
const (
	RegDisplayStatus uint32 = 0x04000004
	RegVCount        uint32 = 0x04000006
	RegIE            uint32 = 0x04000200
	RegIF            uint32 = 0x04000202
	RegIME           uint32 = 0x04000208
)

// RegisterBus maps a Timeline's display status and interrupt controller
// registers into the I/O window and passes every other access to the
// underlying bus. Writing a one to a bit of IF acknowledges that request.
type RegisterBus struct {
	mem      emu.Bus
	timeline *Timeline
}

// NewRegisterBus creates a RegisterBus over mem.
func NewRegisterBus(mem emu.Bus, timeline *Timeline) *RegisterBus {
	return &RegisterBus{mem: mem, timeline: timeline}
}

func isRegister(addr uint32) bool {
	switch addr {
	case RegDisplayStatus, RegVCount, RegIE, RegIF, RegIME:
		return true
	}
	return false
}

func (b *RegisterBus) read16(addr uint32) uint16 {
	t := b.timeline
	switch addr {
	case RegDisplayStatus:
		return t.Status()
	case RegVCount:
		return uint16(t.Scanline)
	case RegIE:
		return t.Enable()
	case RegIF:
		return t.Flags()
	case RegIME:
		if t.MasterEnable() {
			return 1
		}
		return 0
	}
	return b.mem.Read16(addr)
}

func (b *RegisterBus) write16(addr uint32, v uint16) {
	t := b.timeline
	switch addr {
	case RegDisplayStatus:
		t.SetStatus(v)
	case RegVCount:
	case RegIE:
		t.SetEnable(v)
	case RegIF:
		t.Acknowledge(v)
	case RegIME:
		t.SetMasterEnable(v&1 != 0)
	default:
		b.mem.Write16(addr, v)
	}
}

// Read8 reads a byte.
func (b *RegisterBus) Read8(addr uint32) uint8 {
	base := addr &^ 1
	if !isRegister(base) {
		return b.mem.Read8(addr)
	}
	return uint8(b.read16(base) >> (8 * (addr & 1)))
}

// Read16 reads a halfword.
func (b *RegisterBus) Read16(addr uint32) uint16 {
	if !isRegister(addr) {
		return b.mem.Read16(addr)
	}
	return b.read16(addr)
}

// Read32 reads a word.
func (b *RegisterBus) Read32(addr uint32) uint32 {
	if !isRegister(addr) && !isRegister(addr+2) {
		return b.mem.Read32(addr)
	}
	return uint32(b.read16(addr)) | uint32(b.read16(addr+2))<<16
}

// Write8 writes a byte. Byte writes to IF only acknowledge bits of that byte.
func (b *RegisterBus) Write8(addr uint32, v uint8) {
	base := addr &^ 1
	if !isRegister(base) {
		b.mem.Write8(addr, v)
		return
	}

	shift := 8 * (addr & 1)
	if base == RegIF {
		b.timeline.Acknowledge(uint16(v) << shift)
		return
	}
	old := b.read16(base)
	b.write16(base, old&^(0xFF<<shift)|uint16(v)<<shift)
}

// Write16 writes a halfword.
func (b *RegisterBus) Write16(addr uint32, v uint16) {
	b.write16(addr, v)
}

// Write32 writes a word.
func (b *RegisterBus) Write32(addr uint32, v uint32) {
	if !isRegister(addr) && !isRegister(addr+2) {
		b.mem.Write32(addr, v)
		return
	}
	b.write16(addr, uint16(v))
	b.write16(addr+2, uint16(v>>16))
}
