package frame

import "github.com/sarchlab/gbasim/emu"

// Interrupt request bits shared by the enable and flag registers.
const (
	IRQVBlank uint16 = 1 << 0
	IRQHBlank uint16 = 1 << 1
)

// Display status bits.
const (
	StatusVBlank    uint16 = 1 << 0
	StatusHBlank    uint16 = 1 << 1
	StatusVBlankIRQ uint16 = 1 << 3
	StatusHBlankIRQ uint16 = 1 << 4

	statusWritable uint16 = 0xFFF8
)

// Timeline is a minimal Peripherals implementation that tracks the display
// status the way the video counter registers expose it, together with the
// interrupt controller for the blanking interrupts. It is enough to run code
// that waits for VBlank without a full video unit.
//
// The core only sees one level: the line is asserted while the master
// enable is set and an enabled request is pending. Requests stay latched
// until acknowledged.
type Timeline struct {
	Scanline int
	HBlank   bool
	VBlank   bool
	Cycles   uint64
	VBlanks  uint64

	control uint16
	enable  uint16
	flags   uint16
	master  bool

	irq *emu.IRQLine
}

// NewTimeline creates a Timeline driving irq, which may be nil. All
// interrupts start disabled.
func NewTimeline(irq *emu.IRQLine) *Timeline {
	return &Timeline{irq: irq}
}

// SetScanline records the current line.
func (t *Timeline) SetScanline(line int) {
	t.Scanline = line
}

// EnterHBlank sets the horizontal blank flag.
func (t *Timeline) EnterHBlank() {
	t.HBlank = true
	if t.control&StatusHBlankIRQ != 0 {
		t.Request(IRQHBlank)
	}
}

// ExitHBlank clears the horizontal blank flag.
func (t *Timeline) ExitHBlank() {
	t.HBlank = false
}

// EnterVBlank sets the vertical blank flag and requests the interrupt if
// the display status allows it.
func (t *Timeline) EnterVBlank() {
	t.VBlank = true
	t.VBlanks++
	if t.control&StatusVBlankIRQ != 0 {
		t.Request(IRQVBlank)
	}
}

// ExitVBlank clears the vertical blank flag. A pending request stays
// latched.
func (t *Timeline) ExitVBlank() {
	t.VBlank = false
}

// AddTime accumulates elapsed cycles.
func (t *Timeline) AddTime(cycles uint64) {
	t.Cycles += cycles
}

// Status returns the display status register.
func (t *Timeline) Status() uint16 {
	s := t.control
	if t.VBlank {
		s |= StatusVBlank
	}
	if t.HBlank {
		s |= StatusHBlank
	}
	return s
}

// SetStatus writes the display status register. The blanking bits are read
// only.
func (t *Timeline) SetStatus(v uint16) {
	t.control = v & statusWritable
}

// Enable returns the interrupt enable mask.
func (t *Timeline) Enable() uint16 {
	return t.enable
}

// SetEnable replaces the interrupt enable mask.
func (t *Timeline) SetEnable(mask uint16) {
	t.enable = mask
	t.update()
}

// MasterEnable reports whether interrupts reach the core at all.
func (t *Timeline) MasterEnable() bool {
	return t.master
}

// SetMasterEnable sets the master interrupt enable.
func (t *Timeline) SetMasterEnable(on bool) {
	t.master = on
	t.update()
}

// Flags returns the latched interrupt requests.
func (t *Timeline) Flags() uint16 {
	return t.flags
}

// Request latches the given interrupt requests.
func (t *Timeline) Request(mask uint16) {
	t.flags |= mask
	t.update()
}

// Acknowledge clears the given requests, which deasserts the line once no
// enabled request is left.
func (t *Timeline) Acknowledge(mask uint16) {
	t.flags &^= mask
	t.update()
}

func (t *Timeline) update() {
	if t.irq == nil {
		return
	}
	if t.master && t.enable&t.flags != 0 {
		t.irq.Raise()
	} else {
		t.irq.Clear()
	}
}
