package emu

import (
	"errors"
	"fmt"
)

// Mode is a processor operating mode, encoded as CPSR bits [4:0].
type Mode uint8

// Processor modes.
const (
	ModeUser       Mode = 0x10
	ModeFIQ        Mode = 0x11
	ModeIRQ        Mode = 0x12
	ModeSupervisor Mode = 0x13
	ModeAbort      Mode = 0x17
	ModeUndefined  Mode = 0x1B
	ModeSystem     Mode = 0x1F
)

// ErrInvalidMode is returned when the host requests a switch to a bit pattern
// that is not a processor mode.
var ErrInvalidMode = errors.New("invalid processor mode")

// bank indexes the banked register arrays. User and System share bankUser.
type bank uint8

const (
	bankUser bank = iota
	bankFIQ
	bankIRQ
	bankSupervisor
	bankAbort
	bankUndefined
	numBanks
)

// modeBanks maps the five mode bits to a bank; zero entries are not modes.
var modeBanks = [32]bank{
	ModeUser:       bankUser + 1,
	ModeSystem:     bankUser + 1,
	ModeFIQ:        bankFIQ + 1,
	ModeIRQ:        bankIRQ + 1,
	ModeSupervisor: bankSupervisor + 1,
	ModeAbort:      bankAbort + 1,
	ModeUndefined:  bankUndefined + 1,
}

// Valid reports whether m is one of the seven processor modes.
func (m Mode) Valid() bool {
	return m < 32 && modeBanks[m] != 0
}

// Privileged reports whether m is any mode other than User.
func (m Mode) Privileged() bool {
	return m != ModeUser
}

func (m Mode) bank() bank {
	if !m.Valid() {
		return bankUser
	}
	return modeBanks[m] - 1
}

func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "usr"
	case ModeFIQ:
		return "fiq"
	case ModeIRQ:
		return "irq"
	case ModeSupervisor:
		return "svc"
	case ModeAbort:
		return "abt"
	case ModeUndefined:
		return "und"
	case ModeSystem:
		return "sys"
	}
	return fmt.Sprintf("mode(0x%02x)", uint8(m))
}

// CPSR bit positions.
const (
	PSRBitN uint32 = 1 << 31
	PSRBitZ uint32 = 1 << 30
	PSRBitC uint32 = 1 << 29
	PSRBitV uint32 = 1 << 28
	PSRBitI uint32 = 1 << 7
	PSRBitF uint32 = 1 << 6
	PSRBitT uint32 = 1 << 5

	psrModeMask uint32 = 0x1F
)

// PSR is a program status register.
type PSR struct {
	// N is the negative flag.
	N bool
	// Z is the zero flag.
	Z bool
	// C is the carry flag.
	C bool
	// V is the overflow flag.
	V bool
	// I masks IRQ when set.
	I bool
	// F masks FIQ when set.
	F bool
	// T selects the 16-bit encoding.
	T bool
	// Mode is the operating mode.
	Mode Mode
}

// Word returns the architectural 32-bit encoding.
func (p PSR) Word() uint32 {
	w := uint32(p.Mode) & psrModeMask
	for _, f := range [...]struct {
		set bool
		bit uint32
	}{
		{p.N, PSRBitN}, {p.Z, PSRBitZ}, {p.C, PSRBitC}, {p.V, PSRBitV},
		{p.I, PSRBitI}, {p.F, PSRBitF}, {p.T, PSRBitT},
	} {
		if f.set {
			w |= f.bit
		}
	}
	return w
}

// PSRFromWord decodes an architectural status word.
func PSRFromWord(w uint32) PSR {
	return PSR{
		N:    w&PSRBitN != 0,
		Z:    w&PSRBitZ != 0,
		C:    w&PSRBitC != 0,
		V:    w&PSRBitV != 0,
		I:    w&PSRBitI != 0,
		F:    w&PSRBitF != 0,
		T:    w&PSRBitT != 0,
		Mode: Mode(w & psrModeMask),
	}
}

func (p PSR) String() string {
	flags := []byte("nzcvift")
	for i, set := range []bool{p.N, p.Z, p.C, p.V, p.I, p.F, p.T} {
		if set {
			flags[i] -= 'a' - 'A'
		}
	}
	return fmt.Sprintf("%s %s", flags, p.Mode)
}

// RegFile holds the sixteen visible registers and the banked copies behind
// them. r0-r7 and r15 are shared by every mode; r8-r12 have a separate FIQ
// copy; r13 and r14 have one copy per bank.
type RegFile struct {
	gpr     [16]uint32 // r0-r12 (user copy of r8-r12), r15 unused
	fiqHigh [5]uint32  // r8-r12 in FIQ mode
	sp      [numBanks]uint32
	lr      [numBanks]uint32
	spsr    [numBanks]PSR

	// pc is the address of the instruction being executed.
	pc uint32
	// branched records a write to r15 during the current instruction.
	branched bool

	// CPSR is the current program status register.
	CPSR PSR
}

// NewRegFile creates a register file in the reset state.
func NewRegFile() *RegFile {
	r := &RegFile{}
	r.Reset()
	return r
}

// Reset zeroes every register and enters Supervisor mode in the 32-bit state
// with both interrupt masks set.
func (r *RegFile) Reset() {
	*r = RegFile{
		CPSR: PSR{Mode: ModeSupervisor, I: true, F: true},
	}
}

// pipelineBias is how far ahead of the executing instruction r15 reads.
func (r *RegFile) pipelineBias() uint32 {
	if r.CPSR.T {
		return 4
	}
	return 8
}

// InstructionSize returns the width of the current encoding in bytes.
func (r *RegFile) InstructionSize() uint32 {
	if r.CPSR.T {
		return 2
	}
	return 4
}

// PC returns the address of the instruction being executed.
func (r *RegFile) PC() uint32 {
	return r.pc
}

// SetPC sets the next instruction address, aligned to the current encoding.
func (r *RegFile) SetPC(addr uint32) {
	if r.CPSR.T {
		r.pc = addr &^ 1
	} else {
		r.pc = addr &^ 3
	}
	r.branched = true
}

// Get reads a register through the current mode's bank. r15 reads as the
// executing address plus the pipeline bias.
func (r *RegFile) Get(i uint8) uint32 {
	switch {
	case i < 8:
		return r.gpr[i]
	case i < 13:
		if r.CPSR.Mode == ModeFIQ {
			return r.fiqHigh[i-8]
		}
		return r.gpr[i]
	case i == 13:
		return r.sp[r.CPSR.Mode.bank()]
	case i == 14:
		return r.lr[r.CPSR.Mode.bank()]
	}
	return r.pc + r.pipelineBias()
}

// Set writes a register through the current mode's bank. Writing r15
// branches.
func (r *RegFile) Set(i uint8, v uint32) {
	switch {
	case i < 8:
		r.gpr[i] = v
	case i < 13:
		if r.CPSR.Mode == ModeFIQ {
			r.fiqHigh[i-8] = v
		} else {
			r.gpr[i] = v
		}
	case i == 13:
		r.sp[r.CPSR.Mode.bank()] = v
	case i == 14:
		r.lr[r.CPSR.Mode.bank()] = v
	default:
		r.SetPC(v)
	}
}

// GetUser reads a register from the User bank regardless of mode.
func (r *RegFile) GetUser(i uint8) uint32 {
	switch {
	case i < 13:
		return r.gpr[i]
	case i == 13:
		return r.sp[bankUser]
	case i == 14:
		return r.lr[bankUser]
	}
	return r.pc + r.pipelineBias()
}

// SetUser writes a register in the User bank regardless of mode.
func (r *RegFile) SetUser(i uint8, v uint32) {
	switch {
	case i < 13:
		r.gpr[i] = v
	case i == 13:
		r.sp[bankUser] = v
	case i == 14:
		r.lr[bankUser] = v
	default:
		r.SetPC(v)
	}
}

// SetBanked writes r13 or r14 of another mode's bank, as used when booting
// with preset stack pointers.
func (r *RegFile) SetBanked(m Mode, i uint8, v uint32) error {
	if !m.Valid() {
		return fmt.Errorf("set banked r%d: %w", i, ErrInvalidMode)
	}
	switch i {
	case 13:
		r.sp[m.bank()] = v
	case 14:
		r.lr[m.bank()] = v
	default:
		return fmt.Errorf("r%d is not banked per mode", i)
	}
	return nil
}

// Banked reads r13 or r14 of another mode's bank.
func (r *RegFile) Banked(m Mode, i uint8) uint32 {
	if i == 13 {
		return r.sp[m.bank()]
	}
	return r.lr[m.bank()]
}

// hasSPSR reports whether the current mode has a saved status register.
func (r *RegFile) hasSPSR() bool {
	return r.CPSR.Mode.bank() != bankUser
}

// SPSR returns the current mode's saved status register. User and System mode
// have none and read the CPSR instead.
func (r *RegFile) SPSR() PSR {
	if !r.hasSPSR() {
		return r.CPSR
	}
	return r.spsr[r.CPSR.Mode.bank()]
}

// SetSPSR writes the current mode's saved status register. Ignored in User and
// System mode.
func (r *RegFile) SetSPSR(p PSR) {
	if r.hasSPSR() {
		r.spsr[r.CPSR.Mode.bank()] = p
	}
}

// SwitchMode saves the CPSR into the target mode's SPSR and makes the target
// bank visible. Registers that are not banked are untouched.
func (r *RegFile) SwitchMode(target Mode) error {
	if !target.Valid() {
		return fmt.Errorf("switch to 0x%02x: %w", uint8(target), ErrInvalidMode)
	}

	saved := r.CPSR
	if b := target.bank(); b != bankUser {
		r.spsr[b] = saved
	}
	r.CPSR.Mode = target
	return nil
}

// restoreCPSR copies the current SPSR into the CPSR, as exception returns do.
func (r *RegFile) restoreCPSR() {
	if r.hasSPSR() {
		r.CPSR = r.spsr[r.CPSR.Mode.bank()]
	}
}

// State is a snapshot of the architecturally visible registers.
type State struct {
	R    [16]uint32
	CPSR PSR
	SPSR PSR
}

// Snapshot captures the registers visible in the current mode. R[15] holds the
// executing address, not the biased read value.
func (r *RegFile) Snapshot() State {
	var s State
	for i := uint8(0); i < 15; i++ {
		s.R[i] = r.Get(i)
	}
	s.R[15] = r.pc
	s.CPSR = r.CPSR
	s.SPSR = r.SPSR()
	return s
}
