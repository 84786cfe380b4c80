package emu

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
)

// ExceptionKind identifies one of the seven exception sources.
type ExceptionKind uint8

// Exception kinds, in vector order.
const (
	ExceptionReset ExceptionKind = iota
	ExceptionUndefined
	ExceptionSoftwareInterrupt
	ExceptionPrefetchAbort
	ExceptionDataAbort
	ExceptionIRQ
	ExceptionFIQ
	numExceptionKinds
)

// NumExceptionKinds is the number of exception kinds.
const NumExceptionKinds = int(numExceptionKinds)

func (k ExceptionKind) String() string {
	switch k {
	case ExceptionReset:
		return "reset"
	case ExceptionUndefined:
		return "undefined"
	case ExceptionSoftwareInterrupt:
		return "swi"
	case ExceptionPrefetchAbort:
		return "prefetch-abort"
	case ExceptionDataAbort:
		return "data-abort"
	case ExceptionIRQ:
		return "irq"
	case ExceptionFIQ:
		return "fiq"
	}
	return fmt.Sprintf("exception(%d)", uint8(k))
}

// ErrNotInException is returned when an exception return is requested from a
// mode that has no saved status register.
var ErrNotInException = errors.New("no exception to return from")

// ExceptionVector describes how an exception is entered and left.
type ExceptionVector struct {
	// Mode is the mode the exception is taken in.
	Mode Mode
	// Vector is the handler address.
	Vector uint32
	// FromNext bases the link address on the instruction after the one that
	// raised the exception instead of the interrupted one.
	FromNext bool
	// LinkOffset is added to the base to form the link register value.
	LinkOffset uint32
	// ReturnOffset is subtracted from the link register on return.
	ReturnOffset uint32
	// DisableFIQ also masks FIQ on entry.
	DisableFIQ bool
}

var exceptionVectors = [numExceptionKinds]ExceptionVector{
	ExceptionReset: {
		Mode: ModeSupervisor, Vector: 0x00, DisableFIQ: true,
	},
	ExceptionUndefined: {
		Mode: ModeUndefined, Vector: 0x04, FromNext: true,
	},
	ExceptionSoftwareInterrupt: {
		Mode: ModeSupervisor, Vector: 0x08, FromNext: true,
	},
	ExceptionPrefetchAbort: {
		Mode: ModeAbort, Vector: 0x0C, LinkOffset: 4, ReturnOffset: 4,
	},
	ExceptionDataAbort: {
		Mode: ModeAbort, Vector: 0x10, LinkOffset: 8, ReturnOffset: 8,
	},
	ExceptionIRQ: {
		Mode: ModeIRQ, Vector: 0x18, LinkOffset: 4, ReturnOffset: 4,
	},
	ExceptionFIQ: {
		Mode: ModeFIQ, Vector: 0x1C, LinkOffset: 4, ReturnOffset: 4, DisableFIQ: true,
	},
}

// VectorFor returns the entry parameters of an exception kind.
func VectorFor(kind ExceptionKind) (ExceptionVector, bool) {
	if kind >= numExceptionKinds {
		return ExceptionVector{}, false
	}
	return exceptionVectors[kind], true
}

// ExceptionUnit performs exception entry and return on a register file.
type ExceptionUnit struct {
	regFile *RegFile
	log     logr.Logger

	// entered records which kind was last taken into each bank so a host
	// initiated return can apply the matching correction.
	entered [numBanks]ExceptionKind
}

// NewExceptionUnit creates an ExceptionUnit connected to the given register
// file.
func NewExceptionUnit(regFile *RegFile, log logr.Logger) *ExceptionUnit {
	return &ExceptionUnit{regFile: regFile, log: log}
}

// Enter takes an exception. addr is the address of the instruction that
// raised it, or of the instruction about to run for interrupts.
func (u *ExceptionUnit) Enter(kind ExceptionKind, addr uint32) {
	v, ok := VectorFor(kind)
	if !ok {
		return
	}
	r := u.regFile

	link := addr
	if v.FromNext {
		link += r.InstructionSize()
	}
	link += v.LinkOffset

	u.log.V(1).Info("exception entry", "kind", kind, "addr", addr, "from", r.CPSR.Mode)

	_ = r.SwitchMode(v.Mode)
	r.CPSR.I = true
	if v.DisableFIQ {
		r.CPSR.F = true
	}
	r.CPSR.T = false
	r.Set(14, link)
	r.SetPC(v.Vector)

	u.entered[v.Mode.bank()] = kind
}

// Return leaves the exception handled in the current mode: the CPSR is
// restored from the SPSR and execution resumes at the link register minus the
// kind's return correction.
func (u *ExceptionUnit) Return() error {
	r := u.regFile
	if !r.hasSPSR() {
		return fmt.Errorf("return from %s mode: %w", r.CPSR.Mode, ErrNotInException)
	}

	kind := u.entered[r.CPSR.Mode.bank()]
	v := exceptionVectors[kind]
	target := r.Get(14) - v.ReturnOffset

	u.log.V(1).Info("exception return", "kind", kind, "to", target)

	r.restoreCPSR()
	r.SetPC(target)
	return nil
}
