package emu

import (
	"math"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/insts"
)

// BIOS call numbers serviced by HLEHandler.
const (
	SWIHalt   uint32 = 0x02
	SWIDiv    uint32 = 0x06
	SWIDivArm uint32 = 0x07
	SWISqrt   uint32 = 0x08
)

// SWIHandler services software interrupts on the host.
type SWIHandler interface {
	// HandleSWI services call number on cpu. Returning false takes the
	// software interrupt exception instead.
	HandleSWI(number uint32, cpu *CPU) bool
}

// SWINumber returns the BIOS call number of a SWI: the comment byte of the
// 16-bit encoding, or bits 23-16 of the 32-bit comment field.
func SWINumber(inst *insts.Instruction) uint32 {
	if inst.Thumb {
		return inst.Imm & 0xFF
	}
	return (inst.Imm >> 16) & 0xFF
}

// HLEHandler implements the arithmetic and halt BIOS calls so that code can
// run without a BIOS image. Other calls go to the vector.
type HLEHandler struct {
	log logr.Logger
}

// NewHLEHandler creates an HLEHandler.
func NewHLEHandler(log logr.Logger) *HLEHandler {
	return &HLEHandler{log: log}
}

// HandleSWI services the call indicated by number.
func (h *HLEHandler) HandleSWI(number uint32, cpu *CPU) bool {
	regs := cpu.RegFile()
	switch number {
	case SWIHalt:
		cpu.Halt()
		return true
	case SWIDiv:
		h.divide(regs, regs.Get(0), regs.Get(1))
		return true
	case SWIDivArm:
		h.divide(regs, regs.Get(1), regs.Get(0))
		return true
	case SWISqrt:
		regs.Set(0, uint32(math.Sqrt(float64(regs.Get(0)))))
		return true
	}

	h.log.V(1).Info("bios call not emulated", "number", number)
	return false
}

// divide leaves the quotient in r0, the remainder in r1 and the absolute
// quotient in r3. Division by zero leaves the registers untouched.
func (h *HLEHandler) divide(regs *RegFile, n, d uint32) {
	num, den := int32(n), int32(d)
	if den == 0 {
		h.log.Info("bios division by zero", "numerator", num)
		return
	}

	var quot, rem int32
	if num == math.MinInt32 && den == -1 {
		quot, rem = math.MinInt32, 0
	} else {
		quot, rem = num/den, num%den
	}

	abs := quot
	if abs < 0 {
		abs = -abs
	}

	regs.Set(0, uint32(quot))
	regs.Set(1, uint32(rem))
	regs.Set(3, uint32(abs))
}
