package emu

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/insts"
)

// ALU implements data processing, multiplies and status register transfers.
type ALU struct {
	regFile *RegFile
	log     logr.Logger
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile, log logr.Logger) *ALU {
	return &ALU{regFile: regFile, log: log}
}

// readOperand reads a source register. r15 reads 4 further ahead when the
// operand is shifted by a register, and word aligned for the PC-relative
// 16-bit forms.
func (a *ALU) readOperand(reg uint8, inst *insts.Instruction) uint32 {
	v := a.regFile.Get(reg)
	if reg != 15 {
		return v
	}
	if inst.ShiftByReg && !inst.Thumb {
		v += 4
	}
	if inst.AlignPC {
		v &^= 3
	}
	return v
}

// Operand2 evaluates the shifter operand and its carry-out.
func (a *ALU) Operand2(inst *insts.Instruction) (uint32, bool) {
	carry := a.regFile.CPSR.C
	if inst.Immediate {
		return RotateImmediate(inst.Imm, inst.Rotate, carry)
	}

	rm := a.readOperand(inst.Rm, inst)
	if inst.ShiftByReg {
		return ShiftByRegister(inst.ShiftType, rm, a.regFile.Get(inst.Rs)&0xFF, carry)
	}
	return ShiftByImmediate(inst.ShiftType, rm, inst.ShiftAmount, carry)
}

// DataProcessing executes one of the sixteen data processing operations.
func (a *ALU) DataProcessing(inst *insts.Instruction) {
	r := a.regFile
	op1 := a.readOperand(inst.Rn, inst)
	op2, shifterCarry := a.Operand2(inst)

	var (
		result uint32
		flags  Flags
	)

	switch inst.Op {
	case insts.OpAND, insts.OpTST:
		result = op1 & op2
	case insts.OpEOR, insts.OpTEQ:
		result = op1 ^ op2
	case insts.OpORR:
		result = op1 | op2
	case insts.OpMOV:
		result = op2
	case insts.OpBIC:
		result = op1 &^ op2
	case insts.OpMVN:
		result = ^op2
	case insts.OpSUB, insts.OpCMP:
		result, flags = SubWithCarry(op1, op2, true)
	case insts.OpRSB:
		result, flags = SubWithCarry(op2, op1, true)
	case insts.OpADD, insts.OpCMN:
		result, flags = AddWithCarry(op1, op2, false)
	case insts.OpADC:
		result, flags = AddWithCarry(op1, op2, r.CPSR.C)
	case insts.OpSBC:
		result, flags = SubWithCarry(op1, op2, r.CPSR.C)
	case insts.OpRSC:
		result, flags = SubWithCarry(op2, op1, r.CPSR.C)
	}

	if !inst.Op.IsTest() {
		if inst.Rd == 15 && inst.SetFlags {
			// Exception return: the status register comes back with the PC.
			r.restoreCPSR()
			r.SetPC(result)
			return
		}
		r.Set(inst.Rd, result)
	}

	if !inst.SetFlags {
		return
	}
	if inst.Op.IsLogical() {
		r.CPSR.setLogical(result, shifterCarry)
	} else {
		r.CPSR.setArithmetic(flags)
	}
}

// Multiply executes MUL and MLA. Only N and Z are affected.
func (a *ALU) Multiply(inst *insts.Instruction) {
	r := a.regFile
	result := r.Get(inst.Rm) * r.Get(inst.Rs)
	if inst.Accum {
		result += r.Get(inst.Rn)
	}
	r.Set(inst.Rd, result)

	if inst.SetFlags {
		r.CPSR.setNZ(result)
	}
}

// MultiplyLong executes UMULL, UMLAL, SMULL and SMLAL. RdLo is inst.Rd and
// RdHi is inst.Rn.
func (a *ALU) MultiplyLong(inst *insts.Instruction) {
	r := a.regFile
	rm, rs := r.Get(inst.Rm), r.Get(inst.Rs)

	var result uint64
	if inst.Signed {
		result = uint64(int64(int32(rm)) * int64(int32(rs)))
	} else {
		result = uint64(rm) * uint64(rs)
	}
	if inst.Accum {
		result += uint64(r.Get(inst.Rn))<<32 | uint64(r.Get(inst.Rd))
	}

	r.Set(inst.Rd, uint32(result))
	r.Set(inst.Rn, uint32(result>>32))

	if inst.SetFlags {
		r.CPSR.N = result&(1<<63) != 0
		r.CPSR.Z = result == 0
	}
}

// psrFieldMasks are the bits selected by the c, x, s and f field flags.
var psrFieldMasks = [4]uint32{0x000000FF, 0x0000FF00, 0x00FF0000, 0xFF000000}

// PSRTransfer executes MRS and MSR.
func (a *ALU) PSRTransfer(inst *insts.Instruction) {
	r := a.regFile

	if inst.Op == insts.OpMRS {
		psr := r.CPSR
		if inst.UserBank {
			psr = r.SPSR()
		}
		r.Set(inst.Rd, psr.Word())
		return
	}

	var value uint32
	if inst.Immediate {
		value, _ = RotateImmediate(inst.Imm, inst.Rotate, false)
	} else {
		value = r.Get(inst.Rm)
	}

	var mask uint32
	for i, m := range psrFieldMasks {
		if inst.FieldMask&(1<<i) != 0 {
			mask |= m
		}
	}

	if inst.UserBank {
		if r.hasSPSR() {
			r.SetSPSR(PSRFromWord(r.SPSR().Word()&^mask | value&mask))
		}
		return
	}

	if r.CPSR.Mode == ModeUser {
		mask &= 0xFF000000
	}
	mask &^= PSRBitT

	next := PSRFromWord(r.CPSR.Word()&^mask | value&mask)
	if !next.Mode.Valid() {
		a.log.Info("ignoring write of invalid mode", "mode", uint8(next.Mode), "value", value)
		next.Mode = r.CPSR.Mode
	}
	r.CPSR = next
}
