package emu

import "github.com/sarchlab/gbasim/insts"

// BranchUnit implements branches, branch-and-exchange and the 16-bit
// long branch with link.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// CheckCondition evaluates a condition code against the CPSR flags. NV never
// passes.
func (b *BranchUnit) CheckCondition(cond insts.Cond) bool {
	return ConditionPassed(cond, b.regFile.CPSR)
}

// ConditionPassed evaluates a condition code against a status register.
func ConditionPassed(cond insts.Cond, psr PSR) bool {
	switch cond {
	case insts.CondEQ:
		return psr.Z
	case insts.CondNE:
		return !psr.Z
	case insts.CondCS:
		return psr.C
	case insts.CondCC:
		return !psr.C
	case insts.CondMI:
		return psr.N
	case insts.CondPL:
		return !psr.N
	case insts.CondVS:
		return psr.V
	case insts.CondVC:
		return !psr.V
	case insts.CondHI:
		return psr.C && !psr.Z
	case insts.CondLS:
		return !psr.C || psr.Z
	case insts.CondGE:
		return psr.N == psr.V
	case insts.CondLT:
		return psr.N != psr.V
	case insts.CondGT:
		return !psr.Z && psr.N == psr.V
	case insts.CondLE:
		return psr.Z || psr.N != psr.V
	case insts.CondAL:
		return true
	}
	return false
}

// Branch performs B and BL. The offset is relative to the biased PC; BL saves
// the address of the following instruction in r14.
func (b *BranchUnit) Branch(inst *insts.Instruction) {
	r := b.regFile
	pc := r.Get(15)
	if inst.Op == insts.OpBL {
		r.Set(14, pc-inst.Size())
	}
	r.SetPC(pc + uint32(inst.BranchOffset))
}

// BX branches to the address in rm and selects the encoding from its bit 0.
func (b *BranchUnit) BX(rm uint8) {
	r := b.regFile
	target := r.Get(rm)
	r.CPSR.T = target&1 != 0
	r.SetPC(target)
}

// LongBranchLink executes one half of the 16-bit BL pair. The first half
// parks the upper offset in r14; the second adds the lower offset, branches,
// and leaves the return address with bit 0 set in r14.
func (b *BranchUnit) LongBranchLink(inst *insts.Instruction) {
	r := b.regFile
	if !inst.HighHalf {
		r.Set(14, r.Get(15)+uint32(inst.BranchOffset))
		return
	}

	next := r.PC() + inst.Size()
	target := r.Get(14) + inst.Imm
	r.Set(14, next|1)
	r.SetPC(target)
}
