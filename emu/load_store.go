package emu

import (
	"math/bits"

	"github.com/sarchlab/gbasim/insts"
)

// LoadStoreUnit implements single, halfword, swap and block transfers.
type LoadStoreUnit struct {
	regFile *RegFile
	bus     Bus
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and bus.
func NewLoadStoreUnit(regFile *RegFile, bus Bus) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		bus:     bus,
	}
}

// readWord performs a word load. A misaligned address reads the aligned word
// rotated so the addressed byte is in the low lane.
func (lsu *LoadStoreUnit) readWord(addr uint32) uint32 {
	return ror(lsu.bus.Read32(addr&^3), (addr&3)*8)
}

func (lsu *LoadStoreUnit) base(inst *insts.Instruction) uint32 {
	v := lsu.regFile.Get(inst.Rn)
	if inst.Rn == 15 && inst.AlignPC {
		v &^= 3
	}
	return v
}

// storeValue reads a register for storing. r15 stores one instruction
// further ahead than it reads.
func (lsu *LoadStoreUnit) storeValue(reg uint8, inst *insts.Instruction) uint32 {
	v := lsu.regFile.Get(reg)
	if reg == 15 {
		v += inst.Size()
	}
	return v
}

// addresses returns the transfer address and the written-back base.
func (lsu *LoadStoreUnit) addresses(inst *insts.Instruction, offset uint32) (uint32, uint32) {
	base := lsu.base(inst)
	updated := base + offset
	if !inst.Up {
		updated = base - offset
	}
	if inst.Pre {
		return updated, updated
	}
	return base, updated
}

// writeBack updates the base register. The PC is never written back.
func (lsu *LoadStoreUnit) writeBack(inst *insts.Instruction, v uint32) {
	if inst.WriteBack && inst.Rn != 15 {
		lsu.regFile.Set(inst.Rn, v)
	}
}

// SingleTransfer executes LDR, STR, LDRB and STRB.
func (lsu *LoadStoreUnit) SingleTransfer(inst *insts.Instruction) {
	r := lsu.regFile

	offset := inst.Imm
	if !inst.Immediate {
		offset, _ = ShiftByImmediate(inst.ShiftType, r.Get(inst.Rm), inst.ShiftAmount, r.CPSR.C)
	}
	addr, updated := lsu.addresses(inst, offset)

	if !inst.Load {
		v := lsu.storeValue(inst.Rd, inst)
		if inst.Op == insts.OpSTRB {
			lsu.bus.Write8(addr, uint8(v))
		} else {
			lsu.bus.Write32(addr&^3, v)
		}
		lsu.writeBack(inst, updated)
		return
	}

	var v uint32
	if inst.Op == insts.OpLDRB {
		v = uint32(lsu.bus.Read8(addr))
	} else {
		v = lsu.readWord(addr)
	}
	// The loaded value wins over the written-back base.
	lsu.writeBack(inst, updated)
	r.Set(inst.Rd, v)
}

// HalfwordTransfer executes LDRH, STRH, LDRSB and LDRSH.
func (lsu *LoadStoreUnit) HalfwordTransfer(inst *insts.Instruction) {
	r := lsu.regFile

	offset := inst.Imm
	if !inst.Immediate {
		offset = r.Get(inst.Rm)
	}
	addr, updated := lsu.addresses(inst, offset)

	if inst.Op == insts.OpSTRH {
		lsu.bus.Write16(addr&^1, uint16(lsu.storeValue(inst.Rd, inst)))
		lsu.writeBack(inst, updated)
		return
	}

	var v uint32
	switch inst.Op {
	case insts.OpLDRH:
		v = uint32(lsu.bus.Read16(addr &^ 1))
		if addr&1 != 0 {
			v = ror(v, 8)
		}
	case insts.OpLDRSB:
		v = uint32(int32(int8(lsu.bus.Read8(addr))))
	case insts.OpLDRSH:
		if addr&1 != 0 {
			// A misaligned signed halfword loads the addressed byte.
			v = uint32(int32(int8(lsu.bus.Read8(addr))))
		} else {
			v = uint32(int32(int16(lsu.bus.Read16(addr))))
		}
	}
	lsu.writeBack(inst, updated)
	r.Set(inst.Rd, v)
}

// Swap executes SWP and SWPB: a load and a store to the same address with no
// other access in between.
func (lsu *LoadStoreUnit) Swap(inst *insts.Instruction) {
	r := lsu.regFile
	addr := r.Get(inst.Rn)
	src := r.Get(inst.Rm)

	if inst.Op == insts.OpSWPB {
		old := lsu.bus.Read8(addr)
		lsu.bus.Write8(addr, uint8(src))
		r.Set(inst.Rd, uint32(old))
		return
	}

	old := lsu.readWord(addr)
	lsu.bus.Write32(addr&^3, src)
	r.Set(inst.Rd, old)
}

// BlockTransfer executes LDM and STM.
//
// Registers are transferred lowest first to ascending addresses. An empty
// list transfers r15 and moves the base by 0x40. The base is written back
// before the transfers unless this is a store whose first register is the
// base, so a store of the base records its original value and a load of it
// keeps the loaded one. With the S bit, a load including r15 restores the CPSR
// and any other form transfers the User bank.
func (lsu *LoadStoreUnit) BlockTransfer(inst *insts.Instruction) {
	r := lsu.regFile

	list := inst.RegList
	size := uint32(bits.OnesCount16(list)) * 4
	if list == 0 {
		list = 1 << 15
		size = 0x40
	}

	base := r.Get(inst.Rn)
	var start, updated uint32
	if inst.Up {
		start, updated = base, base+size
		if inst.Pre {
			start += 4
		}
	} else {
		start, updated = base-size, base-size
		if !inst.Pre {
			start += 4
		}
	}

	loadsPC := inst.Load && list&(1<<15) != 0
	userBank := inst.UserBank && !loadsPC
	first := uint8(bits.TrailingZeros16(list))

	early := inst.Load || first != inst.Rn
	if early {
		lsu.writeBack(inst, updated)
	}

	addr := start
	var pc uint32
	for i := uint8(0); i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}

		if inst.Load {
			v := lsu.bus.Read32(addr &^ 3)
			switch {
			case i == 15:
				pc = v
			case userBank:
				r.SetUser(i, v)
			default:
				r.Set(i, v)
			}
		} else {
			var v uint32
			if userBank && i != 15 {
				v = r.GetUser(i)
			} else {
				v = lsu.storeValue(i, inst)
			}
			lsu.bus.Write32(addr&^3, v)
		}

		addr += 4
	}

	if !early {
		lsu.writeBack(inst, updated)
	}

	if loadsPC {
		if inst.UserBank {
			r.restoreCPSR()
		}
		r.SetPC(pc)
	}
}
