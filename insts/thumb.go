package insts

// thumbFormat numbers the 19 Thumb encoding formats. Zero is undefined.
type thumbFormat uint8

const (
	thumbUndefined thumbFormat = iota
	thumbMoveShifted
	thumbAddSubtract
	thumbImmediate
	thumbALU
	thumbHiRegister
	thumbPCRelativeLoad
	thumbLoadStoreRegister
	thumbLoadStoreSigned
	thumbLoadStoreImmediate
	thumbLoadStoreHalfword
	thumbSPRelative
	thumbLoadAddress
	thumbAdjustSP
	thumbPushPop
	thumbMultiple
	thumbConditionalBranch
	thumbSoftwareInterrupt
	thumbBranch
	thumbLongBranchLink
)

// ThumbIndex returns the dispatch table index of a 16-bit opcode.
func ThumbIndex(half uint16) uint16 {
	return half >> 6
}

func buildThumbTable() [1024]thumbFormat {
	var table [1024]thumbFormat
	for i := range table {
		table[i] = classifyThumb(uint16(i) << 6)
	}
	return table
}

func classifyThumb(h uint16) thumbFormat {
	switch {
	case h&0xF800 == 0x1800:
		return thumbAddSubtract
	case h&0xE000 == 0x0000:
		return thumbMoveShifted
	case h&0xE000 == 0x2000:
		return thumbImmediate
	case h&0xFC00 == 0x4000:
		return thumbALU
	case h&0xFC00 == 0x4400:
		return thumbHiRegister
	case h&0xF800 == 0x4800:
		return thumbPCRelativeLoad
	case h&0xF200 == 0x5000:
		return thumbLoadStoreRegister
	case h&0xF200 == 0x5200:
		return thumbLoadStoreSigned
	case h&0xE000 == 0x6000:
		return thumbLoadStoreImmediate
	case h&0xF000 == 0x8000:
		return thumbLoadStoreHalfword
	case h&0xF000 == 0x9000:
		return thumbSPRelative
	case h&0xF000 == 0xA000:
		return thumbLoadAddress
	case h&0xFF00 == 0xB000:
		return thumbAdjustSP
	case h&0xF600 == 0xB400:
		return thumbPushPop
	case h&0xF000 == 0xC000:
		return thumbMultiple
	case h&0xFF00 == 0xDF00:
		return thumbSoftwareInterrupt
	case h&0xFF00 == 0xDE00:
		return thumbUndefined
	case h&0xF000 == 0xD000:
		return thumbConditionalBranch
	case h&0xF800 == 0xE000:
		return thumbBranch
	case h&0xF000 == 0xF000:
		return thumbLongBranchLink
	}
	return thumbUndefined
}

// thumbALUOps maps format 4 opcodes onto the data-processing op that has the
// same semantics. Shifts, NEG and MUL are special-cased in decodeThumbALU.
var thumbALUOps = [16]Op{
	OpAND, OpEOR, OpMOV, OpMOV, OpMOV, OpADC, OpSBC, OpMOV,
	OpTST, OpRSB, OpCMP, OpCMN, OpORR, OpMUL, OpBIC, OpMVN,
}

// DecodeThumb decodes a 16-bit Thumb opcode, lowering it into the ARM family
// with identical register, flag, and memory behaviour.
func (d *Decoder) DecodeThumb(half uint16) Instruction {
	inst := Instruction{Raw: uint32(half), Thumb: true, Cond: CondAL}
	h := uint32(half)
	rd := uint8(h) & 7
	rs := uint8(h>>3) & 7

	switch d.thumb[ThumbIndex(half)] {
	case thumbMoveShifted:
		inst.Format = FormatDataProcessing
		inst.Op = OpMOV
		inst.SetFlags = true
		inst.Rd, inst.Rm = rd, rs
		inst.ShiftType = ShiftType((h >> 11) & 3)
		inst.ShiftAmount = uint8(h>>6) & 0x1F

	case thumbAddSubtract:
		inst.Format = FormatDataProcessing
		inst.Op = OpADD
		if h&(1<<9) != 0 {
			inst.Op = OpSUB
		}
		inst.SetFlags = true
		inst.Rd, inst.Rn = rd, rs
		if h&(1<<10) != 0 {
			inst.Immediate = true
			inst.Imm = (h >> 6) & 7
		} else {
			inst.Rm = uint8(h>>6) & 7
		}

	case thumbImmediate:
		inst.Format = FormatDataProcessing
		inst.Op = [4]Op{OpMOV, OpCMP, OpADD, OpSUB}[(h>>11)&3]
		inst.SetFlags = true
		inst.Rd = uint8(h>>8) & 7
		inst.Rn = inst.Rd
		inst.Immediate = true
		inst.Imm = h & 0xFF

	case thumbALU:
		decodeThumbALU(h, rd, rs, &inst)

	case thumbHiRegister:
		rd |= uint8(h>>4) & 8
		rs |= uint8(h>>3) & 8
		inst.Format = FormatDataProcessing
		switch (h >> 8) & 3 {
		case 0:
			inst.Op = OpADD
			inst.Rd, inst.Rn, inst.Rm = rd, rd, rs
		case 1:
			inst.Op = OpCMP
			inst.SetFlags = true
			inst.Rn, inst.Rm = rd, rs
		case 2:
			inst.Op = OpMOV
			inst.Rd, inst.Rm = rd, rs
		case 3:
			inst.Format = FormatBranchExchange
			inst.Op = OpBX
			inst.Rm = rs
		}

	case thumbPCRelativeLoad:
		inst.Format = FormatSingleDataTransfer
		inst.Op = OpLDR
		inst.Load, inst.Pre, inst.Up = true, true, true
		inst.Rd = uint8(h>>8) & 7
		inst.Rn = 15
		inst.AlignPC = true
		inst.Immediate = true
		inst.Imm = (h & 0xFF) << 2

	case thumbLoadStoreRegister:
		inst.Format = FormatSingleDataTransfer
		inst.Load = h&(1<<11) != 0
		byteAccess := h&(1<<10) != 0
		inst.Op = [2][2]Op{{OpSTR, OpSTRB}, {OpLDR, OpLDRB}}[b2i(inst.Load)][b2i(byteAccess)]
		inst.Pre, inst.Up = true, true
		inst.Rd, inst.Rn, inst.Rm = rd, rs, uint8(h>>6)&7

	case thumbLoadStoreSigned:
		inst.Format = FormatHalfwordTransfer
		inst.Op = [4]Op{OpSTRH, OpLDRSB, OpLDRH, OpLDRSH}[(h>>10)&3]
		inst.Load = inst.Op != OpSTRH
		inst.Pre, inst.Up = true, true
		inst.Rd, inst.Rn, inst.Rm = rd, rs, uint8(h>>6)&7

	case thumbLoadStoreImmediate:
		inst.Format = FormatSingleDataTransfer
		inst.Load = h&(1<<11) != 0
		byteAccess := h&(1<<12) != 0
		inst.Op = [2][2]Op{{OpSTR, OpSTRB}, {OpLDR, OpLDRB}}[b2i(inst.Load)][b2i(byteAccess)]
		inst.Pre, inst.Up, inst.Immediate = true, true, true
		inst.Rd, inst.Rn = rd, rs
		inst.Imm = (h >> 6) & 0x1F
		if !byteAccess {
			inst.Imm <<= 2
		}

	case thumbLoadStoreHalfword:
		inst.Format = FormatHalfwordTransfer
		inst.Load = h&(1<<11) != 0
		inst.Op = OpSTRH
		if inst.Load {
			inst.Op = OpLDRH
		}
		inst.Pre, inst.Up, inst.Immediate = true, true, true
		inst.Rd, inst.Rn = rd, rs
		inst.Imm = ((h >> 6) & 0x1F) << 1

	case thumbSPRelative:
		inst.Format = FormatSingleDataTransfer
		inst.Load = h&(1<<11) != 0
		inst.Op = OpSTR
		if inst.Load {
			inst.Op = OpLDR
		}
		inst.Pre, inst.Up, inst.Immediate = true, true, true
		inst.Rd = uint8(h>>8) & 7
		inst.Rn = 13
		inst.Imm = (h & 0xFF) << 2

	case thumbLoadAddress:
		inst.Format = FormatDataProcessing
		inst.Op = OpADD
		inst.Rd = uint8(h>>8) & 7
		inst.Rn = 15
		inst.AlignPC = true
		if h&(1<<11) != 0 {
			inst.Rn = 13
			inst.AlignPC = false
		}
		inst.Immediate = true
		inst.Imm = (h & 0xFF) << 2

	case thumbAdjustSP:
		inst.Format = FormatDataProcessing
		inst.Op = OpADD
		if h&(1<<7) != 0 {
			inst.Op = OpSUB
		}
		inst.Rd, inst.Rn = 13, 13
		inst.Immediate = true
		inst.Imm = (h & 0x7F) << 2

	case thumbPushPop:
		inst.Format = FormatBlockDataTransfer
		inst.Load = h&(1<<11) != 0
		inst.Rn = 13
		inst.WriteBack = true
		inst.RegList = uint16(h & 0xFF)
		if inst.Load {
			inst.Op = OpLDM
			inst.Up = true // LDMIA sp!
			if h&(1<<8) != 0 {
				inst.RegList |= 1 << 15
			}
		} else {
			inst.Op = OpSTM
			inst.Pre = true // STMDB sp!
			if h&(1<<8) != 0 {
				inst.RegList |= 1 << 14
			}
		}

	case thumbMultiple:
		inst.Format = FormatBlockDataTransfer
		inst.Load = h&(1<<11) != 0
		inst.Op = OpSTM
		if inst.Load {
			inst.Op = OpLDM
		}
		inst.Up, inst.WriteBack = true, true
		inst.Rn = uint8(h>>8) & 7
		inst.RegList = uint16(h & 0xFF)

	case thumbConditionalBranch:
		inst.Format = FormatBranch
		inst.Op = OpB
		inst.Cond = Cond((h >> 8) & 0xF)
		inst.BranchOffset = int32(int8(h)) << 1

	case thumbSoftwareInterrupt:
		inst.Format = FormatSoftwareInterrupt
		inst.Op = OpSWI
		inst.Imm = h & 0xFF

	case thumbBranch:
		inst.Format = FormatBranch
		inst.Op = OpB
		inst.BranchOffset = int32(h<<21) >> 20

	case thumbLongBranchLink:
		inst.Format = FormatLongBranchLink
		inst.HighHalf = h&(1<<11) != 0
		if inst.HighHalf {
			inst.Op = OpBLSuffix
			inst.Imm = (h & 0x7FF) << 1
		} else {
			inst.Op = OpBLPrefix
			inst.BranchOffset = int32(h<<21) >> 9
		}

	default:
		inst.Format = FormatUndefined
		inst.Op = OpUndefined
	}

	return inst
}

// decodeThumbALU lowers format 4. Shifts become MOVS with a register-specified
// shift, NEG becomes RSBS #0 and MUL becomes MULS.
func decodeThumbALU(h uint32, rd, rs uint8, inst *Instruction) {
	op := (h >> 6) & 0xF
	inst.Format = FormatDataProcessing
	inst.Op = thumbALUOps[op]
	inst.SetFlags = true
	inst.Rd, inst.Rn, inst.Rm = rd, rd, rs

	switch op {
	case 0x2, 0x3, 0x4, 0x7:
		inst.Rm = rd
		inst.Rs = rs
		inst.ShiftByReg = true
		inst.ShiftType = [8]ShiftType{2: ShiftLSL, 3: ShiftLSR, 4: ShiftASR, 7: ShiftROR}[op]
	case 0x9:
		inst.Rn = rs
		inst.Immediate = true
		inst.Imm = 0
	case 0xD:
		inst.Format = FormatMultiply
		inst.Rm = rs
		inst.Rs = rd
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
