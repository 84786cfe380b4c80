// Package insts provides ARM7TDMI instruction definitions and decoding.
//
// This package classifies fetched opcodes of both encodings into instruction
// families and extracts their operands. Classification is table driven:
//   - 32-bit ARM: 4096 entries indexed by bits [27:20] and [7:4]
//   - 16-bit Thumb: 1024 entries indexed by bits [15:6], one of 19 formats
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0xE0810002, false) // ADD r0, r1, r2
//	fmt.Printf("%v %d %d %d\n", inst.Op, inst.Rd, inst.Rn, inst.Rm)
package insts

// Decoder decodes ARM7TDMI machine code into instructions.
type Decoder struct {
	arm   *[4096]Format
	thumb *[1024]thumbFormat
}

var (
	armTable   = buildARMTable()
	thumbTable = buildThumbTable()
)

// NewDecoder creates a new ARM7TDMI instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{arm: &armTable, thumb: &thumbTable}
}

// Decode decodes an opcode of the given encoding. Thumb opcodes occupy the low
// 16 bits of word.
func (d *Decoder) Decode(word uint32, thumb bool) Instruction {
	if thumb {
		return d.DecodeThumb(uint16(word))
	}
	return d.DecodeARM(word)
}

// ARMIndex returns the dispatch table index of a 32-bit opcode.
func ARMIndex(word uint32) uint32 {
	return (word>>16)&0xFF0 | (word>>4)&0xF
}

// DecodeARM decodes a 32-bit ARM instruction word. Bit patterns that belong to
// no family decode to FormatUndefined.
func (d *Decoder) DecodeARM(word uint32) Instruction {
	inst := Instruction{
		Raw:    word,
		Cond:   Cond(word >> 28),
		Format: d.arm[ARMIndex(word)],
	}

	switch inst.Format {
	case FormatDataProcessing:
		decodeDataProcessing(word, &inst)
	case FormatPSRTransfer:
		decodePSRTransfer(word, &inst)
	case FormatMultiply:
		decodeMultiply(word, &inst)
	case FormatMultiplyLong:
		decodeMultiplyLong(word, &inst)
	case FormatSingleDataSwap:
		inst.Op = OpSWP
		if word&(1<<22) != 0 {
			inst.Op = OpSWPB
		}
		inst.Rn = uint8(word>>16) & 0xF
		inst.Rd = uint8(word>>12) & 0xF
		inst.Rm = uint8(word) & 0xF
	case FormatBranchExchange:
		inst.Op = OpBX
		inst.Rm = uint8(word) & 0xF
	case FormatHalfwordTransfer:
		decodeHalfwordTransfer(word, &inst)
	case FormatSingleDataTransfer:
		decodeSingleDataTransfer(word, &inst)
	case FormatBlockDataTransfer:
		decodeBlockDataTransfer(word, &inst)
	case FormatBranch:
		inst.Op = OpB
		if word&(1<<24) != 0 {
			inst.Op = OpBL
		}
		inst.BranchOffset = int32(word<<8) >> 6
	case FormatSoftwareInterrupt:
		inst.Op = OpSWI
		inst.Imm = word & 0xFFFFFF
	case FormatCoprocessor:
		decodeCoprocessor(word, &inst)
	default:
		inst.Op = OpUndefined
	}

	return inst
}

func decodeDataProcessing(word uint32, inst *Instruction) {
	inst.Op = Op((word >> 21) & 0xF)
	inst.SetFlags = word&(1<<20) != 0
	inst.Rn = uint8(word>>16) & 0xF
	inst.Rd = uint8(word>>12) & 0xF
	decodeOperand2(word, inst)
}

// decodeOperand2 extracts the shifter operand shared by data processing and
// MSR.
func decodeOperand2(word uint32, inst *Instruction) {
	if word&(1<<25) != 0 {
		inst.Immediate = true
		inst.Imm = word & 0xFF
		inst.Rotate = uint8((word>>8)&0xF) * 2
		return
	}

	inst.Rm = uint8(word) & 0xF
	inst.ShiftType = ShiftType((word >> 5) & 3)
	if word&(1<<4) != 0 {
		inst.ShiftByReg = true
		inst.Rs = uint8(word>>8) & 0xF
	} else {
		inst.ShiftAmount = uint8(word>>7) & 0x1F
	}
}

func decodePSRTransfer(word uint32, inst *Instruction) {
	inst.UserBank = word&(1<<22) != 0
	if word&(1<<21) == 0 {
		inst.Op = OpMRS
		inst.Rd = uint8(word>>12) & 0xF
		return
	}

	inst.Op = OpMSR
	inst.FieldMask = uint8(word>>16) & 0xF
	decodeOperand2(word, inst)
}

func decodeMultiply(word uint32, inst *Instruction) {
	inst.Op = OpMUL
	inst.Accum = word&(1<<21) != 0
	if inst.Accum {
		inst.Op = OpMLA
	}
	inst.SetFlags = word&(1<<20) != 0
	inst.Rd = uint8(word>>16) & 0xF
	inst.Rn = uint8(word>>12) & 0xF
	inst.Rs = uint8(word>>8) & 0xF
	inst.Rm = uint8(word) & 0xF
}

func decodeMultiplyLong(word uint32, inst *Instruction) {
	inst.Signed = word&(1<<22) != 0
	inst.Accum = word&(1<<21) != 0
	switch {
	case inst.Signed && inst.Accum:
		inst.Op = OpSMLAL
	case inst.Signed:
		inst.Op = OpSMULL
	case inst.Accum:
		inst.Op = OpUMLAL
	default:
		inst.Op = OpUMULL
	}
	inst.SetFlags = word&(1<<20) != 0
	inst.Rn = uint8(word>>16) & 0xF // RdHi
	inst.Rd = uint8(word>>12) & 0xF // RdLo
	inst.Rs = uint8(word>>8) & 0xF
	inst.Rm = uint8(word) & 0xF
}

func decodeHalfwordTransfer(word uint32, inst *Instruction) {
	inst.Pre = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.Immediate = word&(1<<22) != 0
	inst.WriteBack = word&(1<<21) != 0 || !inst.Pre
	inst.Load = word&(1<<20) != 0
	inst.Rn = uint8(word>>16) & 0xF
	inst.Rd = uint8(word>>12) & 0xF
	if inst.Immediate {
		inst.Imm = (word>>4)&0xF0 | word&0xF
	} else {
		inst.Rm = uint8(word) & 0xF
	}

	switch (word >> 5) & 3 {
	case 1:
		inst.Op = OpSTRH
		if inst.Load {
			inst.Op = OpLDRH
		}
	case 2:
		inst.Op = OpLDRSB
	case 3:
		inst.Op = OpLDRSH
	}
}

func decodeSingleDataTransfer(word uint32, inst *Instruction) {
	inst.Immediate = word&(1<<25) == 0
	inst.Pre = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.WriteBack = word&(1<<21) != 0 || !inst.Pre
	inst.Load = word&(1<<20) != 0
	inst.Rn = uint8(word>>16) & 0xF
	inst.Rd = uint8(word>>12) & 0xF

	byteAccess := word&(1<<22) != 0
	switch {
	case inst.Load && byteAccess:
		inst.Op = OpLDRB
	case inst.Load:
		inst.Op = OpLDR
	case byteAccess:
		inst.Op = OpSTRB
	default:
		inst.Op = OpSTR
	}

	if inst.Immediate {
		inst.Imm = word & 0xFFF
		return
	}
	inst.Rm = uint8(word) & 0xF
	inst.ShiftType = ShiftType((word >> 5) & 3)
	inst.ShiftAmount = uint8(word>>7) & 0x1F
}

func decodeBlockDataTransfer(word uint32, inst *Instruction) {
	inst.Pre = word&(1<<24) != 0
	inst.Up = word&(1<<23) != 0
	inst.UserBank = word&(1<<22) != 0
	inst.WriteBack = word&(1<<21) != 0
	inst.Load = word&(1<<20) != 0
	inst.Rn = uint8(word>>16) & 0xF
	inst.RegList = uint16(word)
	inst.Op = OpSTM
	if inst.Load {
		inst.Op = OpLDM
	}
}

func decodeCoprocessor(word uint32, inst *Instruction) {
	switch {
	case word&0x0E000000 == 0x0C000000:
		inst.Op = OpSTC
		if word&(1<<20) != 0 {
			inst.Op = OpLDC
		}
	case word&(1<<4) == 0:
		inst.Op = OpCDP
	case word&(1<<20) != 0:
		inst.Op = OpMRC
	default:
		inst.Op = OpMCR
	}
	inst.Rd = uint8(word>>12) & 0xF
}

// buildARMTable classifies every combination of bits [27:20] and [7:4].
func buildARMTable() [4096]Format {
	var table [4096]Format
	for i := range table {
		table[i] = classifyARM(uint32(i>>4), uint32(i&0xF))
	}
	return table
}

func classifyARM(hi, lo uint32) Format {
	switch hi >> 5 {
	case 0b000:
		if lo == 0b1001 {
			switch {
			case hi&0xFC == 0x00:
				return FormatMultiply
			case hi&0xF8 == 0x08:
				return FormatMultiplyLong
			case hi&0xFB == 0x10:
				return FormatSingleDataSwap
			}
			return FormatUndefined
		}
		if lo&0b1001 == 0b1001 {
			// Signed stores (LDRD/STRD) do not exist before ARMv5TE.
			if hi&0x01 == 0 && lo&0b0100 != 0 {
				return FormatUndefined
			}
			return FormatHalfwordTransfer
		}
		if hi&0x19 == 0x10 {
			// TST/TEQ/CMP/CMN without S are the miscellaneous space.
			switch {
			case hi == 0x12 && lo == 0b0001:
				return FormatBranchExchange
			case lo == 0:
				return FormatPSRTransfer
			}
			return FormatUndefined
		}
		return FormatDataProcessing
	case 0b001:
		if hi&0x19 == 0x10 {
			if hi&0x02 != 0 {
				return FormatPSRTransfer
			}
			return FormatUndefined
		}
		return FormatDataProcessing
	case 0b010:
		return FormatSingleDataTransfer
	case 0b011:
		if lo&1 != 0 {
			return FormatUndefined
		}
		return FormatSingleDataTransfer
	case 0b100:
		return FormatBlockDataTransfer
	case 0b101:
		return FormatBranch
	case 0b110:
		return FormatCoprocessor
	}

	if hi&0x10 != 0 {
		return FormatSoftwareInterrupt
	}
	return FormatCoprocessor
}
