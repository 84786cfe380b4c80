package benchmarks

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/sarchlab/gbasim/insts"
)

// Data processing opcodes.
const (
	opSUB uint32 = 0x2
	opADD uint32 = 0x4
	opCMP uint32 = 0xA
	opMOV uint32 = 0xD
)

// BuildProgram assembles 32-bit opcodes into little-endian bytes.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 4*len(instrs))
	for i, inst := range instrs {
		binary.LittleEndian.PutUint32(program[4*i:], inst)
	}
	return program
}

// BuildThumbProgram assembles 16-bit opcodes into little-endian bytes.
func BuildThumbProgram(instrs ...uint16) []byte {
	program := make([]byte, 2*len(instrs))
	for i, inst := range instrs {
		binary.LittleEndian.PutUint16(program[2*i:], inst)
	}
	return program
}

// armImm encodes value as a rotated 8-bit immediate. It panics when the value
// has no such encoding.
func armImm(value uint32) uint32 {
	for rot := 0; rot < 16; rot++ {
		imm8 := bits.RotateLeft32(value, 2*rot)
		if imm8 <= 0xFF {
			return uint32(rot)<<8 | imm8
		}
	}
	panic(fmt.Sprintf("0x%X is not an ARM immediate", value))
}

func dataProcImm(cond insts.Cond, op uint32, setFlags bool, rd, rn uint8, value uint32) uint32 {
	inst := uint32(cond)<<28 | 1<<25 | op<<21 | uint32(rn)<<16 | uint32(rd)<<12 | armImm(value)
	if setFlags {
		inst |= 1 << 20
	}
	return inst
}

// EncodeMOVImm encodes MOV rd, #value.
func EncodeMOVImm(rd uint8, value uint32) uint32 {
	return dataProcImm(insts.CondAL, opMOV, false, rd, 0, value)
}

// EncodeADDImm encodes ADD{S} rd, rn, #value.
func EncodeADDImm(rd, rn uint8, value uint32, setFlags bool) uint32 {
	return dataProcImm(insts.CondAL, opADD, setFlags, rd, rn, value)
}

// EncodeADDImmCond encodes a conditional ADD rd, rn, #value.
func EncodeADDImmCond(cond insts.Cond, rd, rn uint8, value uint32) uint32 {
	return dataProcImm(cond, opADD, false, rd, rn, value)
}

// EncodeSUBImm encodes SUB{S} rd, rn, #value.
func EncodeSUBImm(rd, rn uint8, value uint32, setFlags bool) uint32 {
	return dataProcImm(insts.CondAL, opSUB, setFlags, rd, rn, value)
}

// EncodeCMPImm encodes CMP rn, #value.
func EncodeCMPImm(rn uint8, value uint32) uint32 {
	return dataProcImm(insts.CondAL, opCMP, true, 0, rn, value)
}

// EncodeB encodes a branch delta instructions away from itself.
func EncodeB(cond insts.Cond, delta int32) uint32 {
	return uint32(cond)<<28 | 0b101<<25 | uint32(delta-2)&0xFFFFFF
}

// EncodeBL encodes a branch with link delta instructions away.
func EncodeBL(delta int32) uint32 {
	return EncodeB(insts.CondAL, delta) | 1<<24
}

// EncodeBXLR encodes BX lr.
func EncodeBXLR() uint32 {
	return 0xE12FFF1E
}

// EncodeMLA encodes MLA rd, rm, rs, rn.
func EncodeMLA(rd, rm, rs, rn uint8) uint32 {
	return 0xE0200090 | uint32(rd)<<16 | uint32(rn)<<12 | uint32(rs)<<8 | uint32(rm)
}

// EncodeLDRImm encodes LDR rd, [rn, #offset].
func EncodeLDRImm(rd, rn uint8, offset int32) uint32 {
	return singleTransfer(0xE5100000, rd, rn, offset)
}

func singleTransfer(base uint32, rd, rn uint8, offset int32) uint32 {
	inst := base | uint32(rn)<<16 | uint32(rd)<<12
	if offset >= 0 {
		return inst | 1<<23 | uint32(offset)&0xFFF
	}
	return inst | uint32(-offset)&0xFFF
}

// EncodeLDMIA encodes LDMIA rn!, {list}.
func EncodeLDMIA(rn uint8, list uint16) uint32 {
	return 0xE8B00000 | uint32(rn)<<16 | uint32(list)
}

// EncodeSTMIA encodes STMIA rn!, {list}.
func EncodeSTMIA(rn uint8, list uint16) uint32 {
	return 0xE8A00000 | uint32(rn)<<16 | uint32(list)
}

// EncodeSWI encodes a BIOS call in the 32-bit encoding.
func EncodeSWI(number uint32) uint32 {
	return 0xEF000000 | (number&0xFF)<<16
}

// Thumb encodings.

// ThumbMOVImm encodes MOVS rd, #imm8.
func ThumbMOVImm(rd uint8, imm uint8) uint16 {
	return 0x2000 | uint16(rd)<<8 | uint16(imm)
}

// ThumbADDImm encodes ADDS rd, #imm8.
func ThumbADDImm(rd uint8, imm uint8) uint16 {
	return 0x3000 | uint16(rd)<<8 | uint16(imm)
}

// ThumbSUBImm encodes SUBS rd, #imm8.
func ThumbSUBImm(rd uint8, imm uint8) uint16 {
	return 0x3800 | uint16(rd)<<8 | uint16(imm)
}

// ThumbBCond encodes a conditional branch delta halfwords away.
func ThumbBCond(cond insts.Cond, delta int32) uint16 {
	return 0xD000 | uint16(cond)<<8 | uint16(delta-2)&0xFF
}

// ThumbSWI encodes a BIOS call in the 16-bit encoding.
func ThumbSWI(number uint8) uint16 {
	return 0xDF00 | uint16(number)
}
