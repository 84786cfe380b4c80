package emu

import "github.com/sarchlab/gbasim/insts"

// Flags are the four condition flags produced by an operation.
type Flags struct {
	N, Z, C, V bool
}

// AddWithCarry returns a + b + carryIn with the flags an ADD/ADC/CMN sets: C is
// the unsigned carry-out, V is set when both operands share a sign that the
// result does not.
//
// Subtraction is a - b = AddWithCarry(a, ^b, true), which makes C the
// no-borrow flag SUB/SBC/CMP/RSB/NEG set.
func AddWithCarry(a, b uint32, carryIn bool) (uint32, Flags) {
	var cin uint64
	if carryIn {
		cin = 1
	}
	wide := uint64(a) + uint64(b) + cin
	result := uint32(wide)

	return result, Flags{
		N: result&(1<<31) != 0,
		Z: result == 0,
		C: wide>>32 != 0,
		V: (^(a ^ b) & (a ^ result) & (1 << 31)) != 0,
	}
}

// SubWithCarry returns a - b - !carryIn with the flags of SUB/SBC/CMP.
func SubWithCarry(a, b uint32, carryIn bool) (uint32, Flags) {
	return AddWithCarry(a, ^b, carryIn)
}

// setNZ updates N and Z from a 32-bit result.
func (p *PSR) setNZ(result uint32) {
	p.N = result&(1<<31) != 0
	p.Z = result == 0
}

// setLogical updates N and Z from result and C from the shifter carry-out. V
// is left alone.
func (p *PSR) setLogical(result uint32, shifterCarry bool) {
	p.setNZ(result)
	p.C = shifterCarry
}

// setArithmetic copies all four flags.
func (p *PSR) setArithmetic(f Flags) {
	p.N, p.Z, p.C, p.V = f.N, f.Z, f.C, f.V
}

// ShiftByRegister applies a shift whose amount comes from the bottom byte of a
// register. This is also the rule for the 16-bit encoding's standalone shift
// operations:
//   - amount 0 leaves the value and carry unchanged
//   - LSL/LSR by 32 give 0 with carry = bit 0 / bit 31
//   - LSL/LSR by more than 32 give 0 with carry clear
//   - ASR by 32 or more fills with the sign bit, which is also the carry
//   - ROR by a nonzero multiple of 32 keeps the value, carry = bit 31
func ShiftByRegister(kind insts.ShiftType, value, amount uint32, carry bool) (uint32, bool) {
	amount &= 0xFF
	if amount == 0 {
		return value, carry
	}

	switch kind {
	case insts.ShiftLSL:
		switch {
		case amount < 32:
			return value << amount, value&(1<<(32-amount)) != 0
		case amount == 32:
			return 0, value&1 != 0
		}
		return 0, false

	case insts.ShiftLSR:
		switch {
		case amount < 32:
			return value >> amount, value&(1<<(amount-1)) != 0
		case amount == 32:
			return 0, value&(1<<31) != 0
		}
		return 0, false

	case insts.ShiftASR:
		if amount < 32 {
			return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0
		}
		if value&(1<<31) != 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}

	amount &= 31
	if amount == 0 {
		return value, value&(1<<31) != 0
	}
	return ror(value, amount), value&(1<<(amount-1)) != 0
}

// ShiftByImmediate applies a shift encoded with a 5-bit immediate. An amount
// of 0 encodes LSL #0 (no shift, carry unchanged), LSR #32, ASR #32 or RRX.
func ShiftByImmediate(kind insts.ShiftType, value uint32, amount uint8, carry bool) (uint32, bool) {
	if amount != 0 {
		return ShiftByRegister(kind, value, uint32(amount), carry)
	}

	switch kind {
	case insts.ShiftLSL:
		return value, carry
	case insts.ShiftLSR, insts.ShiftASR:
		return ShiftByRegister(kind, value, 32, carry)
	}

	// RRX
	var in uint32
	if carry {
		in = 1 << 31
	}
	return in | value>>1, value&1 != 0
}

// RotateImmediate expands an 8-bit immediate rotated right by rot. The carry
// is bit 31 of the result for a nonzero rotation and unchanged otherwise.
func RotateImmediate(imm uint32, rot uint8, carry bool) (uint32, bool) {
	if rot == 0 {
		return imm, carry
	}
	v := ror(imm, uint32(rot))
	return v, v&(1<<31) != 0
}

func ror(v, n uint32) uint32 {
	n &= 31
	return v>>n | v<<((32-n)&31)
}
