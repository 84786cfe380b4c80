package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

var _ = Describe("Flag Engine", func() {
	Describe("AddWithCarry", func() {
		It("should set V on signed overflow", func() {
			result, f := emu.AddWithCarry(0x7FFFFFFF, 1, false)
			Expect(result).To(Equal(uint32(0x80000000)))
			Expect(f).To(Equal(emu.Flags{N: true, V: true}))
		})

		It("should carry out of bit 31", func() {
			result, f := emu.AddWithCarry(0xFFFFFFFF, 0, true)
			Expect(result).To(BeZero())
			Expect(f).To(Equal(emu.Flags{Z: true, C: true}))
		})
	})

	Describe("SubWithCarry", func() {
		It("should set C when no borrow occurs", func() {
			result, f := emu.SubWithCarry(5, 5, true)
			Expect(result).To(BeZero())
			Expect(f).To(Equal(emu.Flags{Z: true, C: true}))
		})

		It("should clear C on borrow", func() {
			result, f := emu.SubWithCarry(0, 1, true)
			Expect(result).To(Equal(uint32(0xFFFFFFFF)))
			Expect(f).To(Equal(emu.Flags{N: true}))
		})

		It("should set V when the sign flips across the boundary", func() {
			_, f := emu.SubWithCarry(0x80000000, 1, true)
			Expect(f.V).To(BeTrue())
			Expect(f.C).To(BeTrue())
		})
	})

	DescribeTable("ShiftByRegister",
		func(kind insts.ShiftType, value, amount uint32, carryIn bool, want uint32, carryOut bool) {
			got, c := emu.ShiftByRegister(kind, value, amount, carryIn)
			Expect(got).To(Equal(want))
			Expect(c).To(Equal(carryOut))
		},
		Entry("amount 0 keeps value and carry", insts.ShiftLSL, uint32(0x1234), uint32(0), true, uint32(0x1234), true),
		Entry("amount uses only the low byte", insts.ShiftLSL, uint32(1), uint32(0x101), false, uint32(2), false),
		Entry("LSL 1 carries out bit 31", insts.ShiftLSL, uint32(0x80000000), uint32(1), false, uint32(0), true),
		Entry("LSL 32 carries bit 0", insts.ShiftLSL, uint32(0x80000001), uint32(32), false, uint32(0), true),
		Entry("LSL 32 of an even value clears carry", insts.ShiftLSL, uint32(0x80000000), uint32(32), true, uint32(0), false),
		Entry("LSL 33 clears carry", insts.ShiftLSL, uint32(0xFFFFFFFF), uint32(33), true, uint32(0), false),
		Entry("LSR 4", insts.ShiftLSR, uint32(0x18), uint32(4), false, uint32(1), true),
		Entry("LSR 32 carries bit 31", insts.ShiftLSR, uint32(0x80000000), uint32(32), false, uint32(0), true),
		Entry("LSR 40 clears carry", insts.ShiftLSR, uint32(0x80000000), uint32(40), true, uint32(0), false),
		Entry("ASR 4 fills with the sign", insts.ShiftASR, uint32(0x80000000), uint32(4), false, uint32(0xF8000000), false),
		Entry("ASR 40 of a negative value", insts.ShiftASR, uint32(0x80000000), uint32(40), false, uint32(0xFFFFFFFF), true),
		Entry("ASR 40 of a positive value", insts.ShiftASR, uint32(0x7FFFFFFF), uint32(40), true, uint32(0), false),
		Entry("ROR 4", insts.ShiftROR, uint32(0xF), uint32(4), false, uint32(0xF0000000), true),
		Entry("ROR 32 keeps the value", insts.ShiftROR, uint32(0x80000000), uint32(32), false, uint32(0x80000000), true),
		Entry("ROR 36 rotates by 4", insts.ShiftROR, uint32(0x10), uint32(36), true, uint32(0x1), false),
	)

	DescribeTable("ShiftByImmediate",
		func(kind insts.ShiftType, value uint32, amount uint8, carryIn bool, want uint32, carryOut bool) {
			got, c := emu.ShiftByImmediate(kind, value, amount, carryIn)
			Expect(got).To(Equal(want))
			Expect(c).To(Equal(carryOut))
		},
		Entry("LSL #0 is no shift", insts.ShiftLSL, uint32(0x80000000), uint8(0), true, uint32(0x80000000), true),
		Entry("LSR #0 encodes LSR #32", insts.ShiftLSR, uint32(0x80000000), uint8(0), false, uint32(0), true),
		Entry("ASR #0 encodes ASR #32", insts.ShiftASR, uint32(0x80000000), uint8(0), false, uint32(0xFFFFFFFF), true),
		Entry("ROR #0 encodes RRX", insts.ShiftROR, uint32(0x1), uint8(0), true, uint32(0x80000000), true),
		Entry("RRX with carry clear", insts.ShiftROR, uint32(0x2), uint8(0), false, uint32(0x1), false),
		Entry("LSL #4", insts.ShiftLSL, uint32(0x1F000000), uint8(4), false, uint32(0xF0000000), true),
	)

	Describe("RotateImmediate", func() {
		It("should set carry from bit 31 of a rotated immediate", func() {
			v, c := emu.RotateImmediate(0xFF, 8, false)
			Expect(v).To(Equal(uint32(0xFF000000)))
			Expect(c).To(BeTrue())
		})

		It("should leave carry alone without rotation", func() {
			v, c := emu.RotateImmediate(0xFF, 0, true)
			Expect(v).To(Equal(uint32(0xFF)))
			Expect(c).To(BeTrue())
		})
	})
})
