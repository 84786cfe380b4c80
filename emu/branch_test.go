package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

var _ = Describe("BranchUnit", func() {
	var m *machine

	BeforeEach(func() {
		m = newMachine()
	})

	DescribeTable("ConditionPassed",
		func(cond insts.Cond, psr emu.PSR, want bool) {
			Expect(emu.ConditionPassed(cond, psr)).To(Equal(want))
		},
		Entry("EQ with Z", insts.CondEQ, emu.PSR{Z: true}, true),
		Entry("NE with Z", insts.CondNE, emu.PSR{Z: true}, false),
		Entry("CS with C", insts.CondCS, emu.PSR{C: true}, true),
		Entry("CC with C", insts.CondCC, emu.PSR{C: true}, false),
		Entry("MI with N", insts.CondMI, emu.PSR{N: true}, true),
		Entry("PL with N", insts.CondPL, emu.PSR{N: true}, false),
		Entry("VS with V", insts.CondVS, emu.PSR{V: true}, true),
		Entry("VC with V", insts.CondVC, emu.PSR{V: true}, false),
		Entry("HI with C and Z", insts.CondHI, emu.PSR{C: true, Z: true}, false),
		Entry("HI with C", insts.CondHI, emu.PSR{C: true}, true),
		Entry("LS with Z", insts.CondLS, emu.PSR{C: true, Z: true}, true),
		Entry("GE with N and V", insts.CondGE, emu.PSR{N: true, V: true}, true),
		Entry("LT with N", insts.CondLT, emu.PSR{N: true}, true),
		Entry("GT with Z", insts.CondGT, emu.PSR{Z: true}, false),
		Entry("GT clear", insts.CondGT, emu.PSR{}, true),
		Entry("LE with N", insts.CondLE, emu.PSR{N: true}, true),
		Entry("AL", insts.CondAL, emu.PSR{}, true),
		Entry("NV", insts.CondNV, emu.PSR{N: true, Z: true, C: true, V: true}, false),
	)

	Describe("32-bit branches", func() {
		It("should branch relative to the PC", func() {
			m.arm(0, 0xEA000002) // b 0x10
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x10)))
		})

		It("should branch backwards", func() {
			m.arm(0x100, 0xEAFFFFFE) // b .
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x100)))
		})

		It("should link the next instruction", func() {
			m.arm(0x100, 0xEB000002) // bl 0x110
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x110)))
			Expect(m.reg.Get(14)).To(Equal(uint32(0x104)))
		})

		It("should skip a failed condition and only advance the PC", func() {
			m.arm(0, 0x0A000002) // beq 0x10
			m.reg.CPSR.Z = false
			before := m.reg.Snapshot()

			res := m.step()

			Expect(res.Skipped).To(BeTrue())
			Expect(res.Cycles).To(Equal(uint64(1)))
			after := m.reg.Snapshot()
			Expect(after.R[15]).To(Equal(uint32(4)))
			after.R[15] = before.R[15]
			Expect(after).To(Equal(before))
		})

		It("should never execute NV", func() {
			m.arm(0, 0xFA000002)
			res := m.step()
			Expect(res.Skipped).To(BeTrue())
			Expect(m.reg.PC()).To(Equal(uint32(4)))
		})
	})

	Describe("BX", func() {
		It("should enter the 16-bit state from an odd address", func() {
			m.arm(0, 0xE12FFF10) // bx r0
			m.reg.Set(0, 0x08000001)
			m.step()
			Expect(m.reg.CPSR.T).To(BeTrue())
			Expect(m.reg.PC()).To(Equal(uint32(0x08000000)))
		})

		It("should return to the 32-bit state from an even address", func() {
			m.thumb(0x100, 0x4770) // bx lr
			m.reg.Set(14, 0x200)
			m.step()
			Expect(m.reg.CPSR.T).To(BeFalse())
			Expect(m.reg.PC()).To(Equal(uint32(0x200)))
		})
	})

	Describe("16-bit branches", func() {
		It("should take a conditional branch", func() {
			m.thumb(0x100, 0xD002) // beq 0x108
			m.reg.CPSR.Z = true
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x108)))
		})

		It("should skip a conditional branch", func() {
			m.thumb(0x100, 0xD002) // beq 0x108
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x102)))
		})

		It("should branch unconditionally", func() {
			m.thumb(0x100, 0xE7FE) // b .
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x100)))
		})

		It("should link across the two BL halves", func() {
			m.thumb(0x100, 0xF000, 0xF802) // bl 0x108

			m.step()
			Expect(m.reg.Get(14)).To(Equal(uint32(0x104)))
			Expect(m.reg.PC()).To(Equal(uint32(0x102)))

			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x108)))
			Expect(m.reg.Get(14)).To(Equal(uint32(0x105)))
		})

		It("should reach a negative BL target", func() {
			m.thumb(0x2000, 0xF7FF, 0xFFFE) // bl 0x2000

			m.step()
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x2000)))
			Expect(m.reg.Get(14)).To(Equal(uint32(0x2005)))
		})
	})
})
