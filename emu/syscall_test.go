package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/timing/latency"
)

var _ = Describe("SWI handling", func() {
	var (
		m   *machine
		hle *emu.HLEHandler
	)

	BeforeEach(func() {
		hle = emu.NewHLEHandler(GinkgoLogr)
		m = newMachine(emu.WithSWIHandler(hle))
	})

	It("should read the call number from either encoding", func() {
		d := insts.NewDecoder()
		arm := d.Decode(0xEF060000, false)
		thumb := d.Decode(0xDF06, true)
		Expect(emu.SWINumber(&arm)).To(Equal(emu.SWIDiv))
		Expect(emu.SWINumber(&thumb)).To(Equal(emu.SWIDiv))
	})

	It("should divide on the host", func() {
		m.thumb(0x100, 0xDF06) // swi 6
		m.reg.Set(0, uint32(0xFFFFFFF9)) // -7
		m.reg.Set(1, 2)

		res := m.step()

		Expect(res.Raised).To(BeFalse())
		Expect(int32(m.reg.Get(0))).To(Equal(int32(-3)))
		Expect(int32(m.reg.Get(1))).To(Equal(int32(-1)))
		Expect(m.reg.Get(3)).To(Equal(uint32(3)))
		Expect(m.reg.PC()).To(Equal(uint32(0x102)))
		Expect(m.reg.CPSR.Mode).To(Equal(emu.ModeSupervisor))
	})

	It("should charge a serviced call as the SWI it replaces", func() {
		m.arm(0x100, 0xEF060000) // swi 0x60000
		m.reg.Set(0, 9)
		m.reg.Set(1, 3)

		res := m.step()

		Expect(res.Cycles).To(Equal(latency.DefaultTimingConfig().ExceptionLatency))
		Expect(m.cpu.Stats().Exceptions[emu.ExceptionSoftwareInterrupt]).To(BeZero())
	})

	It("should divide with swapped operands", func() {
		m.arm(0x100, 0xEF070000) // swi 0x70000
		m.reg.Set(0, 4)
		m.reg.Set(1, 17)
		m.step()
		Expect(m.reg.Get(0)).To(Equal(uint32(4)))
		Expect(m.reg.Get(1)).To(Equal(uint32(1)))
	})

	It("should take a square root", func() {
		m.thumb(0x100, 0xDF08) // swi 8
		m.reg.Set(0, 1000)
		m.step()
		Expect(m.reg.Get(0)).To(Equal(uint32(31)))
	})

	It("should leave registers alone on division by zero", func() {
		m.thumb(0x100, 0xDF06)
		m.reg.Set(0, 5)
		m.reg.Set(1, 0)
		m.step()
		Expect(m.reg.Get(0)).To(Equal(uint32(5)))
	})

	It("should fall back to the vector for other calls", func() {
		m.thumb(0x100, 0xDF05) // swi 5
		res := m.step()
		Expect(res.Exception).To(Equal(emu.ExceptionSoftwareInterrupt))
		Expect(m.reg.PC()).To(Equal(uint32(0x08)))
	})

	It("should halt the core", func() {
		m.thumb(0x100, 0xDF02) // swi 2

		m.step()

		Expect(m.cpu.Halted()).To(BeTrue())
		Expect(m.reg.PC()).To(Equal(uint32(0x102)))
		consumed, err := m.cpu.Run(50)
		Expect(err).NotTo(HaveOccurred())
		Expect(consumed).To(Equal(uint64(50)))
	})
})
