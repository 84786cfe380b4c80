package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
)

var _ = Describe("LoadStoreUnit", func() {
	var m *machine

	BeforeEach(func() {
		m = newMachine()
	})

	Describe("single transfers", func() {
		It("should rotate a misaligned word load", func() {
			m.mem.Write32(0x1000, 0x11223344)
			m.arm(0, 0xE5910000) // ldr r0, [r1]
			m.reg.Set(1, 0x1001)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x44112233)))
		})

		It("should post-index and write back", func() {
			m.mem.Write32(0x1000, 7)
			m.arm(0, 0xE4910004) // ldr r0, [r1], #4
			m.reg.Set(1, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(7)))
			Expect(m.reg.Get(1)).To(Equal(uint32(0x1004)))
		})

		It("should let the loaded value win over write-back", func() {
			m.mem.Write32(0x1004, 0xCAFE)
			m.arm(0, 0xE5B00004) // ldr r0, [r0, #4]!
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xCAFE)))
		})

		It("should subtract a scaled register offset", func() {
			m.mem.Write32(0x0FF8, 0x55)
			m.arm(0, 0xE7110102) // ldr r0, [r1, -r2, lsl #2]
			m.reg.Set(1, 0x1000)
			m.reg.Set(2, 2)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x55)))
		})

		It("should store the PC 12 ahead", func() {
			m.arm(0x100, 0xE581F000) // str pc, [r1]
			m.reg.Set(1, 0x1000)
			m.step()
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x10C)))
		})

		It("should store a byte", func() {
			m.arm(0, 0xE5C10000) // strb r0, [r1]
			m.reg.Set(0, 0x1234)
			m.reg.Set(1, 0x1003)
			m.step()
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x34000000)))
		})
	})

	Describe("halfword transfers", func() {
		BeforeEach(func() {
			m.mem.Write16(0x1000, 0xBEEF)
			m.reg.Set(1, 0x1000)
		})

		It("should zero-extend a halfword", func() {
			m.arm(0, 0xE1D100B0) // ldrh r0, [r1]
			m.reg.Set(1, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xBEEF)))
		})

		It("should rotate a misaligned halfword", func() {
			m.arm(0, 0xE1D100B0) // ldrh r0, [r1]
			m.reg.Set(1, 0x1001)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xEF0000BE)))
		})

		It("should sign-extend a halfword", func() {
			m.arm(0, 0xE1D100F0) // ldrsh r0, [r1]
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xFFFFBEEF)))
		})

		It("should load a byte for a misaligned signed halfword", func() {
			m.arm(0, 0xE1D100F0) // ldrsh r0, [r1]
			m.reg.Set(1, 0x1001)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xFFFFFFBE)))
		})

		It("should sign-extend a byte", func() {
			m.arm(0, 0xE1D100D0) // ldrsb r0, [r1]
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xFFFFFFEF)))
		})

		It("should store a halfword", func() {
			m.arm(0, 0xE1C100B0) // strh r0, [r1]
			m.reg.Set(0, 0x12345678)
			m.step()
			Expect(m.mem.Read16(0x1000)).To(Equal(uint16(0x5678)))
		})
	})

	Describe("swap", func() {
		It("should exchange a word", func() {
			m.mem.Write32(0x1000, 0xAAAA)
			m.arm(0, 0xE1020091) // swp r0, r1, [r2]
			m.reg.Set(1, 0xBBBB)
			m.reg.Set(2, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xAAAA)))
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0xBBBB)))
		})

		It("should exchange a byte", func() {
			m.mem.Write32(0x1000, 0x11223344)
			m.arm(0, 0xE1420091) // swpb r0, r1, [r2]
			m.reg.Set(1, 0xFF)
			m.reg.Set(2, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x44)))
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x112233FF)))
		})
	})

	Describe("block transfers", func() {
		It("should push full descending", func() {
			m.arm(0, 0xE92D000F) // stmdb sp!, {r0-r3}
			for i := uint8(0); i < 4; i++ {
				m.reg.Set(i, uint32(i)+10)
			}
			m.reg.Set(13, 0x2000)

			m.step()

			Expect(m.reg.Get(13)).To(Equal(uint32(0x1FF0)))
			Expect(m.mem.Read32(0x1FF0)).To(Equal(uint32(10)))
			Expect(m.mem.Read32(0x1FFC)).To(Equal(uint32(13)))
		})

		It("should store the original base when it is the first register", func() {
			m.arm(0, 0xE8A00003) // stmia r0!, {r0, r1}
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x1000)))
			Expect(m.reg.Get(0)).To(Equal(uint32(0x1008)))
		})

		It("should store the updated base when it is not the first register", func() {
			m.arm(0, 0xE8A10003) // stmia r1!, {r0, r1}
			m.reg.Set(1, 0x1000)
			m.step()
			Expect(m.mem.Read32(0x1004)).To(Equal(uint32(0x1008)))
		})

		It("should keep a loaded base", func() {
			m.mem.LoadWords(0x1000, 0x77, 0x88)
			m.arm(0, 0xE8B00003) // ldmia r0!, {r0, r1}
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x77)))
			Expect(m.reg.Get(1)).To(Equal(uint32(0x88)))
		})

		It("should transfer the PC for an empty list", func() {
			m.arm(0x100, 0xE8A00000) // stmia r0!, {}
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x10C)))
			Expect(m.reg.Get(0)).To(Equal(uint32(0x1040)))
		})

		It("should load the PC for an empty list", func() {
			m.mem.Write32(0x1000, 0x400)
			m.arm(0, 0xE8B00000) // ldmia r0!, {}
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.reg.PC()).To(Equal(uint32(0x400)))
			Expect(m.reg.Get(0)).To(Equal(uint32(0x1040)))
		})

		It("should restore the CPSR when loading the PC with S", func() {
			Expect(m.reg.SwitchMode(emu.ModeIRQ)).To(Succeed())
			m.reg.SetSPSR(emu.PSR{Mode: emu.ModeSystem, T: true})
			m.mem.Write32(0x3000, 0x08000123)
			m.arm(0x18, 0xE8FD8000) // ldmia sp!, {pc}^
			m.reg.Set(13, 0x3000)

			m.step()

			Expect(m.reg.CPSR.Mode).To(Equal(emu.ModeSystem))
			Expect(m.reg.CPSR.T).To(BeTrue())
			Expect(m.reg.PC()).To(Equal(uint32(0x08000122)))
			Expect(m.reg.Banked(emu.ModeIRQ, 13)).To(Equal(uint32(0x3004)))
		})

		It("should store the User bank with S", func() {
			m.reg.SetUser(13, 0x03007F00)
			m.reg.Set(13, 0x03007FE0)
			m.arm(0, 0xE8C02000) // stmia r0, {sp}^
			m.reg.Set(0, 0x1000)
			m.step()
			Expect(m.mem.Read32(0x1000)).To(Equal(uint32(0x03007F00)))
		})
	})
})
