package emu_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/insts/cache"
	"github.com/sarchlab/gbasim/timing/latency"
)

var _ = Describe("CPU", func() {
	Describe("Reset", func() {
		It("should require a bus", func() {
			cpu := emu.NewCPU()
			Expect(cpu.Reset()).To(MatchError(emu.ErrNoBus))
		})

		It("should refuse to run before reset", func() {
			cpu := emu.NewCPU(emu.WithBus(emu.NewMemory()))

			_, err := cpu.Run(100)
			Expect(err).To(MatchError(emu.ErrNotReset))
			Expect(cpu.Step().Err).To(MatchError(emu.ErrNotReset))
			Expect(cpu.RaiseException(emu.ExceptionIRQ)).To(MatchError(emu.ErrNotReset))
		})

		It("should start at the reset vector in Supervisor mode", func() {
			m := newMachine()
			s := m.cpu.State()
			Expect(s.R[15]).To(BeZero())
			Expect(s.CPSR).To(Equal(emu.PSR{Mode: emu.ModeSupervisor, I: true, F: true}))
		})

		It("should clear registers left by a previous run", func() {
			m := newMachine()
			m.reg.Set(4, 99)
			m.reg.CPSR.T = true
			Expect(m.cpu.Reset()).To(Succeed())
			Expect(m.reg.Get(4)).To(BeZero())
			Expect(m.reg.CPSR.T).To(BeFalse())
		})

		It("should boot straight into the cartridge", func() {
			m := newMachine(emu.WithDirectBoot())
			Expect(m.reg.PC()).To(Equal(emu.CartridgeEntry))
			Expect(m.reg.CPSR.Mode).To(Equal(emu.ModeSystem))
			Expect(m.reg.CPSR.I).To(BeFalse())
			Expect(m.reg.Get(13)).To(Equal(uint32(0x03007F00)))
			Expect(m.reg.Banked(emu.ModeIRQ, 13)).To(Equal(uint32(0x03007FA0)))
			Expect(m.reg.Banked(emu.ModeSupervisor, 13)).To(Equal(uint32(0x03007FE0)))
		})

		It("should switch encodings through BX", func() {
			m := newMachine()
			m.mem.LoadWords(0, 0xE3A00302, 0xE2800001, 0xE12FFF10) // mov r0, #0x08000000; add r0, r0, #1; bx r0
			m.step()
			m.step()
			m.step()
			Expect(m.reg.CPSR.T).To(BeTrue())
			Expect(m.reg.PC()).To(Equal(uint32(0x08000000)))
		})
	})

	Describe("Run", func() {
		var m *machine

		BeforeEach(func() {
			m = newMachine()
			m.arm(0, 0xEAFFFFFE) // b .
		})

		It("should consume at least the budget", func() {
			for _, budget := range []uint64{1, 2, 3, 100, 1000, 1232} {
				consumed, err := m.cpu.Run(budget)
				Expect(err).NotTo(HaveOccurred())
				Expect(consumed).To(BeNumerically(">=", budget))
				Expect(consumed).To(BeNumerically("<", budget+3))
			}
		})

		It("should return early when a stop was requested", func() {
			m.cpu.RequestStop()
			consumed, err := m.cpu.Run(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed).To(BeZero())

			consumed, err = m.cpu.Run(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed).To(BeNumerically(">=", 100))
		})

		It("should honour a stop raised while running", func() {
			n := 0
			m = newMachine(emu.WithTraceHook(func(uint32, insts.Instruction) {
				n++
				if n == 5 {
					m.cpu.RequestStop()
				}
			}))
			m.arm(0, 0xEAFFFFFE)

			consumed, err := m.cpu.Run(1000)
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed).To(Equal(uint64(15)))
		})

		It("should take a pending interrupt before the next fetch", func() {
			m.reg.CPSR.I = false
			m.irq.Raise()
			_, err := m.cpu.Run(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.reg.CPSR.Mode).To(Equal(emu.ModeIRQ))
			Expect(m.reg.PC()).To(Equal(uint32(0x18)))
		})

		It("should use the configured costs", func() {
			config := latency.DefaultTimingConfig()
			config.BranchLatency = 10
			m = newMachine(emu.WithLatencyTable(latency.NewTableWithConfig(config)))
			m.arm(0, 0xEAFFFFFE)

			consumed, err := m.cpu.Run(25)
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed).To(Equal(uint64(30)))
		})
	})

	Describe("Halt", func() {
		var m *machine

		BeforeEach(func() {
			m = newMachine()
			m.arm(0x100, 0xE2800001) // add r0, r0, #1
			m.reg.CPSR.I = false
		})

		It("should idle for the whole budget", func() {
			m.cpu.Halt()
			consumed, err := m.cpu.Run(500)
			Expect(err).NotTo(HaveOccurred())
			Expect(consumed).To(Equal(uint64(500)))
			Expect(m.reg.PC()).To(Equal(uint32(0x100)))
			Expect(m.reg.Get(0)).To(BeZero())
			Expect(m.cpu.Stats().HaltedCycles).To(Equal(uint64(500)))
		})

		It("should wake on an interrupt", func() {
			m.cpu.Halt()
			_, _ = m.cpu.Run(10)
			m.irq.Raise()

			res := m.step()
			Expect(res.Exception).To(Equal(emu.ExceptionIRQ))
			Expect(m.cpu.Halted()).To(BeFalse())
		})

		It("should wake without the handler when interrupts are masked", func() {
			m.reg.CPSR.I = true
			m.cpu.Halt()
			m.irq.Raise()

			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(1)))
		})

		It("should report idle steps", func() {
			m.cpu.Halt()
			res := m.step()
			Expect(res.Halted).To(BeTrue())
			Expect(res.Cycles).To(Equal(uint64(1)))
		})
	})

	Describe("decode cache", func() {
		It("should reuse decodes in a loop", func() {
			m := newMachine(emu.WithDecodeCache(cache.DefaultConfig()))
			m.arm(0, 0xE2800001, 0xEAFFFFFD) // add r0, r0, #1; b 0

			_, err := m.cpu.Run(100)
			Expect(err).NotTo(HaveOccurred())

			stats := m.cpu.DecodeCache().Stats()
			Expect(stats.Misses).To(Equal(uint64(2)))
			Expect(stats.Hits).To(BeNumerically(">", 0))
		})

		It("should notice code that was rewritten", func() {
			m := newMachine(emu.WithDecodeCache(cache.DefaultConfig()))
			m.arm(0, 0xE3A00001) // mov r0, #1
			m.step()

			m.arm(0, 0xE3A00002) // mov r0, #2
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(2)))
		})

		It("should agree with uncached execution", func() {
			program := []uint32{
				0xE3A00005, // mov r0, #5
				0xE3A01000, // mov r1, #0
				0xE0811000, // add r1, r1, r0
				0xE2500001, // subs r0, r0, #1
				0x1AFFFFFC, // bne 8
				0xEAFFFFFE, // b .
			}
			plain := newMachine()
			cached := newMachine(emu.WithDecodeCache(cache.Config{Entries: 4, Associativity: 2}))
			plain.arm(0, program...)
			cached.arm(0, program...)

			_, _ = plain.cpu.Run(200)
			_, _ = cached.cpu.Run(200)

			Expect(plain.reg.Get(1)).To(Equal(uint32(15)))
			Expect(cmp.Diff(plain.cpu.State(), cached.cpu.State())).To(BeEmpty())
		})
	})

	Describe("Stats", func() {
		It("should count instructions and skips", func() {
			m := newMachine()
			m.arm(0, 0x03A00001, 0xE3A00001) // moveq r0, #1; mov r0, #1
			m.step()
			m.step()

			stats := m.cpu.Stats()
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(stats.Skipped).To(Equal(uint64(1)))
			Expect(stats.Cycles).To(Equal(uint64(2)))
		})

		It("should count executed memory operations and branches", func() {
			m := newMachine()
			m.arm(0,
				0xE5910000, // ldr r0, [r1]
				0x05910000, // ldreq r0, [r1]
				0xEA000000, // b 0x10
			)
			m.step()
			m.step()
			m.step()

			stats := m.cpu.Stats()
			Expect(stats.MemoryOps).To(Equal(uint64(1)))
			Expect(stats.Branches).To(Equal(uint64(1)))
			Expect(m.reg.PC()).To(Equal(uint32(0x10)))
		})
	})

	Describe("trace hook", func() {
		It("should see every executed address", func() {
			var addrs []uint32
			m := newMachine(emu.WithTraceHook(func(addr uint32, _ insts.Instruction) {
				addrs = append(addrs, addr)
			}))
			m.arm(0, 0xE1A00000, 0xE1A00000) // nop; nop
			m.step()
			m.step()
			Expect(addrs).To(Equal([]uint32{0, 4}))
		})
	})

	Describe("16-bit execution", func() {
		var m *machine

		BeforeEach(func() {
			m = newMachine()
		})

		It("should shift by a register using the standalone rule", func() {
			m.thumb(0x100, 0x4088) // lsls r0, r1
			m.reg.Set(0, 0x80000001)
			m.reg.Set(1, 32)
			m.step()
			Expect(m.reg.Get(0)).To(BeZero())
			Expect(m.reg.CPSR.C).To(BeTrue())
		})

		It("should negate", func() {
			m.thumb(0x100, 0x4248) // negs r0, r1
			m.reg.Set(1, 1)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xFFFFFFFF)))
			Expect(m.reg.CPSR.C).To(BeFalse())
		})

		It("should load PC-relative from a word-aligned base", func() {
			m.mem.Write32(0x108, 0xDEADBEEF)
			m.thumb(0x102, 0x4801) // ldr r0, [pc, #4]
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0xDEADBEEF)))
		})

		It("should form a PC-relative address", func() {
			m.thumb(0x102, 0xA001) // add r0, pc, #4
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x108)))
		})

		It("should push and pop through the link register", func() {
			m.thumb(0x100, 0xB501, 0xBD01) // push {r0, lr}; pop {r0, pc}
			m.reg.Set(13, 0x3000)
			m.reg.Set(0, 0x42)
			m.reg.Set(14, 0x201)

			m.step()
			Expect(m.reg.Get(13)).To(Equal(uint32(0x2FF8)))
			Expect(m.mem.Read32(0x2FFC)).To(Equal(uint32(0x201)))

			m.reg.Set(0, 0)
			m.step()
			Expect(m.reg.Get(0)).To(Equal(uint32(0x42)))
			Expect(m.reg.Get(13)).To(Equal(uint32(0x3000)))
			Expect(m.reg.PC()).To(Equal(uint32(0x200)))
			Expect(m.reg.CPSR.T).To(BeTrue())
		})

		It("should take the undefined exception", func() {
			m.thumb(0x100, 0xDE00)
			res := m.step()
			Expect(res.Exception).To(Equal(emu.ExceptionUndefined))
			Expect(m.reg.Get(14)).To(Equal(uint32(0x102)))
		})
	})

	Describe("coprocessor instructions", func() {
		It("should have no effect beyond the PC", func() {
			m := newMachine()
			m.arm(0, 0xEE000000) // cdp
			before := m.reg.Snapshot()
			res := m.step()
			Expect(res.Raised).To(BeFalse())
			after := m.reg.Snapshot()
			Expect(after.R[15]).To(Equal(uint32(4)))
			after.R[15] = 0
			Expect(after).To(Equal(before))
		})
	})
})
