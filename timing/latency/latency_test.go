package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/timing/latency"
)

var _ = Describe("Latency", func() {
	var (
		table   *latency.Table
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		table = latency.NewTable()
		decoder = insts.NewDecoder()
	})

	arm := func(word uint32) *insts.Instruction {
		inst := decoder.Decode(word, false)
		return &inst
	}

	thumb := func(half uint16) *insts.Instruction {
		inst := decoder.Decode(uint32(half), true)
		return &inst
	}

	Describe("Default Timing Values", func() {
		It("should charge one cycle for a skipped instruction", func() {
			Expect(table.ConditionFailedLatency()).To(Equal(uint64(1)))
		})

		It("should charge the exception cost for interrupt entry", func() {
			Expect(table.ExceptionLatency()).To(Equal(uint64(3)))
		})
	})

	DescribeTable("instruction costs",
		func(word uint32, cycles int) {
			Expect(table.GetLatency(arm(word))).To(Equal(uint64(cycles)))
		},
		Entry("add r0, r1, r2", uint32(0xE0810002), 1),
		Entry("add r0, r1, r2, lsl r3", uint32(0xE0810312), 2),
		Entry("mov pc, lr", uint32(0xE1A0F00E), 3),
		Entry("cmp r0, #0", uint32(0xE3500000), 1),
		Entry("mrs r0, cpsr", uint32(0xE10F0000), 1),
		Entry("mul r0, r1, r2", uint32(0xE0000291), 4),
		Entry("umull r0, r1, r2, r3", uint32(0xE0810392), 5),
		Entry("swp r0, r1, [r2]", uint32(0xE1020091), 4),
		Entry("ldr r0, [r1]", uint32(0xE5910000), 3),
		Entry("ldr pc, [r1]", uint32(0xE591F000), 5),
		Entry("str r0, [r1]", uint32(0xE5810000), 2),
		Entry("ldmia r0, {r1-r3}", uint32(0xE890000E), 5),
		Entry("ldmia r0, {r1-r3, pc}", uint32(0xE890800E), 8),
		Entry("stmdb sp!, {r4, lr}", uint32(0xE92D4010), 3),
		Entry("b", uint32(0xEA000000), 3),
		Entry("bx lr", uint32(0xE12FFF1E), 3),
		Entry("swi 0", uint32(0xEF000000), 3),
		Entry("cdp", uint32(0xEE000000), 1),
		Entry("undefined", uint32(0xE7F000F0), 3),
	)

	Describe("16-bit long branch with link", func() {
		It("should charge the first half like data processing", func() {
			Expect(table.GetLatency(thumb(0xF000))).To(Equal(uint64(1)))
		})

		It("should charge the second half like a branch", func() {
			Expect(table.GetLatency(thumb(0xF800))).To(Equal(uint64(3)))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should detect memory operations", func() {
			Expect(table.IsMemoryOp(arm(0xE5910000))).To(BeTrue())
			Expect(table.IsMemoryOp(arm(0xE92D4010))).To(BeTrue())
			Expect(table.IsMemoryOp(arm(0xE1020091))).To(BeTrue())
			Expect(table.IsMemoryOp(arm(0xE0810002))).To(BeFalse())
		})

		It("should detect branch operations", func() {
			Expect(table.IsBranchOp(arm(0xEA000000))).To(BeTrue())
			Expect(table.IsBranchOp(arm(0xE12FFF1E))).To(BeTrue())
			Expect(table.IsBranchOp(thumb(0xF000))).To(BeFalse())
			Expect(table.IsBranchOp(thumb(0xF800))).To(BeTrue())
			Expect(table.IsBranchOp(arm(0xE0810002))).To(BeFalse())
		})
	})

	Describe("Nil Instruction Handling", func() {
		It("should return 1 for nil instruction", func() {
			Expect(table.GetLatency(nil)).To(Equal(uint64(1)))
		})

		It("should return false for nil instruction checks", func() {
			Expect(table.IsMemoryOp(nil)).To(BeFalse())
			Expect(table.IsBranchOp(nil)).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := latency.DefaultTimingConfig()
			config.LoadLatency = 7
			config.PerRegisterLatency = 2
			config.LoadMultipleBase = 1
			custom := latency.NewTableWithConfig(config)

			Expect(custom.GetLatency(arm(0xE5910000))).To(Equal(uint64(7)))
			Expect(custom.GetLatency(arm(0xE890000E))).To(Equal(uint64(7)))
			Expect(custom.Config()).To(Equal(config))
		})

		It("should not see later changes to the config", func() {
			config := latency.DefaultTimingConfig()
			table := latency.NewTableWithConfig(config)

			config.LoadLatency = 9

			Expect(table.GetLatency(arm(0xE5910000))).To(Equal(uint64(3)))
			Expect(table.Config()).NotTo(BeIdenticalTo(config))
		})

		It("should fall back to the defaults for a nil config", func() {
			table := latency.NewTableWithConfig(nil)

			Expect(table.Config()).To(Equal(latency.DefaultTimingConfig()))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			Expect(latency.DefaultTimingConfig().Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero data processing latency", func() {
			config := latency.DefaultTimingConfig()
			config.DataProcessingLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("data_processing_latency")))
		})

		It("should reject zero condition failed latency", func() {
			config := latency.DefaultTimingConfig()
			config.ConditionFailedLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("condition_failed_latency")))
		})

		It("should accept zero penalties", func() {
			config := latency.DefaultTimingConfig()
			config.RegisterShiftPenalty = 0
			config.PipelineRefillPenalty = 0
			config.PerRegisterLatency = 0
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()
			clone.MultiplyLatency = 100

			Expect(original.MultiplyLatency).To(Equal(uint64(4)))
			Expect(clone.MultiplyLatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
		})

		It("should save and load a JSON config", func() {
			original := latency.DefaultTimingConfig()
			original.DataProcessingLatency = 5
			original.LoadLatency = 10

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should save and load a YAML config", func() {
			original := latency.DefaultTimingConfig()
			original.BranchLatency = 9

			path := filepath.Join(tempDir, "timing.yaml")
			Expect(original.SaveConfig(path)).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("branch_latency: 9"))

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should keep defaults for fields missing from the file", func() {
			path := filepath.Join(tempDir, "partial.yml")
			Expect(os.WriteFile(path, []byte("swap_latency: 6\n"), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.SwapLatency).To(Equal(uint64(6)))
			Expect(loaded.MultiplyLatency).To(Equal(uint64(4)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid YAML", func() {
			path := filepath.Join(tempDir, "invalid.yaml")
			err := os.WriteFile(path, []byte("load_latency: [\n"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
