package benchmarks

import (
	"github.com/sarchlab/gbasim/emu"
	"github.com/sarchlab/gbasim/insts"
)

// Work RAM windows used by the memory benchmarks.
const (
	iwramBase uint32 = 0x03000000
	ewramBase uint32 = 0x02000000
)

// halt ends every benchmark; the harness services it on the host.
var (
	halt      = EncodeSWI(emu.SWIHalt)
	thumbHalt = ThumbSWI(uint8(emu.SWIHalt))
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a single instruction class of the cost model and leaves a known
// value in r0.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		countLoop(),
		multiplyAccumulate(),
		blockCopy(),
		functionCalls(),
		conditionalSkip(),
		thumbLoop(),
		biosDivide(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		countLoop(),
		blockCopy(),
		thumbLoop(),
	}
}

func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		r := uint8(i % 5)
		program = append(program, EncodeADDImm(r, r, 1, false))
	}
	program = append(program, halt)

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 ADDs rotating over five registers - single-cycle ALU cost",
		Program:     BuildProgram(program...),
		ExpectedR0:  4,
	}
}

func dependencyChain() Benchmark {
	program := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		program = append(program, EncodeADDImm(0, 0, 1, false))
	}
	program = append(program, halt)

	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDs on r0 - no interlock cost on this core",
		Program:     BuildProgram(program...),
		ExpectedR0:  20,
	}
}

func countLoop() Benchmark {
	return Benchmark{
		Name:        "count_loop",
		Description: "100 iterations of ADD/SUBS/BNE - taken branch refill",
		Program: BuildProgram(
			EncodeMOVImm(0, 0),
			EncodeMOVImm(1, 100),
			EncodeADDImm(0, 0, 2, false), // loop:
			EncodeSUBImm(1, 1, 1, true),
			EncodeB(insts.CondNE, -2),
			halt,
		),
		ExpectedR0: 200,
	}
}

func multiplyAccumulate() Benchmark {
	return Benchmark{
		Name:        "multiply_accumulate",
		Description: "Sum of squares 1..10 with MLA",
		Program: BuildProgram(
			EncodeMOVImm(0, 0),
			EncodeMOVImm(1, 10),
			EncodeMLA(0, 1, 1, 0), // loop:
			EncodeSUBImm(1, 1, 1, true),
			EncodeB(insts.CondNE, -2),
			halt,
		),
		ExpectedR0: 385,
	}
}

func blockCopy() Benchmark {
	const words = 32

	return Benchmark{
		Name:        "block_copy",
		Description: "Copy 32 words from IWRAM to EWRAM with 8-register LDM/STM",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			src := make([]uint32, words)
			for i := range src {
				src[i] = uint32(i + 1)
			}
			memory.LoadWords(iwramBase, src...)
		},
		Program: BuildProgram(
			EncodeMOVImm(2, iwramBase),
			EncodeMOVImm(3, ewramBase),
			EncodeMOVImm(1, words/8),
			EncodeLDMIA(2, 0x0FF0), // loop: r4-r11
			EncodeSTMIA(3, 0x0FF0),
			EncodeSUBImm(1, 1, 1, true),
			EncodeB(insts.CondNE, -3),
			EncodeLDRImm(0, 3, -4),
			halt,
		),
		ExpectedR0: words,
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 BL/BX LR round trips",
		Program: BuildProgram(
			EncodeMOVImm(0, 0),
			EncodeMOVImm(4, 5),
			EncodeBL(4), // loop: call add3
			EncodeSUBImm(4, 4, 1, true),
			EncodeB(insts.CondNE, -2),
			halt,
			EncodeADDImm(0, 0, 3, false), // add3:
			EncodeBXLR(),
		),
		ExpectedR0: 15,
	}
}

func conditionalSkip() Benchmark {
	program := []uint32{
		EncodeMOVImm(0, 1),
		EncodeCMPImm(0, 1),
	}
	for i := 0; i < 10; i++ {
		program = append(program, EncodeADDImmCond(insts.CondNE, 0, 0, 1))
	}
	program = append(program, halt)

	return Benchmark{
		Name:        "conditional_skip",
		Description: "10 ADDNE with Z set - condition failed cost",
		Program:     BuildProgram(program...),
		ExpectedR0:  1,
	}
}

func thumbLoop() Benchmark {
	return Benchmark{
		Name:        "thumb_loop",
		Description: "50 iterations of a 16-bit ADDS/SUBS/BNE loop",
		Thumb:       true,
		Program: BuildThumbProgram(
			ThumbMOVImm(0, 0),
			ThumbMOVImm(1, 50),
			ThumbADDImm(0, 3), // loop:
			ThumbSUBImm(1, 1),
			ThumbBCond(insts.CondNE, -2),
			thumbHalt,
		),
		ExpectedR0: 150,
	}
}

func biosDivide() Benchmark {
	return Benchmark{
		Name:        "bios_divide",
		Description: "BIOS Div serviced on the host",
		Program: BuildProgram(
			EncodeMOVImm(0, 200),
			EncodeMOVImm(1, 7),
			EncodeSWI(emu.SWIDiv),
			halt,
		),
		ExpectedR0: 28,
	}
}
