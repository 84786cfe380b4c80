// Package insts provides ARM7TDMI instruction definitions and decoding.
package insts

// Op represents an operation within an instruction family.
type Op uint8

// Data-processing opcodes, numbered as in bits [24:21] of the 32-bit encoding.
const (
	OpAND Op = iota
	OpEOR
	OpSUB
	OpRSB
	OpADD
	OpADC
	OpSBC
	OpRSC
	OpTST
	OpTEQ
	OpCMP
	OpCMN
	OpORR
	OpMOV
	OpBIC
	OpMVN
)

// Remaining operations.
const (
	OpUnknown Op = iota + 16
	OpMUL
	OpMLA
	OpUMULL
	OpUMLAL
	OpSMULL
	OpSMLAL
	OpMRS
	OpMSR
	OpSWP
	OpSWPB
	OpBX
	OpB
	OpBL
	OpLDR
	OpSTR
	OpLDRB
	OpSTRB
	OpLDRH
	OpSTRH
	OpLDRSB
	OpLDRSH
	OpLDM
	OpSTM
	OpSWI
	OpCDP
	OpLDC
	OpSTC
	OpMRC
	OpMCR
	OpBLPrefix
	OpBLSuffix
	OpUndefined
)

// IsTest reports whether a data-processing op only updates flags.
func (o Op) IsTest() bool {
	return o >= OpTST && o <= OpCMN
}

// IsLogical reports whether a data-processing op takes its carry from the
// shifter rather than from the adder.
func (o Op) IsLogical() bool {
	switch o {
	case OpAND, OpEOR, OpTST, OpTEQ, OpORR, OpMOV, OpBIC, OpMVN:
		return true
	}
	return false
}

// Format identifies the instruction family that executes a decoded opcode.
type Format uint8

// Instruction families.
const (
	FormatUndefined Format = iota
	FormatDataProcessing
	FormatPSRTransfer
	FormatMultiply
	FormatMultiplyLong
	FormatSingleDataSwap
	FormatBranchExchange
	FormatHalfwordTransfer
	FormatSingleDataTransfer
	FormatBlockDataTransfer
	FormatBranch
	FormatSoftwareInterrupt
	FormatCoprocessor
	FormatLongBranchLink // Thumb BL halves
)

var formatNames = [...]string{
	"undefined", "data-processing", "psr-transfer", "multiply",
	"multiply-long", "swap", "branch-exchange", "halfword-transfer",
	"single-transfer", "block-transfer", "branch", "swi", "coprocessor",
	"long-branch-link",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "invalid"
}

// Cond represents an ARM condition code.
type Cond uint8

// ARM condition codes.
const (
	CondEQ Cond = 0b0000 // Equal (Z == 1)
	CondNE Cond = 0b0001 // Not Equal (Z == 0)
	CondCS Cond = 0b0010 // Carry Set / Unsigned higher or same (C == 1)
	CondCC Cond = 0b0011 // Carry Clear / Unsigned lower (C == 0)
	CondMI Cond = 0b0100 // Minus / Negative (N == 1)
	CondPL Cond = 0b0101 // Plus / Positive or zero (N == 0)
	CondVS Cond = 0b0110 // Overflow (V == 1)
	CondVC Cond = 0b0111 // No overflow (V == 0)
	CondHI Cond = 0b1000 // Unsigned higher (C == 1 && Z == 0)
	CondLS Cond = 0b1001 // Unsigned lower or same (C == 0 || Z == 1)
	CondGE Cond = 0b1010 // Signed greater than or equal (N == V)
	CondLT Cond = 0b1011 // Signed less than (N != V)
	CondGT Cond = 0b1100 // Signed greater than (Z == 0 && N == V)
	CondLE Cond = 0b1101 // Signed less than or equal (Z == 1 || N != V)
	CondAL Cond = 0b1110 // Always
	CondNV Cond = 0b1111 // Never on ARMv4
)

// ShiftType represents a barrel shifter operation.
type ShiftType uint8

// Shift types.
const (
	ShiftLSL ShiftType = 0b00 // Logical shift left
	ShiftLSR ShiftType = 0b01 // Logical shift right
	ShiftASR ShiftType = 0b10 // Arithmetic shift right
	ShiftROR ShiftType = 0b11 // Rotate right (RRX when the immediate amount is 0)
)

// Instruction is a decoded ARM or Thumb opcode.
//
// Thumb opcodes are lowered into the ARM family that has the same semantics,
// so the execution units only ever see ARM-shaped operands. Instructions are
// plain values and are never retained by the core between steps.
type Instruction struct {
	Raw    uint32 // Opcode as fetched
	Thumb  bool   // Decoded from the 16-bit encoding
	Format Format
	Op     Op
	Cond   Cond

	Rd uint8 // Destination (RdLo for long multiplies)
	Rn uint8 // First operand / base (RdHi for long multiplies)
	Rm uint8 // Second operand / offset register
	Rs uint8 // Shift amount register / multiplier

	// Operand 2 / offset
	Immediate   bool   // Operand is Imm rather than a shifted Rm
	Imm         uint32 // Immediate value (already unrotated except for Rotate)
	Rotate      uint8  // Rotate-right amount applied to Imm (data processing)
	ShiftType   ShiftType
	ShiftAmount uint8 // Immediate shift amount
	ShiftByReg  bool  // Shift amount comes from Rs

	SetFlags  bool // S bit
	Pre       bool // P bit: offset applied before the transfer
	Up        bool // U bit: offset added
	WriteBack bool // W bit (implied for post-indexed transfers)
	Load      bool // L bit
	UserBank  bool // S bit on block transfers / SPSR select on PSR transfers
	Accum     bool // MLA / UMLAL / SMLAL
	Signed    bool // SMULL / SMLAL
	AlignPC   bool // Base PC is word aligned (Thumb PC-relative forms)
	HighHalf  bool // Thumb BL second half

	RegList   uint16 // Block transfer register list
	FieldMask uint8  // MSR field mask (c, x, s, f in bits 0..3)

	BranchOffset int32 // Signed byte offset from the biased PC
}

// Size returns the encoding width in bytes.
func (i Instruction) Size() uint32 {
	if i.Thumb {
		return 2
	}
	return 4
}

// WritesPC reports whether executing the instruction can write r15 through a
// register destination.
func (i Instruction) WritesPC() bool {
	switch i.Format {
	case FormatDataProcessing:
		return !i.Op.IsTest() && i.Rd == 15
	case FormatSingleDataTransfer, FormatHalfwordTransfer:
		return i.Load && i.Rd == 15
	case FormatBlockDataTransfer:
		return i.Load && i.RegList&(1<<15) != 0
	case FormatBranch, FormatBranchExchange, FormatSoftwareInterrupt,
		FormatUndefined:
		return true
	case FormatLongBranchLink:
		return i.HighHalf
	}
	return false
}
