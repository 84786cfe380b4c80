package insts

import (
	"fmt"
	"strings"
)

var opNames = map[Op]string{
	OpAND: "and", OpEOR: "eor", OpSUB: "sub", OpRSB: "rsb",
	OpADD: "add", OpADC: "adc", OpSBC: "sbc", OpRSC: "rsc",
	OpTST: "tst", OpTEQ: "teq", OpCMP: "cmp", OpCMN: "cmn",
	OpORR: "orr", OpMOV: "mov", OpBIC: "bic", OpMVN: "mvn",
	OpMUL: "mul", OpMLA: "mla", OpUMULL: "umull", OpUMLAL: "umlal",
	OpSMULL: "smull", OpSMLAL: "smlal", OpMRS: "mrs", OpMSR: "msr",
	OpSWP: "swp", OpSWPB: "swpb", OpBX: "bx", OpB: "b", OpBL: "bl",
	OpLDR: "ldr", OpSTR: "str", OpLDRB: "ldrb", OpSTRB: "strb",
	OpLDRH: "ldrh", OpSTRH: "strh", OpLDRSB: "ldrsb", OpLDRSH: "ldrsh",
	OpLDM: "ldm", OpSTM: "stm", OpSWI: "swi", OpCDP: "cdp",
	OpLDC: "ldc", OpSTC: "stc", OpMRC: "mrc", OpMCR: "mcr",
	OpBLPrefix: "bl.hi", OpBLSuffix: "bl.lo", OpUndefined: "undefined",
}

var condNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

var shiftNames = [4]string{"lsl", "lsr", "asr", "ror"}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op%d", uint8(o))
}

func (c Cond) String() string {
	return condNames[c&0xF]
}

func (s ShiftType) String() string {
	return shiftNames[s&3]
}

// RegName returns the assembler name of a register.
func RegName(r uint8) string {
	switch r {
	case 13:
		return "sp"
	case 14:
		return "lr"
	case 15:
		return "pc"
	}
	return fmt.Sprintf("r%d", r)
}

// String renders the instruction in assembler syntax. Thumb instructions are
// shown in the ARM form they were lowered into.
func (i Instruction) String() string {
	mnemonic := i.Op.String() + i.Cond.String()
	if i.SetFlags && !i.Op.IsTest() {
		mnemonic += "s"
	}

	switch i.Format {
	case FormatDataProcessing:
		return mnemonic + " " + i.dataProcessingOperands()
	case FormatPSRTransfer:
		psr := "cpsr"
		if i.UserBank {
			psr = "spsr"
		}
		if i.Op == OpMRS {
			return fmt.Sprintf("%s %s, %s", mnemonic, RegName(i.Rd), psr)
		}
		return fmt.Sprintf("%s %s_%s, %s", mnemonic, psr, fieldNames(i.FieldMask), i.operand2())
	case FormatMultiply:
		if i.Accum {
			return fmt.Sprintf("%s %s, %s, %s, %s", mnemonic,
				RegName(i.Rd), RegName(i.Rm), RegName(i.Rs), RegName(i.Rn))
		}
		return fmt.Sprintf("%s %s, %s, %s", mnemonic, RegName(i.Rd), RegName(i.Rm), RegName(i.Rs))
	case FormatMultiplyLong:
		return fmt.Sprintf("%s %s, %s, %s, %s", mnemonic,
			RegName(i.Rd), RegName(i.Rn), RegName(i.Rm), RegName(i.Rs))
	case FormatSingleDataSwap:
		return fmt.Sprintf("%s %s, %s, [%s]", mnemonic, RegName(i.Rd), RegName(i.Rm), RegName(i.Rn))
	case FormatBranchExchange:
		return fmt.Sprintf("%s %s", mnemonic, RegName(i.Rm))
	case FormatSingleDataTransfer, FormatHalfwordTransfer:
		return fmt.Sprintf("%s %s, %s", mnemonic, RegName(i.Rd), i.address())
	case FormatBlockDataTransfer:
		return i.blockTransfer(mnemonic)
	case FormatBranch:
		return fmt.Sprintf("%s #%d", mnemonic, i.BranchOffset)
	case FormatLongBranchLink:
		if i.HighHalf {
			return fmt.Sprintf("%s #0x%x", mnemonic, i.Imm)
		}
		return fmt.Sprintf("%s #%d", mnemonic, i.BranchOffset)
	case FormatSoftwareInterrupt:
		return fmt.Sprintf("%s #0x%x", mnemonic, i.Imm)
	case FormatCoprocessor:
		return mnemonic
	}
	return fmt.Sprintf("undefined 0x%08x", i.Raw)
}

func (i Instruction) dataProcessingOperands() string {
	switch {
	case i.Op == OpMOV || i.Op == OpMVN:
		return RegName(i.Rd) + ", " + i.operand2()
	case i.Op.IsTest():
		return RegName(i.Rn) + ", " + i.operand2()
	}
	return RegName(i.Rd) + ", " + RegName(i.Rn) + ", " + i.operand2()
}

func (i Instruction) operand2() string {
	if i.Immediate {
		v := i.Imm>>i.Rotate | i.Imm<<((32-uint32(i.Rotate))&31)
		return fmt.Sprintf("#0x%x", v)
	}
	switch {
	case i.ShiftByReg:
		return fmt.Sprintf("%s, %s %s", RegName(i.Rm), i.ShiftType, RegName(i.Rs))
	case i.ShiftAmount == 0 && i.ShiftType == ShiftLSL:
		return RegName(i.Rm)
	case i.ShiftAmount == 0 && i.ShiftType == ShiftROR:
		return RegName(i.Rm) + ", rrx"
	case i.ShiftAmount == 0:
		return fmt.Sprintf("%s, %s #32", RegName(i.Rm), i.ShiftType)
	}
	return fmt.Sprintf("%s, %s #%d", RegName(i.Rm), i.ShiftType, i.ShiftAmount)
}

func (i Instruction) address() string {
	sign := ""
	if !i.Up {
		sign = "-"
	}

	var offset string
	switch {
	case i.Immediate && i.Imm == 0:
	case i.Immediate:
		offset = fmt.Sprintf(", #%s0x%x", sign, i.Imm)
	case i.ShiftAmount == 0 && i.ShiftType == ShiftLSL:
		offset = ", " + sign + RegName(i.Rm)
	default:
		offset = fmt.Sprintf(", %s%s, %s #%d", sign, RegName(i.Rm), i.ShiftType, i.ShiftAmount)
	}

	if !i.Pre {
		return "[" + RegName(i.Rn) + "]" + offset
	}
	s := "[" + RegName(i.Rn) + offset + "]"
	if i.WriteBack {
		s += "!"
	}
	return s
}

func (i Instruction) blockTransfer(mnemonic string) string {
	mode := [2][2]string{{"da", "ia"}, {"db", "ib"}}[b2i(i.Pre)][b2i(i.Up)]

	var regs []string
	for r := uint8(0); r < 16; r++ {
		if i.RegList&(1<<r) != 0 {
			regs = append(regs, RegName(r))
		}
	}

	base := RegName(i.Rn)
	if i.WriteBack {
		base += "!"
	}
	s := fmt.Sprintf("%s%s %s, {%s}", mnemonic, mode, base, strings.Join(regs, ", "))
	if i.UserBank {
		s += "^"
	}
	return s
}

func fieldNames(mask uint8) string {
	var b strings.Builder
	for bit, name := range []string{"c", "x", "s", "f"} {
		if mask&(1<<bit) != 0 {
			b.WriteString(name)
		}
	}
	return b.String()
}
