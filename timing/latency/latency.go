// Package latency provides the per-class cycle cost model used by the cycle
// clock.
//
// Every instruction is charged a fixed cost from its family, with small
// additions for register-specified shifts, r15 writes and block transfer
// length. The values can be configured via TimingConfig.
package latency

import (
	"math/bits"

	"github.com/sarchlab/gbasim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing
// configuration. The table keeps its own copy, so later changes to config do
// not affect it. A nil config selects the defaults.
func NewTableWithConfig(config *TimingConfig) *Table {
	if config == nil {
		return NewTable()
	}
	return &Table{
		config: config.Clone(),
	}
}

// GetLatency returns the cost in cycles of executing the given instruction
// whose condition passed.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}
	c := t.config

	switch inst.Format {
	case insts.FormatDataProcessing:
		cycles := c.DataProcessingLatency
		if inst.ShiftByReg {
			cycles += c.RegisterShiftPenalty
		}
		if inst.WritesPC() {
			cycles += c.PipelineRefillPenalty
		}
		return cycles

	case insts.FormatPSRTransfer:
		return c.PSRTransferLatency

	case insts.FormatMultiply:
		return c.MultiplyLatency

	case insts.FormatMultiplyLong:
		return c.MultiplyLongLatency

	case insts.FormatSingleDataSwap:
		return c.SwapLatency

	case insts.FormatSingleDataTransfer, insts.FormatHalfwordTransfer:
		if !inst.Load {
			return c.StoreLatency
		}
		if inst.WritesPC() {
			return c.LoadLatency + c.PipelineRefillPenalty
		}
		return c.LoadLatency

	case insts.FormatBlockDataTransfer:
		n := uint64(bits.OnesCount16(inst.RegList))
		if n == 0 {
			n = 1
		}
		if !inst.Load {
			return c.StoreMultipleBase + n*c.PerRegisterLatency
		}
		cycles := c.LoadMultipleBase + n*c.PerRegisterLatency
		if inst.WritesPC() {
			cycles += c.PipelineRefillPenalty
		}
		return cycles

	case insts.FormatBranch, insts.FormatBranchExchange:
		return c.BranchLatency

	case insts.FormatLongBranchLink:
		if inst.HighHalf {
			return c.BranchLatency
		}
		return c.DataProcessingLatency

	case insts.FormatSoftwareInterrupt, insts.FormatUndefined:
		return c.ExceptionLatency

	case insts.FormatCoprocessor:
		return c.CoprocessorLatency
	}

	return 1
}

// ConditionFailedLatency returns the cost of an instruction that is skipped
// because its condition failed.
func (t *Table) ConditionFailedLatency() uint64 {
	return t.config.ConditionFailedLatency
}

// ExceptionLatency returns the cost of entering an exception at an
// instruction boundary, as interrupts do.
func (t *Table) ExceptionLatency() uint64 {
	return t.config.ExceptionLatency
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Format {
	case insts.FormatSingleDataTransfer, insts.FormatHalfwordTransfer,
		insts.FormatBlockDataTransfer, insts.FormatSingleDataSwap:
		return true
	}
	return false
}

// IsBranchOp returns true if the instruction always redirects the PC.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Format {
	case insts.FormatBranch, insts.FormatBranchExchange:
		return true
	case insts.FormatLongBranchLink:
		return inst.HighHalf
	}
	return false
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
