// Package emu provides functional ARM7TDMI emulation.
//
// A CPU fetches from a host-supplied Bus, executes both the 32-bit ARM and the
// 16-bit Thumb encodings, takes exceptions through the architectural vectors
// and charges every instruction a cycle cost from a latency table. The host
// drives it in cycle budgets with Run.
package emu

import (
	"errors"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/insts"
	"github.com/sarchlab/gbasim/insts/cache"
	"github.com/sarchlab/gbasim/timing/latency"
)

var (
	// ErrNotReset is returned when the CPU is run before Reset.
	ErrNotReset = errors.New("cpu has not been reset")
	// ErrNoBus is returned by Reset when no bus was attached.
	ErrNoBus = errors.New("no bus attached")
)

// Boot addresses.
const (
	// ResetVector is where execution starts after Reset.
	ResetVector uint32 = 0x00000000
	// CartridgeEntry is where a direct boot starts executing.
	CartridgeEntry uint32 = 0x08000000

	// Stack tops a BIOS leaves behind before jumping to the cartridge.
	DirectBootSPUser       uint32 = 0x03007F00
	DirectBootSPIRQ        uint32 = 0x03007FA0
	DirectBootSPSupervisor uint32 = 0x03007FE0
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Address is the address the instruction was fetched from, or the
	// interrupted address for an interrupt entry.
	Address uint32

	// Inst is the decoded instruction. Zero for interrupt entries and idle
	// steps.
	Inst insts.Instruction

	// Cycles is the cost charged.
	Cycles uint64

	// Skipped is true if the condition failed.
	Skipped bool

	// Exception is valid when Raised is set.
	Exception ExceptionKind
	Raised    bool

	// Halted is true if the core idled waiting for an interrupt.
	Halted bool

	// Err is set if the CPU could not step.
	Err error
}

// TraceFunc observes every executed instruction before it runs.
type TraceFunc func(addr uint32, inst insts.Instruction)

// Stats holds execution counters since the last Reset.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	Skipped      uint64
	HaltedCycles uint64

	// MemoryOps and Branches count executed loads, stores and
	// unconditional redirects of the PC.
	MemoryOps  uint64
	Branches   uint64
	Exceptions [NumExceptionKinds]uint64
}

// CPU executes ARM7TDMI instructions functionally.
type CPU struct {
	regFile     *RegFile
	bus         Bus
	irq         InterruptLine
	decoder     *insts.Decoder
	decodeCache *cache.Cache
	latency     *latency.Table
	swiHandler  SWIHandler
	trace       TraceFunc
	log         logr.Logger

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit
	exceptions *ExceptionUnit

	directBoot bool

	// Execution state
	ready  bool
	halted bool
	stop   atomic.Bool
	stats  Stats
}

// CPUOption is a functional option for configuring the CPU.
type CPUOption func(*CPU)

// WithBus attaches the memory system.
func WithBus(bus Bus) CPUOption {
	return func(c *CPU) {
		c.bus = bus
	}
}

// WithInterruptLine attaches the interrupt controller output polled before
// every instruction.
func WithInterruptLine(line InterruptLine) CPUOption {
	return func(c *CPU) {
		c.irq = line
	}
}

// WithLatencyTable sets the cycle cost model.
func WithLatencyTable(table *latency.Table) CPUOption {
	return func(c *CPU) {
		c.latency = table
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logr.Logger) CPUOption {
	return func(c *CPU) {
		c.log = log
	}
}

// WithDecodeCache memoizes decodes per fetch address.
func WithDecodeCache(config cache.Config) CPUOption {
	return func(c *CPU) {
		c.decodeCache = cache.New(config)
	}
}

// WithTraceHook installs a hook called for every executed instruction.
func WithTraceHook(fn TraceFunc) CPUOption {
	return func(c *CPU) {
		c.trace = fn
	}
}

// WithSWIHandler services software interrupts on the host instead of the
// vector, for running without a BIOS image.
func WithSWIHandler(handler SWIHandler) CPUOption {
	return func(c *CPU) {
		c.swiHandler = handler
	}
}

// WithDirectBoot makes Reset skip the BIOS and start the cartridge with the
// register state the BIOS would leave.
func WithDirectBoot() CPUOption {
	return func(c *CPU) {
		c.directBoot = true
	}
}

// NewCPU creates a new ARM7TDMI core. It must be Reset before running.
func NewCPU(opts ...CPUOption) *CPU {
	regFile := NewRegFile()

	c := &CPU{
		regFile: regFile,
		decoder: insts.NewDecoder(),
		latency: latency.NewTable(),
		log:     logr.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	// Create execution units
	c.alu = NewALU(regFile, c.log)
	c.lsu = NewLoadStoreUnit(regFile, c.bus)
	c.branchUnit = NewBranchUnit(regFile)
	c.exceptions = NewExceptionUnit(regFile, c.log)

	return c
}

// RegFile returns the CPU's register file.
func (c *CPU) RegFile() *RegFile {
	return c.regFile
}

// Bus returns the attached bus.
func (c *CPU) Bus() Bus {
	return c.bus
}

// DecodeCache returns the decode cache, or nil if none is configured.
func (c *CPU) DecodeCache() *cache.Cache {
	return c.decodeCache
}

// Stats returns the execution counters.
func (c *CPU) Stats() Stats {
	return c.stats
}

// State returns a snapshot of the visible registers.
func (c *CPU) State() State {
	return c.regFile.Snapshot()
}

// Halted reports whether the core is waiting for an interrupt.
func (c *CPU) Halted() bool {
	return c.halted
}

// Reset puts the core in its power-on state: PC at the reset vector,
// Supervisor mode, 32-bit encoding, both interrupts masked. With direct boot
// the core instead starts at the cartridge in System mode.
func (c *CPU) Reset() error {
	if c.bus == nil {
		return ErrNoBus
	}

	c.regFile.Reset()
	c.halted = false
	c.stop.Store(false)
	c.stats = Stats{}
	if c.decodeCache != nil {
		c.decodeCache.Reset()
	}

	if c.directBoot {
		c.bootCartridge()
	}

	c.ready = true
	c.log.V(1).Info("reset", "pc", c.regFile.PC(), "mode", c.regFile.CPSR.Mode)
	return nil
}

func (c *CPU) bootCartridge() {
	r := c.regFile
	_ = r.SetBanked(ModeSupervisor, 13, DirectBootSPSupervisor)
	_ = r.SetBanked(ModeIRQ, 13, DirectBootSPIRQ)
	_ = r.SetBanked(ModeSystem, 13, DirectBootSPUser)
	r.CPSR = PSR{Mode: ModeSystem}
	r.SetPC(CartridgeEntry)
}

// RequestStop asks a running Run to return at the next instruction
// boundary. Safe to call from any goroutine.
func (c *CPU) RequestStop() {
	c.stop.Store(true)
}

// Halt idles the core until the interrupt line is pending. The halted time is
// charged to the cycle budget. Intended for the bus collaborator that owns the
// halt control register.
func (c *CPU) Halt() {
	c.halted = true
	c.log.V(1).Info("halt", "pc", c.regFile.PC())
}

// RaiseException takes an exception at the current instruction boundary.
func (c *CPU) RaiseException(kind ExceptionKind) error {
	if !c.ready {
		return ErrNotReset
	}
	c.takeException(kind, c.regFile.PC())
	return nil
}

// ReturnFromException leaves the exception taken into the current mode.
func (c *CPU) ReturnFromException() error {
	if !c.ready {
		return ErrNotReset
	}
	return c.exceptions.Return()
}

func (c *CPU) takeException(kind ExceptionKind, addr uint32) {
	c.exceptions.Enter(kind, addr)
	c.stats.Exceptions[kind]++
	c.halted = false
}

func (c *CPU) irqPending() bool {
	return c.irq != nil && c.irq.IRQPending()
}

// Step executes exactly one instruction, or takes a pending interrupt.
func (c *CPU) Step() StepResult {
	if !c.ready {
		return StepResult{Err: ErrNotReset}
	}
	return c.step()
}

// Run executes instructions until at least budget cycles have been consumed,
// and returns the number consumed. The overshoot is at most one instruction.
// Fewer cycles are returned only when a stop was requested.
func (c *CPU) Run(budget uint64) (uint64, error) {
	if !c.ready {
		return 0, ErrNotReset
	}

	var consumed uint64
	for consumed < budget {
		if c.stop.Swap(false) {
			c.log.V(2).Info("stop requested", "pc", c.regFile.PC(), "consumed", consumed)
			break
		}

		if c.halted && !c.irqPending() {
			idle := budget - consumed
			c.stats.HaltedCycles += idle
			c.stats.Cycles += idle
			consumed = budget
			break
		}

		consumed += c.step().Cycles
	}

	return consumed, nil
}

func (c *CPU) step() StepResult {
	r := c.regFile

	if c.halted {
		if !c.irqPending() {
			c.stats.HaltedCycles++
			c.stats.Cycles++
			return StepResult{Address: r.PC(), Cycles: 1, Halted: true}
		}
		c.halted = false
	}

	addr := r.PC()

	if c.irqPending() && !r.CPSR.I {
		c.takeException(ExceptionIRQ, addr)
		cycles := c.latency.ExceptionLatency()
		c.stats.Cycles += cycles
		return StepResult{
			Address:   addr,
			Cycles:    cycles,
			Exception: ExceptionIRQ,
			Raised:    true,
		}
	}

	inst := c.fetch(addr)
	if c.trace != nil {
		c.trace(addr, inst)
	}

	result := StepResult{Address: addr, Inst: inst}
	c.stats.Instructions++
	r.branched = false

	if !c.branchUnit.CheckCondition(inst.Cond) {
		result.Skipped = true
		result.Cycles = c.latency.ConditionFailedLatency()
		c.stats.Skipped++
	} else {
		result.Cycles = c.latency.GetLatency(&inst)
		if c.latency.IsMemoryOp(&inst) {
			c.stats.MemoryOps++
		}
		if c.latency.IsBranchOp(&inst) {
			c.stats.Branches++
		}
		result.Exception, result.Raised = c.execute(&inst, addr)
	}

	if !r.branched {
		r.pc = addr + inst.Size()
	}

	c.stats.Cycles += result.Cycles
	return result
}

// fetch reads the opcode at addr and decodes it, through the decode cache if
// one is configured. The bus is always read so fetch side effects happen.
func (c *CPU) fetch(addr uint32) insts.Instruction {
	thumb := c.regFile.CPSR.T

	var opcode uint32
	if thumb {
		opcode = uint32(c.bus.Read16(addr))
	} else {
		opcode = c.bus.Read32(addr)
	}

	if c.decodeCache != nil {
		return c.decodeCache.Decode(c.decoder, addr, opcode, thumb)
	}
	return c.decoder.Decode(opcode, thumb)
}

// execute dispatches a decoded instruction whose condition passed. It
// reports the exception the instruction raised, if any.
func (c *CPU) execute(inst *insts.Instruction, addr uint32) (ExceptionKind, bool) {
	switch inst.Format {
	case insts.FormatDataProcessing:
		c.alu.DataProcessing(inst)
	case insts.FormatPSRTransfer:
		c.alu.PSRTransfer(inst)
	case insts.FormatMultiply:
		c.alu.Multiply(inst)
	case insts.FormatMultiplyLong:
		c.alu.MultiplyLong(inst)
	case insts.FormatSingleDataSwap:
		c.lsu.Swap(inst)
	case insts.FormatBranchExchange:
		c.branchUnit.BX(inst.Rm)
	case insts.FormatHalfwordTransfer:
		c.lsu.HalfwordTransfer(inst)
	case insts.FormatSingleDataTransfer:
		c.lsu.SingleTransfer(inst)
	case insts.FormatBlockDataTransfer:
		c.lsu.BlockTransfer(inst)
	case insts.FormatBranch:
		c.branchUnit.Branch(inst)
	case insts.FormatLongBranchLink:
		c.branchUnit.LongBranchLink(inst)
	case insts.FormatCoprocessor:
		// No coprocessor is attached; the instruction has no effect.
	case insts.FormatSoftwareInterrupt:
		if c.swiHandler != nil && c.swiHandler.HandleSWI(SWINumber(inst), c) {
			return 0, false
		}
		c.takeException(ExceptionSoftwareInterrupt, addr)
		return ExceptionSoftwareInterrupt, true
	default:
		c.log.Info("undefined instruction", "addr", addr, "opcode", inst.Raw, "thumb", inst.Thumb)
		c.takeException(ExceptionUndefined, addr)
		return ExceptionUndefined, true
	}
	return 0, false
}
