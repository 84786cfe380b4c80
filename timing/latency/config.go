package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// TimingConfig holds the cycle cost of each instruction class. The model is a
// fixed per-class approximation of ARM7TDMI timing; it does not track wait
// states or sequential/non-sequential accesses.
type TimingConfig struct {
	// DataProcessingLatency is the cost of a data processing instruction.
	// Default: 1 cycle.
	DataProcessingLatency uint64 `json:"data_processing_latency" yaml:"data_processing_latency"`

	// RegisterShiftPenalty is added when operand 2 is shifted by a register.
	// Default: 1 cycle.
	RegisterShiftPenalty uint64 `json:"register_shift_penalty" yaml:"register_shift_penalty"`

	// PipelineRefillPenalty is added when a data processing instruction or a
	// load writes r15. Default: 2 cycles.
	PipelineRefillPenalty uint64 `json:"pipeline_refill_penalty" yaml:"pipeline_refill_penalty"`

	// PSRTransferLatency is the cost of MRS and MSR. Default: 1 cycle.
	PSRTransferLatency uint64 `json:"psr_transfer_latency" yaml:"psr_transfer_latency"`

	// MultiplyLatency is the cost of MUL and MLA. Default: 4 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// MultiplyLongLatency is the cost of the 64-bit multiplies. Default: 5
	// cycles.
	MultiplyLongLatency uint64 `json:"multiply_long_latency" yaml:"multiply_long_latency"`

	// LoadLatency is the cost of a single or halfword load. Default: 3 cycles.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the cost of a single or halfword store. Default: 2
	// cycles.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// SwapLatency is the cost of SWP and SWPB. Default: 4 cycles.
	SwapLatency uint64 `json:"swap_latency" yaml:"swap_latency"`

	// LoadMultipleBase is the fixed part of an LDM. Default: 2 cycles.
	LoadMultipleBase uint64 `json:"load_multiple_base" yaml:"load_multiple_base"`

	// StoreMultipleBase is the fixed part of an STM. Default: 1 cycle.
	StoreMultipleBase uint64 `json:"store_multiple_base" yaml:"store_multiple_base"`

	// PerRegisterLatency is added for each register a block transfer moves.
	// Default: 1 cycle.
	PerRegisterLatency uint64 `json:"per_register_latency" yaml:"per_register_latency"`

	// BranchLatency is the cost of B, BL, BX and the second half of a 16-bit
	// BL, refill included. Default: 3 cycles.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// ExceptionLatency is the cost of taking an exception, whether raised by
	// SWI, an undefined opcode or the interrupt line. A SWI serviced on the
	// host costs the same. Default: 3 cycles.
	ExceptionLatency uint64 `json:"exception_latency" yaml:"exception_latency"`

	// CoprocessorLatency is the cost of a coprocessor instruction, which has
	// no effect on this core. Default: 1 cycle.
	CoprocessorLatency uint64 `json:"coprocessor_latency" yaml:"coprocessor_latency"`

	// ConditionFailedLatency is the cost of an instruction whose condition
	// does not pass. Default: 1 cycle (the fetch).
	ConditionFailedLatency uint64 `json:"condition_failed_latency" yaml:"condition_failed_latency"`
}

// DefaultTimingConfig returns a TimingConfig with ARM7TDMI-like defaults.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		DataProcessingLatency:  1,
		RegisterShiftPenalty:   1,
		PipelineRefillPenalty:  2,
		PSRTransferLatency:     1,
		MultiplyLatency:        4,
		MultiplyLongLatency:    5,
		LoadLatency:            3,
		StoreLatency:           2,
		SwapLatency:            4,
		LoadMultipleBase:       2,
		StoreMultipleBase:      1,
		PerRegisterLatency:     1,
		BranchLatency:          3,
		ExceptionLatency:       3,
		CoprocessorLatency:     1,
		ConditionFailedLatency: 1,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads a TimingConfig from a JSON or YAML file, chosen by
// extension. Fields missing from the file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file, chosen by
// extension.
func (c *TimingConfig) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that every cost is at least one cycle, so that each
// instruction advances the clock.
func (c *TimingConfig) Validate() error {
	for _, f := range []struct {
		name  string
		value uint64
	}{
		{"data_processing_latency", c.DataProcessingLatency},
		{"psr_transfer_latency", c.PSRTransferLatency},
		{"multiply_latency", c.MultiplyLatency},
		{"multiply_long_latency", c.MultiplyLongLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"swap_latency", c.SwapLatency},
		{"load_multiple_base", c.LoadMultipleBase},
		{"store_multiple_base", c.StoreMultipleBase},
		{"branch_latency", c.BranchLatency},
		{"exception_latency", c.ExceptionLatency},
		{"coprocessor_latency", c.CoprocessorLatency},
		{"condition_failed_latency", c.ConditionFailedLatency},
	} {
		if f.value == 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
