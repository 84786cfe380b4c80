// Package cache provides a decoded-instruction cache built on the Akita
// cache directory.
//
// Entries are keyed by fetch address and validated against the opcode that
// was actually fetched, so self-modifying code and bank switching never
// observe a stale decode.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/gbasim/insts"
)

// Config holds decode cache configuration parameters.
type Config struct {
	// Entries is the total number of cached decodes.
	Entries int
	// Associativity (number of ways)
	Associativity int
}

// DefaultConfig returns a cache sized for the hot loops of a typical
// cartridge: 4096 entries, 4-way.
func DefaultConfig() Config {
	return Config{
		Entries:       4096,
		Associativity: 4,
	}
}

// Validate checks that the configuration describes a whole number of sets.
func (c Config) Validate() error {
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0, got %d", c.Associativity)
	}
	if c.Entries <= 0 || c.Entries%c.Associativity != 0 {
		return fmt.Errorf("entries must be a positive multiple of associativity %d, got %d",
			c.Associativity, c.Entries)
	}
	return nil
}

// blockSize is the granularity of a tag: one Thumb halfword.
const blockSize = 2

// Statistics holds decode cache statistics.
type Statistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Stale     uint64 // Tag matched but the opcode changed
	Evictions uint64
}

type entry struct {
	opcode uint32
	thumb  bool
	inst   insts.Instruction
}

// Cache memoizes Decoder output per fetch address.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	entries   []entry
	stats     Statistics
}

// New creates a decode cache with the given configuration. An invalid
// configuration is replaced by DefaultConfig.
func New(config Config) *Cache {
	if config.Validate() != nil {
		config = DefaultConfig()
	}
	numSets := config.Entries / config.Associativity

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		entries: make([]entry, numSets*config.Associativity),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) entryIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Lookup returns the cached decode for opcode fetched at addr.
func (c *Cache) Lookup(addr, opcode uint32, thumb bool) (insts.Instruction, bool) {
	c.stats.Lookups++

	block := c.directory.Lookup(0, tag(addr))
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return insts.Instruction{}, false
	}

	e := &c.entries[c.entryIndex(block)]
	if e.opcode != opcode || e.thumb != thumb {
		c.stats.Stale++
		c.stats.Misses++
		return insts.Instruction{}, false
	}

	c.stats.Hits++
	c.directory.Visit(block)
	return e.inst, true
}

// Insert records a decode, evicting the least recently used entry of the set
// if needed.
func (c *Cache) Insert(addr, opcode uint32, thumb bool, inst insts.Instruction) {
	t := tag(addr)

	block := c.directory.Lookup(0, t)
	if block == nil || !block.IsValid {
		block = c.directory.FindVictim(t)
		if block == nil {
			return
		}
		if block.IsValid {
			c.stats.Evictions++
		}
		block.Tag = t
		block.IsValid = true
	}

	c.entries[c.entryIndex(block)] = entry{opcode: opcode, thumb: thumb, inst: inst}
	c.directory.Visit(block)
}

// Decode returns the cached decode of opcode or decodes and caches it.
func (c *Cache) Decode(d *insts.Decoder, addr, opcode uint32, thumb bool) insts.Instruction {
	if inst, ok := c.Lookup(addr, opcode, thumb); ok {
		return inst
	}

	inst := d.Decode(opcode, thumb)
	c.Insert(addr, opcode, thumb, inst)
	return inst
}

// Invalidate drops the entry for addr.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, tag(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
	}
}

// Reset invalidates every entry and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func tag(addr uint32) uint64 {
	return uint64(addr &^ (blockSize - 1))
}
