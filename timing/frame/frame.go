// Package frame drives a core through the video frame: 228 scanlines of
// 1232 cycles, each split into a draw and a horizontal blank segment, with the
// blanking edges signalled to the peripherals in between.
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/gbasim/emu"
)

// Display timing.
const (
	HDrawDots      = 240
	HBlankDots     = 68
	CyclesPerDot   = 4
	VDrawLines     = 160
	VBlankLines    = 68
	VLines         = VDrawLines + VBlankLines
	HDrawCycles    = HDrawDots * CyclesPerDot
	HBlankCycles   = HBlankDots * CyclesPerDot
	CyclesPerLine  = HDrawCycles + HBlankCycles
	CyclesPerFrame = CyclesPerLine * VLines
)

// FrameTime is the wall-clock duration of one frame at ~59.73 frames per
// second.
const FrameTime = 16743 * time.Microsecond

// Stall detection thresholds, in frames.
const (
	stallThreshold = 180
	stallInterval  = 60
)

// ErrStopped is returned by RunFrame when Stop was called during the frame.
var ErrStopped = errors.New("driver stopped")

// Core is the processor being driven.
type Core interface {
	Run(budget uint64) (uint64, error)
	RequestStop()
	State() emu.State
}

// Peripherals receive the display timing events.
type Peripherals interface {
	SetScanline(line int)
	EnterHBlank()
	ExitHBlank()
	EnterVBlank()
	ExitVBlank()
	AddTime(cycles uint64)
}

// Stats holds driver statistics.
type Stats struct {
	Frames uint64
	// Cycles actually consumed by the core.
	Cycles uint64
	// StalledFrames counts consecutive frames that ended at the same PC.
	StalledFrames int
}

// Driver runs frames on a core.
type Driver struct {
	core Core
	io   Peripherals
	log  logr.Logger

	pacing    bool
	frameTime time.Duration

	// carry is the overshoot of the last segment, paid out of the next one.
	carry   uint64
	stopped atomic.Bool
	stats   Stats

	lastPC       uint32
	havePC       bool
	statusFrames int
	statusStart  time.Time
}

// Option is a functional option for configuring the Driver.
type Option func(*Driver)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// WithFramePacing sleeps after each frame so frames run at real speed.
func WithFramePacing(enabled bool) Option {
	return func(d *Driver) {
		d.pacing = enabled
	}
}

// WithFrameTime overrides the paced frame duration.
func WithFrameTime(t time.Duration) Option {
	return func(d *Driver) {
		d.frameTime = t
	}
}

// NewDriver creates a driver for core and io.
func NewDriver(core Core, io Peripherals, opts ...Option) *Driver {
	d := &Driver{
		core:      core,
		io:        io,
		log:       logr.Discard(),
		frameTime: FrameTime,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns driver statistics.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Stop makes a running frame loop return at the next instruction boundary.
// Safe to call from any goroutine.
func (d *Driver) Stop() {
	d.stopped.Store(true)
	d.core.RequestStop()
}

// segment runs the core for budget cycles less the previous overshoot.
func (d *Driver) segment(budget uint64) error {
	if d.carry >= budget {
		d.carry -= budget
		return nil
	}
	want := budget - d.carry
	d.carry = 0

	// A short run while the driver is not stopping comes from a stop request
	// that predates this run. Keep going until the segment is paid.
	var consumed uint64
	for consumed < want {
		n, err := d.core.Run(want - consumed)
		if err != nil {
			return fmt.Errorf("failed to run %d cycles: %w", want-consumed, err)
		}
		consumed += n
		d.stats.Cycles += n

		if d.stopped.Load() {
			return ErrStopped
		}
	}
	d.carry = consumed - want
	return nil
}

// RunFrame runs one full frame.
func (d *Driver) RunFrame() error {
	for line := 0; line < VLines; line++ {
		d.io.SetScanline(line)
		if err := d.segment(HDrawCycles); err != nil {
			return err
		}
		d.io.EnterHBlank()
		if err := d.segment(HBlankCycles); err != nil {
			return err
		}
		d.io.ExitHBlank()
		d.io.AddTime(CyclesPerLine)

		switch line {
		case VDrawLines - 1:
			d.io.EnterVBlank()
		case VLines - 1:
			d.io.ExitVBlank()
		}
	}

	d.stats.Frames++
	d.checkStall()
	d.logStatus()
	return nil
}

// Run runs frames until Stop is called or ctx is done. A frames limit of
// zero runs without limit.
func (d *Driver) Run(ctx context.Context, frames uint64) error {
	d.stopped.Store(false)
	stopOnCancel := context.AfterFunc(ctx, d.Stop)
	defer stopOnCancel()

	d.statusStart = time.Now()
	d.statusFrames = 0
	frameStart := time.Now()

	for n := uint64(0); frames == 0 || n < frames; n++ {
		if err := d.RunFrame(); err != nil {
			if errors.Is(err, ErrStopped) {
				return ctx.Err()
			}
			return err
		}

		if d.pacing {
			if err := d.pace(ctx, frameStart); err != nil {
				return err
			}
			frameStart = time.Now()
		}
	}
	return nil
}

func (d *Driver) pace(ctx context.Context, frameStart time.Time) error {
	wait := d.frameTime - time.Since(frameStart)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Driver) checkStall() {
	s := d.core.State()
	pc := s.R[15]
	if d.havePC && pc == d.lastPC {
		d.stats.StalledFrames++
	} else {
		d.lastPC = pc
		d.havePC = true
		d.stats.StalledFrames = 0
	}

	if d.stats.StalledFrames > stallThreshold && d.stats.StalledFrames%stallInterval == 0 {
		d.log.Info("possible stall",
			"pc", fmt.Sprintf("%08X", pc),
			"frames", d.stats.StalledFrames,
			"mode", s.CPSR.Mode.String(),
			"thumb", s.CPSR.T,
			"irqMasked", s.CPSR.I)
	}
}

func (d *Driver) logStatus() {
	d.statusFrames++
	if d.statusStart.IsZero() {
		d.statusStart = time.Now()
		return
	}

	elapsed := time.Since(d.statusStart)
	if elapsed < time.Second {
		return
	}

	s := d.core.State()
	d.log.V(1).Info("status",
		"fps", float64(d.statusFrames)/elapsed.Seconds(),
		"pc", fmt.Sprintf("%08X", s.R[15]),
		"mode", s.CPSR.Mode.String(),
		"thumb", s.CPSR.T,
		"frames", d.stats.Frames)

	d.statusFrames = 0
	d.statusStart = time.Now()
}
