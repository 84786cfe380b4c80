package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Image locations and limits.
const (
	BIOSBase    uint32 = 0x00000000
	BIOSSize           = 16 * 1024
	ROMBase     uint32 = 0x08000000
	MaxROMSize         = 32 * 1024 * 1024
	HeaderSize         = 0xC0
	fixedMarker        = 0x96
)

var (
	// ErrEmptyImage is returned for a zero-length file.
	ErrEmptyImage = errors.New("image is empty")
	// ErrImageTooLarge is returned when an image exceeds its address window.
	ErrImageTooLarge = errors.New("image too large")
	// ErrShortHeader is returned when a ROM is smaller than its header.
	ErrShortHeader = errors.New("rom shorter than cartridge header")
)

// Header is the cartridge header at the start of a ROM.
type Header struct {
	Title      string
	GameCode   string
	MakerCode  string
	Version    uint8
	Complement uint8
	// ChecksumOK reports whether Complement matches the header bytes.
	ChecksumOK bool
	// FixedOK reports whether the fixed 0x96 marker is present.
	FixedOK bool
}

// HeaderComplement computes the header check byte over 0xA0..0xBC.
func HeaderComplement(data []byte) uint8 {
	var sum uint8
	for _, b := range data[0xA0:0xBD] {
		sum -= b
	}
	return sum - 0x19
}

// ParseHeader decodes the cartridge header of a ROM image.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(data))
	}

	h := Header{
		Title:      headerString(data[0xA0:0xAC]),
		GameCode:   headerString(data[0xAC:0xB0]),
		MakerCode:  headerString(data[0xB0:0xB2]),
		Version:    data[0xBC],
		Complement: data[0xBD],
		FixedOK:    data[0xB2] == fixedMarker,
	}
	h.ChecksumOK = HeaderComplement(data) == h.Complement

	return h, nil
}

func headerString(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

// ROM is a cartridge image.
type ROM struct {
	Data   []byte
	Header Header
}

// LoadROM reads a raw cartridge image and parses its header.
func LoadROM(path string) (*ROM, error) {
	data, err := readImage(path, MaxROMSize)
	if err != nil {
		return nil, err
	}

	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &ROM{Data: data, Header: header}, nil
}

// LoadInto maps the ROM at the cartridge base.
func (r *ROM) LoadInto(mem Target) {
	mem.LoadBytes(ROMBase, r.Data)
}

// LoadBIOS reads a BIOS image and maps it at address zero.
func LoadBIOS(path string, mem Target) error {
	data, err := readImage(path, BIOSSize)
	if err != nil {
		return err
	}

	mem.LoadBytes(BIOSBase, data)
	return nil
}

// UserIRQVector holds the address of the game's interrupt handler. The BIOS
// interrupt dispatcher jumps through it.
const UserIRQVector uint32 = 0x03007FFC

// irqDispatch is the BIOS interrupt dispatcher, placed at the IRQ vector. It
// saves the scratch registers, calls the handler at UserIRQVector in ARM
// state and returns from the interrupt.
var irqDispatch = []uint32{
	0xE92D500F, // stmfd sp!, {r0-r3, r12, lr}
	0xE3A00403, // mov r0, #0x03000000
	0xE2800C7F, // add r0, r0, #0x7F00
	0xE28FE000, // add lr, pc, #0
	0xE590F0FC, // ldr pc, [r0, #0xFC]
	0xE8BD500F, // ldmfd sp!, {r0-r3, r12, lr}
	0xE25EF004, // subs pc, lr, #4
}

// InstallIRQDispatch writes the BIOS interrupt dispatcher at the IRQ vector,
// for running without a BIOS image.
func InstallIRQDispatch(mem Target) {
	code := make([]byte, 4*len(irqDispatch))
	for i, w := range irqDispatch {
		binary.LittleEndian.PutUint32(code[4*i:], w)
	}
	mem.LoadBytes(BIOSBase+0x18, code)
}

func readImage(path string, limit int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyImage)
	}
	if len(data) > limit {
		return nil, fmt.Errorf("%s: %w: %d bytes, limit %d", path, ErrImageTooLarge, len(data), limit)
	}
	return data, nil
}
