// Package loader implements the byte-buffer image loaders spec §6 assigns to
// the core: PRG, BIN, CRT, P00, and TAP. File discovery, extension sniffing,
// and directory mounting are the out-of-scope collaborator's job (spec §1);
// this package only turns an already-read []byte into a typed, addressable
// payload the machine package can install.
package loader

import (
	"encoding/binary"
	"fmt"

	"github.com/jmchacon/c64core/memory"
)

// ImageError reports a malformed or truncated image, part of the §7 error
// taxonomy.
type ImageError struct {
	msg string
}

func (e ImageError) Error() string { return e.msg }

// PRG is a parsed .prg payload: a little-endian load address followed by
// the raw bytes to place there, per spec §6.
type PRG struct {
	Addr uint16
	Data []uint8
}

// LoadPRG parses a C64 .prg image: the first two bytes are the little-endian
// load address, the rest is copied verbatim, per spec §6 and grounded on
// convertprg.go's identical two-byte header parse.
func LoadPRG(b []uint8) (*PRG, error) {
	if len(b) < 2 {
		return nil, ImageError{"prg: truncated, need at least a 2 byte load address"}
	}
	addr := binary.LittleEndian.Uint16(b[0:2])
	return &PRG{Addr: addr, Data: append([]uint8(nil), b[2:]...)}, nil
}

// LoadBIN returns a copy of a raw binary image for placement at a
// caller-provided offset, per spec §6. BIN carries no header of its own.
func LoadBIN(b []uint8) []uint8 {
	return append([]uint8(nil), b...)
}

// Place writes a loaded PRG or BIN payload into ram starting at addr,
// exactly the way convertprg.go copies its input into a 64k output image.
func Place(ram memory.Bank, addr uint16, data []uint8) {
	for i, v := range data {
		ram.Write(addr+uint16(i), v)
	}
}

// p00Magic is the fixed 8-byte signature ("C64File\x00") at the start of a
// P00 header, per spec §6.
var p00Magic = [8]byte{'C', '6', '4', 'F', 'i', 'l', 'e', 0}

const p00HeaderSize = 26 // 8 byte magic + 17 byte name + 1 byte record size

// P00 is a parsed .p00 payload: the embedded PETSCII program name plus the
// PRG-style {addr, data} payload that follows the header.
type P00 struct {
	Name string
	PRG  *PRG
}

// LoadP00 parses a .p00 image: 26 byte header (8 byte magic, 17 byte name,
// 1 byte record-size byte not used by PRG-style payloads), then a PRG-style
// payload, per spec §6.
func LoadP00(b []uint8) (*P00, error) {
	if len(b) < p00HeaderSize {
		return nil, ImageError{"p00: truncated header"}
	}
	for i, m := range p00Magic {
		if b[i] != m {
			return nil, ImageError{fmt.Sprintf("p00: bad magic at offset %d", i)}
		}
	}
	name := string(b[8:25])
	prg, err := LoadPRG(b[p00HeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("p00: %v", err)
	}
	return &P00{Name: name, PRG: prg}, nil
}

// crtMagic is the fixed 16-byte CRT header signature, per spec §6.
var crtMagic = [16]byte{'C', '6', '4', ' ', 'C', 'A', 'R', 'T', 'R', 'I', 'D', 'G', 'E', ' ', ' ', ' '}

const (
	crtHeaderLen      = 0x40
	crtHWTypeOffset   = 0x16
	crtChipHeaderLen  = 0x10
	crtChipSignature  = "CHIP"
)

// CRTChip is one CHIP segment from a .crt image: its load address and ROM
// image bytes. The CHIP header's bank number and chip type are not kept.
type CRTChip struct {
	LoadAddr uint16
	Data     []uint8
}

// CRT is a parsed .crt image, per spec §6: a 16-bit hardware type plus the
// sequence of CHIP segments to install as banks overlaying MMU regions
// $8000/$A000/$E000.
type CRT struct {
	HWType uint16
	Chips  []CRTChip
}

// MountError reports an unsupported cartridge hardware type, part of the §7
// error taxonomy; generic ROM mapping (type 0, "Normal cartridge") is the
// only hw type this core installs directly (spec §1 Non-goal on custom bus
// logic) -- other types still parse. Nothing in this module mounts a CRT or
// returns MountError; the machine package takes cartridge ROM images through
// C64Def.Cart.
type MountError struct {
	HWType uint16
}

func (e MountError) Error() string {
	return fmt.Sprintf("crt: unsupported cartridge hardware type %d", e.HWType)
}

// LoadCRT parses a .crt image's header and CHIP segment sequence, per spec
// §6. It does not validate hw-type support; deciding whether a given HWType
// can be mounted is left to the caller.
func LoadCRT(b []uint8) (*CRT, error) {
	if len(b) < crtHeaderLen {
		return nil, ImageError{"crt: truncated header"}
	}
	for i, m := range crtMagic {
		if b[i] != m {
			return nil, ImageError{fmt.Sprintf("crt: bad magic at offset %d", i)}
		}
	}
	hwType := binary.BigEndian.Uint16(b[crtHWTypeOffset : crtHWTypeOffset+2])
	c := &CRT{HWType: hwType}

	off := crtHeaderLen
	for off+crtChipHeaderLen <= len(b) {
		if string(b[off:off+4]) != crtChipSignature {
			return nil, ImageError{fmt.Sprintf("crt: bad CHIP signature at offset %d", off)}
		}
		length := binary.BigEndian.Uint32(b[off+4 : off+8])
		loadAddr := binary.BigEndian.Uint16(b[off+12 : off+14])
		size := binary.BigEndian.Uint16(b[off+14 : off+16])
		dataStart := off + crtChipHeaderLen
		dataEnd := dataStart + int(size)
		if dataEnd > len(b) {
			return nil, ImageError{"crt: CHIP payload runs past end of file"}
		}
		c.Chips = append(c.Chips, CRTChip{
			LoadAddr: loadAddr,
			Data:     append([]uint8(nil), b[dataStart:dataEnd]...),
		})
		off += int(length)
	}
	return c, nil
}

// TAP is a parsed .tap image, per spec §6: a version byte plus the sequence
// of pulse widths (in phi2 cycles) to feed the cassette-read pin while the
// cassette motor is on.
type TAP struct {
	Version uint8
	Pulses  []uint32
}

const tapHeaderLen = 0x14 // 12 byte magic "C64-TAPE-RAW", 1 byte version, 3 reserved, 4 byte length

// LoadTAP parses a .tap image's pulse stream, per spec §6. A data byte of 0
// introduces a 24-bit little-endian pulse width held in the next three
// bytes (version 1+); any other byte
// value n is a pulse width of n*8 phi2 cycles.
func LoadTAP(b []uint8) (*TAP, error) {
	if len(b) < tapHeaderLen {
		return nil, ImageError{"tap: truncated header"}
	}
	if string(b[0:12]) != "C64-TAPE-RAW" {
		return nil, ImageError{"tap: bad magic"}
	}
	version := b[12]
	length := binary.LittleEndian.Uint32(b[16:20])
	data := b[tapHeaderLen:]
	if uint32(len(data)) < length {
		return nil, ImageError{"tap: truncated pulse data"}
	}
	data = data[:length]

	t := &TAP{Version: version}
	for i := 0; i < len(data); i++ {
		v := data[i]
		if v != 0 {
			t.Pulses = append(t.Pulses, uint32(v)*8)
			continue
		}
		if version == 0 || i+3 >= len(data) {
			// Version 0 has no extended pulses; treat a literal 0 as the
			// longest representable short pulse rather than erroring, since
			// real version-0 tapes use it only as an overflow marker which
			// players already special-case per device.
			t.Pulses = append(t.Pulses, 256*8)
			continue
		}
		pulse := uint32(data[i+1]) | uint32(data[i+2])<<8 | uint32(data[i+3])<<16
		t.Pulses = append(t.Pulses, pulse)
		i += 3
	}
	return t, nil
}

// zeroPagePresets are the documented C64 zero-page boot values convertprg.go
// hardcodes for its standalone test-cart harness (from
// http://sta.c64.org/cbm64mem.html). PresetZeroPage applies the same set so
// a PRG can be placed and SYS'd into directly without first running the
// KERNAL's own cold-start initialization (exercised by loader_test.go's
// TestPresetZeroPage; usable by any caller that wants a fast-boot path).
var zeroPagePresets = map[uint16]uint8{
	0x002B: 0x01, 0x002C: 0x08, // pointer to start of BASIC area ($0801)
	0x0038: 0xA0, // pointer to end of BASIC area
	0x0091: 0xFF,
	0x00B2: 0x3C, 0x00B3: 0x03,
	0x00C8: 0x27,
	0x00D5: 0x27,
}

// PresetZeroPage writes the documented KERNAL cold-start zero-page values
// that BASIC's tokenizer/pointer chain depends on, per convertprg.go.
func PresetZeroPage(ram memory.Bank) {
	for addr, val := range zeroPagePresets {
		ram.Write(addr, val)
	}
}
