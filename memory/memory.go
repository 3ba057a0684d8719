// Package memory defines the basic interfaces for working
// with a 6502 family memory map. Since each implementation
// that is emulated has specific mappings (including shadowed
// regions) this is defined as an interface.
package memory

import (
	"fmt"
	"math/rand"
	"time"
)

type Bank interface {
	// Read returns the data byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with the new value. For ROM addresses this is simply a no-op without
	// any error.
	Write(addr uint16, val uint8)
	// PowerOn performs power on reset of the memory. This is implementation specific as to
	// whether it's randomized or preset to all zeros.
	PowerOn()
	// Parent holds a reference (if non-nil) to the next level memory controller. A chain
	// of these can be created in order to find the top one and be able to query items
	// such as the databus state (from the last value to go over it). Some implementations
	// depend on transient databus state due to side effects.
	Parent() Bank
	// DatabusVal returns the last value seen to go across on the data bus.
	DatabusVal() uint8
}

// LatestDatabusVal hunts up a chain of Banks until it finds the outermost one and
// return the DatabusVal from it.
func LatestDatabusVal(b Bank) uint8 {
	if b.Parent() != nil {
		return LatestDatabusVal(b.Parent())
	}
	return b.DatabusVal()
}

// ram implements a standard R/W interface to an address space for 8 bit systems.
// If this is mapped into a larger memory map it's up to a parent Bank to properly mask addr
// before calling Read/Write.
type ram struct {
	ram        []uint8
	parent     Bank
	databusVal uint8
}

// New8BitRAMBank creates a R/W RAM bank of the given size. Size must be a power of 2.
// If this is smaller than 64k (uint16 max) aliasing will occur on Read/Write.
func New8BitRAMBank(size int, parent Bank) (Bank, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("invalid size: %d must be a power of 2", size)
	}
	if size > 1<<16 {
		return nil, fmt.Errorf("invalid size: %d is bigger than 64k", size)
	}
	b := &ram{
		parent: parent,
	}
	// Go ahead and completely preallocate this now.
	b.ram = make([]uint8, size, size)
	return b, nil
}

// Read implements the interface for Bank. Address is clipped based on length of ram buffer.
func (r *ram) Read(addr uint16) uint8 {
	// Mask addr to fit
	addr &= uint16(len(r.ram) - 1)
	val := r.ram[addr]
	r.databusVal = val
	return val
}

// Write implements the interface for Bank. Address is clipped based on length of ram buffer.
func (r *ram) Write(addr uint16, val uint8) {
	// Mask addr to fit
	addr &= uint16(len(r.ram) - 1)
	r.databusVal = val
	r.ram[addr] = val
}

// PowerOn implements the interface for memory.Bank and randomizes the RAM.
func (r *ram) PowerOn() {
	rand.Seed(time.Now().UnixNano())
	for i := range r.ram {
		r.ram[i] = uint8(rand.Intn(256))
	}
}

// Parent implements the interface for returning a possible parent memory.Bank.
func (r *ram) Parent() Bank {
	return r.parent
}

// DatabusVal returns the most recent seen databus item.
func (r *ram) DatabusVal() uint8 {
	return r.databusVal
}

// Bytes returns a copy of this RAM's contents, for snapshot/restore.
func (r *ram) Bytes() []uint8 {
	return append([]uint8(nil), r.ram...)
}

// SetBytes restores previously captured contents. b must be the same length
// as the bank.
func (r *ram) SetBytes(b []uint8) {
	copy(r.ram, b)
}

// rom implements a read-only Bank backed by a fixed image (BASIC/KERNAL/CHARGEN).
type rom struct {
	data       []uint8
	parent     Bank
	databusVal uint8
}

// NewROMBank creates a read-only bank from data. Writes are silently discarded,
// matching real ROM behavior and the teacher's convention for write-to-ROM.
func NewROMBank(data []uint8, parent Bank) (Bank, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("invalid ROM size: %d must be non-zero", len(data))
	}
	cp := make([]uint8, len(data))
	copy(cp, data)
	return &rom{data: cp, parent: parent}, nil
}

func (r *rom) Read(addr uint16) uint8 {
	addr &= uint16(len(r.data) - 1)
	val := r.data[addr]
	r.databusVal = val
	return val
}

// Write is a no-op: ROM is not writable.
func (r *rom) Write(addr uint16, val uint8) {
	r.databusVal = val
}

// PowerOn is a no-op: ROM contents are fixed at construction.
func (r *rom) PowerOn() {}

func (r *rom) Parent() Bank {
	return r.parent
}

func (r *rom) DatabusVal() uint8 {
	return r.databusVal
}

// colorRAM implements the C64's 1K x 4-bit color RAM: only the low nibble of
// each byte is storage-backed, the high nibble floats to the last databus
// value per the open floating-bus question resolved in DESIGN.md.
type colorRAM struct {
	nibbles    [1024]uint8
	parent     Bank
	databusVal uint8
}

// NewColorRAMBank creates the 1K color RAM bank.
func NewColorRAMBank(parent Bank) Bank {
	return &colorRAM{parent: parent}
}

func (c *colorRAM) Read(addr uint16) uint8 {
	addr &= 0x03FF
	val := (LatestDatabusVal(c) & 0xF0) | (c.nibbles[addr] & 0x0F)
	c.databusVal = val
	return val
}

func (c *colorRAM) Write(addr uint16, val uint8) {
	addr &= 0x03FF
	c.nibbles[addr] = val & 0x0F
	c.databusVal = val
}

func (c *colorRAM) PowerOn() {
	rand.Seed(time.Now().UnixNano())
	for i := range c.nibbles {
		c.nibbles[i] = uint8(rand.Intn(16))
	}
}

func (c *colorRAM) Parent() Bank {
	return c.parent
}

func (c *colorRAM) DatabusVal() uint8 {
	return c.databusVal
}

// Bytes returns a copy of the color RAM's nibbles, for snapshot/restore.
func (c *colorRAM) Bytes() []uint8 {
	return append([]uint8(nil), c.nibbles[:]...)
}

// SetBytes restores previously captured nibble contents.
func (c *colorRAM) SetBytes(b []uint8) {
	copy(c.nibbles[:], b)
}

// Snapshotable is implemented by Bank types whose contents need to survive
// a snapshot/restore round trip (RAM and color RAM; ROM is immutable and
// the IO dispatch bank has no storage of its own).
type Snapshotable interface {
	Bytes() []uint8
	SetBytes([]uint8)
}

// Dispatcher resolves an IO-space address to the chip (or RAM alias) that
// should service it. Implementations are the VIC/SID/CIA1/CIA2 register
// files and the underlying color RAM / RAM-shadow bank.
type Dispatcher interface {
	Read(addr uint16) uint8
	Write(addr uint16, val uint8)
}

// io implements the $D000-$DFFF dispatch region: VIC ($D000-$D3FF, mirrored
// every 64 bytes), SID ($D400-$D7FF, mirrored every 32 bytes), color RAM
// ($D800-$DBFF), CIA1 ($DC00-$DCFF, mirrored every 16 bytes), CIA2
// ($DD00-$DDFF, mirrored every 16 bytes), per spec §4.2.
type io struct {
	vic, sid, cia1, cia2 Dispatcher
	color                Bank
	parent               Bank
	databusVal            uint8
}

// NewIOBank creates the $D000-$DFFF dispatch bank.
func NewIOBank(vic, sid, cia1, cia2 Dispatcher, color Bank, parent Bank) Bank {
	return &io{vic: vic, sid: sid, cia1: cia1, cia2: cia2, color: color, parent: parent}
}

func (b *io) Read(addr uint16) uint8 {
	addr &= 0x0FFF
	var val uint8
	switch {
	case addr < 0x0400:
		val = b.vic.Read(addr & 0x3F)
	case addr < 0x0800:
		val = b.sid.Read(addr & 0x1F)
	case addr < 0x0C00:
		val = b.color.Read(addr)
	case addr < 0x0D00:
		val = b.cia1.Read(addr & 0x0F)
	default:
		val = b.cia2.Read(addr & 0x0F)
	}
	b.databusVal = val
	return val
}

func (b *io) Write(addr uint16, val uint8) {
	addr &= 0x0FFF
	switch {
	case addr < 0x0400:
		b.vic.Write(addr&0x3F, val)
	case addr < 0x0800:
		b.sid.Write(addr&0x1F, val)
	case addr < 0x0C00:
		b.color.Write(addr, val)
	case addr < 0x0D00:
		b.cia1.Write(addr&0x0F, val)
	default:
		b.cia2.Write(addr&0x0F, val)
	}
	b.databusVal = val
}

func (b *io) PowerOn() {}

func (b *io) Parent() Bank {
	return b.parent
}

func (b *io) DatabusVal() uint8 {
	return b.databusVal
}
