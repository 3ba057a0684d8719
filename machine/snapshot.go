package machine

import (
	"github.com/jmchacon/c64core/cia"
	"github.com/jmchacon/c64core/cpu"
	"github.com/jmchacon/c64core/mmu"
	"github.com/jmchacon/c64core/sid"
	"github.com/jmchacon/c64core/vic"
)

// bytesBank is implemented by memory.Bank types whose storage needs to
// survive a snapshot/restore round trip.
type bytesBank interface {
	Bytes() []uint8
	SetBytes([]uint8)
}

// State is a complete snapshot of everything that determines the machine's
// future ticking behavior: every chip's internal state plus RAM and color
// RAM contents. Used to verify Testable Property 7 (snapshot/restore then
// step N cycles produces identical output to stepping 2N cycles from the
// original).
type State struct {
	RAM, Color     []uint8
	MMU            mmu.State
	CPU            cpu.State
	CIA1, CIA2     cia.State
	VIC            vic.State
	SID            sid.State
	KeyboardMatrix [8][8]bool
}

// Snapshot captures the machine's complete state.
func (c *C64) Snapshot() State {
	var s State
	if b, ok := c.ram.(bytesBank); ok {
		s.RAM = b.Bytes()
	}
	if b, ok := c.color.(bytesBank); ok {
		s.Color = b.Bytes()
	}
	s.MMU = c.mmu.State()
	s.CPU = c.cpu.State()
	s.CIA1 = c.cia1.State()
	s.CIA2 = c.cia2.State()
	s.VIC = c.vic.State()
	s.SID = c.sid.State()
	s.KeyboardMatrix = c.keyboard.keys
	return s
}

// Restore reinstates a previously captured snapshot. The State must have
// come from this same machine's Snapshot (the chip State types are not
// portable across different ROM images or wiring).
func (c *C64) Restore(s State) {
	if b, ok := c.ram.(bytesBank); ok && s.RAM != nil {
		b.SetBytes(s.RAM)
	}
	if b, ok := c.color.(bytesBank); ok && s.Color != nil {
		b.SetBytes(s.Color)
	}
	c.mmu.SetState(s.MMU)
	c.cpu.SetState(s.CPU)
	c.cia1.SetState(s.CIA1)
	c.cia2.SetState(s.CIA2)
	c.vic.SetState(s.VIC)
	c.sid.SetState(s.SID)
	c.keyboard.keys = s.KeyboardMatrix
}
