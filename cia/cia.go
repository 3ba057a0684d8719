// Package cia implements the MOS 6526 Complex Interface Adapter: two 16-bit
// timers, a time-of-day clock, an 8-bit serial shift register, two 8-bit
// parallel ports with data-direction registers, and an interrupt
// controller. Two independent instances (CIA1, CIA2) are wired by the
// machine package per spec §4.4.
package cia

import (
	"fmt"
	"math/rand"

	"github.com/jmchacon/c64core/io"
	"github.com/jmchacon/c64core/memory"
)

// Register offsets within the 16-byte CIA register file ($x0-$xF, mirrored
// every 16 bytes across the chip's 256-byte IO page slice).
const (
	regPRA = uint16(0x0)
	regPRB = uint16(0x1)
	regDDRA = uint16(0x2)
	regDDRB = uint16(0x3)
	regTALo = uint16(0x4)
	regTAHi = uint16(0x5)
	regTBLo = uint16(0x6)
	regTBHi = uint16(0x7)
	regTODTenths = uint16(0x8)
	regTODSec    = uint16(0x9)
	regTODMin    = uint16(0xA)
	regTODHr     = uint16(0xB)
	regSDR       = uint16(0xC)
	regICR       = uint16(0xD)
	regCRA       = uint16(0xE)
	regCRB       = uint16(0xF)
)

const (
	crSTART     = uint8(0x01)
	crPBON      = uint8(0x02)
	crOUTMODE   = uint8(0x04)
	crRUNMODE   = uint8(0x08) // set = one-shot
	crFORCELOAD = uint8(0x10)
	craINMODE   = uint8(0x20) // CRA: 0=phi2, 1=CNT
	craSPMODE   = uint8(0x40)
	craTODFREQ  = uint8(0x80)

	crbINMODE = uint8(0x60) // CRB bits 5-6: 00 phi2, 01 CNT, 10 TA-underflow, 11 CNT-gated TA-underflow
	crbALARM  = uint8(0x80)
)

// ICR bits.
const (
	icrTA    = uint8(0x01)
	icrTB    = uint8(0x02)
	icrALARM = uint8(0x04)
	icrSP    = uint8(0x08)
	icrFLAG  = uint8(0x10)
	icrIR    = uint8(0x80)
)

// IRQSink receives edge/level notifications on the interrupt line this CIA
// drives (pin.Pin satisfies this directly).
type IRQSink interface {
	Set(producer string, asserted bool)
}

// Chip is a complete 6526 CIA.
type Chip struct {
	name string // producer token used on the shared IRQ/NMI pin.
	irq  IRQSink

	debug  bool
	clocks int

	portA, portB           uint8
	ddrA, ddrB             uint8
	shadowDDRA, shadowDDRB uint8
	wroteDDR               bool
	portAInput             io.Port8
	portBInput             io.Port8

	timerA, timerB             uint16
	latchA, latchB             uint16
	shadowLatchA, shadowLatchB uint16
	wroteLatchA, wroteLatchB   bool
	reloadA, reloadB           bool
	startA, startB             bool
	shadowStartA, shadowStartB bool
	wroteStartA, wroteStartB   bool
	oneShotA, oneShotB         bool

	cra, crb uint8

	todTenths, todSec, todMin, todHr     uint8
	alarmTenths, alarmSec, alarmMin, alarmHr uint8
	todHold                              bool
	todHoldTenths, todHoldSec, todHoldMin, todHoldHr uint8
	todCycles                            int
	todWriteAlarm                        bool

	sdr uint8

	icrMask    uint8
	icrFlags   uint8
	shadowFlag uint8
	wroteFlag  bool

	databusVal uint8
	parent     memory.Bank
}

// Def collects a CIA's wiring.
type Def struct {
	// PortA/PortB supply the externally driven bits of each port (keyboard
	// matrix columns, joystick, serial bus lines, VIC bank select bits).
	PortA, PortB io.Port8
	// IRQ is the pin this CIA asserts on interrupt (IRQ pin for CIA1, NMI
	// pin for CIA2, per the standard C64 wiring).
	IRQ  IRQSink
	Name string
	Debug bool
	Parent memory.Bank
}

// Init returns a powered-on CIA.
func Init(d *Def) (*Chip, error) {
	if d.IRQ == nil {
		return nil, fmt.Errorf("cia: IRQ sink must be non-nil")
	}
	c := &Chip{
		name:       d.Name,
		irq:        d.IRQ,
		portAInput: d.PortA,
		portBInput: d.PortB,
		debug:      d.Debug,
		parent:     d.Parent,
	}
	c.PowerOn()
	return c, nil
}

// PowerOn resets all chip state to its documented post-reset values.
func (c *Chip) PowerOn() {
	c.portA, c.portB = 0, 0
	c.ddrA, c.ddrB = 0, 0
	c.shadowDDRA, c.shadowDDRB = 0, 0
	c.timerA, c.timerB = 0xFFFF, 0xFFFF
	c.latchA, c.latchB = 0xFFFF, 0xFFFF
	c.shadowLatchA, c.shadowLatchB = 0xFFFF, 0xFFFF
	c.cra, c.crb = 0, 0
	c.startA, c.startB = false, false
	c.oneShotA, c.oneShotB = false, false
	c.todTenths, c.todSec, c.todMin, c.todHr = 0, 0, 0, 0
	c.alarmTenths, c.alarmSec, c.alarmMin, c.alarmHr = 0, 0, 0, 0
	c.sdr = uint8(rand.Intn(256))
	c.icrMask = 0
	c.icrFlags = 0
	c.irq.Set(c.name, false)
}

// portAOut returns PRA as externally visible: output bits from the port
// register, input bits from the wired input source, matching the PRA/PRB =
// (data & ddr) | (pin & ~ddr) contract of spec §4.4.
func (c *Chip) portAOut() uint8 {
	in := uint8(0)
	if c.portAInput != nil {
		in = c.portAInput.Input()
	}
	return (c.portA & c.ddrA) | (in &^ c.ddrA)
}

func (c *Chip) portBOut() uint8 {
	in := uint8(0)
	if c.portBInput != nil {
		in = c.portBInput.Input()
	}
	out := (c.portB & c.ddrB) | (in &^ c.ddrB)
	// The PB6/PB7 timer outputs selected by CRA/CRB bit 1 are not applied:
	// PB6 and PB7 read like any other port B bit.
	return out
}

// Read implements memory.Bank-style register access for the 16-byte CIA
// register file. addr should already be masked to 0-15 by the caller (the
// memory io bank does this).
func (c *Chip) Read(addr uint16) uint8 {
	var val uint8
	switch addr & 0xF {
	case regPRA:
		val = c.portAOut()
	case regPRB:
		val = c.portBOut()
	case regDDRA:
		val = c.ddrA
	case regDDRB:
		val = c.ddrB
	case regTALo:
		val = uint8(c.timerA & 0xFF)
	case regTAHi:
		val = uint8(c.timerA >> 8)
	case regTBLo:
		val = uint8(c.timerB & 0xFF)
	case regTBHi:
		val = uint8(c.timerB >> 8)
	case regTODTenths:
		if c.todHold {
			val = c.todHoldTenths
			c.todHold = false
		} else {
			val = c.todTenths
		}
	case regTODSec:
		val = c.pickTOD(c.todSec, c.todHoldSec)
	case regTODMin:
		val = c.pickTOD(c.todMin, c.todHoldMin)
	case regTODHr:
		// Reading hours latches a snapshot of the whole TOD so subsequent
		// tenths/seconds/minutes reads stay consistent, per spec §4.4.
		c.todHoldTenths, c.todHoldSec, c.todHoldMin, c.todHoldHr = c.todTenths, c.todSec, c.todMin, c.todHr
		c.todHold = true
		val = c.todHoldHr
	case regSDR:
		val = c.sdr
	case regICR:
		val = c.icrFlags & (icrTA | icrTB | icrALARM | icrSP | icrFLAG)
		if c.icrFlags&c.icrMask != 0 {
			val |= icrIR
		}
		// Reading ICR clears pending flags and deasserts the IRQ line atomically.
		c.icrFlags = 0
		c.irq.Set(c.name, false)
	case regCRA:
		val = c.cra
	case regCRB:
		val = c.crb
	}
	c.databusVal = val
	return val
}

// pickTOD returns the held snapshot if a hold is active (triggered by a
// prior hours read), else the live running value.
func (c *Chip) pickTOD(live, held uint8) uint8 {
	if c.todHold {
		return held
	}
	return live
}

// Write implements register writes. Timer-start and latch-reload side
// effects are staged into shadow fields and committed in TickDone() so
// reads within the same cycle observe a consistent counter value, mirroring
// the 6532 PIA's shadow-value discipline this package is grounded on.
func (c *Chip) Write(addr uint16, val uint8) {
	c.databusVal = val
	switch addr & 0xF {
	case regPRA:
		c.portA = val
	case regPRB:
		c.portB = val
	case regDDRA:
		c.shadowDDRA = val
		c.wroteDDR = true
	case regDDRB:
		c.shadowDDRB = val
		c.wroteDDR = true
	case regTALo:
		c.shadowLatchA = (c.shadowLatchA & 0xFF00) | uint16(val)
		c.wroteLatchA = true
	case regTAHi:
		c.shadowLatchA = (uint16(val) << 8) | (c.shadowLatchA & 0xFF)
		c.wroteLatchA = true
		if !c.startA {
			c.reloadA = true
		}
	case regTBLo:
		c.shadowLatchB = (c.shadowLatchB & 0xFF00) | uint16(val)
		c.wroteLatchB = true
	case regTBHi:
		c.shadowLatchB = (uint16(val) << 8) | (c.shadowLatchB & 0xFF)
		c.wroteLatchB = true
		if !c.startB {
			c.reloadB = true
		}
	case regTODTenths:
		c.writeTOD(&c.todTenths, &c.alarmTenths, val&0x0F)
	case regTODSec:
		c.writeTOD(&c.todSec, &c.alarmSec, val&0x7F)
	case regTODMin:
		c.writeTOD(&c.todMin, &c.alarmMin, val&0x7F)
	case regTODHr:
		c.writeTOD(&c.todHr, &c.alarmHr, val&0x9F)
	case regSDR:
		c.sdr = val
	case regICR:
		if val&icrIR != 0 {
			c.icrMask |= val &^ icrIR
		} else {
			c.icrMask &^= val
		}
	case regCRA:
		c.cra = val
		c.oneShotA = val&crRUNMODE != 0
		c.shadowStartA = val&crSTART != 0
		c.wroteStartA = true
		if val&crFORCELOAD != 0 {
			c.reloadA = true
		}
	case regCRB:
		c.crb = val
		c.oneShotB = val&crRUNMODE != 0
		c.shadowStartB = val&crSTART != 0
		c.wroteStartB = true
		if val&crFORCELOAD != 0 {
			c.reloadB = true
		}
	}
}

// writeTOD stores either the live clock (CRB bit 7 clear) or the alarm
// registers (CRB bit 7 set), per spec §4.4.
func (c *Chip) writeTOD(live, alarm *uint8, val uint8) {
	if c.crb&crbALARM != 0 {
		*alarm = val
		return
	}
	*live = val
}

// Tick advances timers and the TOD divider by one phi2 cycle. Counters
// decrement and reload from their latches here; the ICR flags and one-shot
// stops an underflow raises are staged and committed in TickDone(), so reads
// within the cycle see the pre-tick ICR and start bits, consistent with the
// 6532 PIA's shadow discipline.
func (c *Chip) Tick() error {
	c.clocks++

	if c.startA {
		if c.timerA == 0 {
			c.timerA = c.latchA
			c.shadowFlag |= icrTA
			c.wroteFlag = true
			if c.oneShotA {
				c.shadowStartA = false
				c.wroteStartA = true
			}
		} else {
			c.timerA--
		}
	}

	taUnderflowed := c.startA && c.timerA == 0
	bSource := c.crb & crbINMODE
	if c.startB {
		switch bSource {
		case 0x00: // phi2
			if c.timerB == 0 {
				c.timerB = c.latchB
				c.shadowFlag |= icrTB
				c.wroteFlag = true
				if c.oneShotB {
					c.shadowStartB = false
					c.wroteStartB = true
				}
			} else {
				c.timerB--
			}
		case 0x40, 0x60: // timer A underflow (0x40) or CNT-gated TA underflow (0x60, CNT not modelled so treated the same)
			if taUnderflowed {
				if c.timerB == 0 {
					c.timerB = c.latchB
					c.shadowFlag |= icrTB
					c.wroteFlag = true
					if c.oneShotB {
						c.shadowStartB = false
						c.wroteStartB = true
					}
				} else {
					c.timerB--
				}
			}
		}
	}

	c.todCycles++
	// phi2 is ~1MHz so ~1,000,000 cycles per second; advance tenths every
	// ~100,000 cycles regardless of the 50/60Hz CRA select, which only
	// matters for real-time accuracy the core doesn't need to reproduce
	// exactly (tape/clock-accurate TOD is outside the documented testable
	// properties).
	if c.todCycles >= 100000 {
		c.todCycles = 0
		c.advanceTOD()
	}

	return nil
}

func (c *Chip) advanceTOD() {
	c.todTenths++
	if c.todTenths > 9 {
		c.todTenths = 0
		c.todSec = bcdInc(c.todSec, 0x59)
		if c.todSec == 0 {
			c.todMin = bcdInc(c.todMin, 0x59)
			if c.todMin == 0 {
				c.todHr = bcdInc(c.todHr&0x7F, 0x11) | (c.todHr & 0x80)
			}
		}
	}
	if c.todTenths == c.alarmTenths && c.todSec == c.alarmSec && c.todMin == c.alarmMin && c.todHr == c.alarmHr {
		c.shadowFlag |= icrALARM
		c.wroteFlag = true
	}
}

func bcdInc(v, max uint8) uint8 {
	if v >= max {
		return 0
	}
	v++
	if v&0x0F > 9 {
		v += 6
	}
	return v
}

// TickDone commits shadow register writes and ICR flag updates queued
// during Tick() / Write(), in the same ordering discipline as the 6532
// PIA: DDRs, then start bits, then latch reloads, then interrupt flags.
func (c *Chip) TickDone() {
	if c.wroteDDR {
		c.ddrA, c.ddrB = c.shadowDDRA, c.shadowDDRB
		c.wroteDDR = false
	}
	if c.wroteStartA {
		c.startA = c.shadowStartA
		c.wroteStartA = false
	}
	if c.wroteStartB {
		c.startB = c.shadowStartB
		c.wroteStartB = false
	}
	if c.wroteLatchA {
		c.latchA = c.shadowLatchA
		c.wroteLatchA = false
	}
	if c.wroteLatchB {
		c.latchB = c.shadowLatchB
		c.wroteLatchB = false
	}
	if c.reloadA {
		c.timerA = c.latchA
		c.reloadA = false
	}
	if c.reloadB {
		c.timerB = c.latchB
		c.reloadB = false
	}
	if c.wroteFlag {
		c.icrFlags |= c.shadowFlag
		c.shadowFlag = 0
		c.wroteFlag = false
	}
	if c.icrFlags&c.icrMask != 0 {
		c.irq.Set(c.name, true)
	}
}

// Raised reports whether this CIA currently has the IRQ line asserted.
func (c *Chip) Raised() bool {
	return c.icrFlags&c.icrMask != 0
}

// PortAOut and PortBOut expose the chip's externally-driven port levels
// (output bits from the port register, input bits passed through) for
// wiring into other devices that watch a CIA port directly -- the
// keyboard matrix's column select (CIA1 PRA) and the VIC bank select bits
// plus serial bus lines (CIA2 PRA).
func (c *Chip) PortAOut() uint8 { return c.portAOut() }
func (c *Chip) PortBOut() uint8 { return c.portBOut() }

// Debug returns a one-line trace of timer and interrupt state when the chip
// was constructed with Debug: true, matching the rest of the stack's
// debug-gated logging convention.
func (c *Chip) Debug() string {
	if !c.debug {
		return ""
	}
	return fmt.Sprintf("%.6d TA=%.4X TB=%.4X ICR=%.2X/%.2X", c.clocks, c.timerA, c.timerB, c.icrFlags, c.icrMask)
}

// State is a snapshot of everything that determines this CIA's future
// ticking behavior, used by the machine package's snapshot/restore
// (Testable Property 7).
type State struct {
	PortA, PortB         uint8
	DDRA, DDRB           uint8
	TimerA, TimerB       uint16
	LatchA, LatchB       uint16
	StartA, StartB       bool
	OneShotA, OneShotB   bool
	CRA, CRB             uint8
	TODTenths, TODSec, TODMin, TODHr             uint8
	AlarmTenths, AlarmSec, AlarmMin, AlarmHr     uint8
	SDR                  uint8
	ICRMask, ICRFlags    uint8
}

// State returns a snapshot of the chip's register and timer state.
func (c *Chip) State() State {
	return State{
		PortA: c.portA, PortB: c.portB, DDRA: c.ddrA, DDRB: c.ddrB,
		TimerA: c.timerA, TimerB: c.timerB, LatchA: c.latchA, LatchB: c.latchB,
		StartA: c.startA, StartB: c.startB, OneShotA: c.oneShotA, OneShotB: c.oneShotB,
		CRA: c.cra, CRB: c.crb,
		TODTenths: c.todTenths, TODSec: c.todSec, TODMin: c.todMin, TODHr: c.todHr,
		AlarmTenths: c.alarmTenths, AlarmSec: c.alarmSec, AlarmMin: c.alarmMin, AlarmHr: c.alarmHr,
		SDR: c.sdr, ICRMask: c.icrMask, ICRFlags: c.icrFlags,
	}
}

// SetState restores a previously captured snapshot.
func (c *Chip) SetState(s State) {
	c.portA, c.portB, c.ddrA, c.ddrB = s.PortA, s.PortB, s.DDRA, s.DDRB
	c.timerA, c.timerB, c.latchA, c.latchB = s.TimerA, s.TimerB, s.LatchA, s.LatchB
	c.startA, c.startB, c.oneShotA, c.oneShotB = s.StartA, s.StartB, s.OneShotA, s.OneShotB
	c.cra, c.crb = s.CRA, s.CRB
	c.todTenths, c.todSec, c.todMin, c.todHr = s.TODTenths, s.TODSec, s.TODMin, s.TODHr
	c.alarmTenths, c.alarmSec, c.alarmMin, c.alarmHr = s.AlarmTenths, s.AlarmSec, s.AlarmMin, s.AlarmHr
	c.sdr, c.icrMask, c.icrFlags = s.SDR, s.ICRMask, s.ICRFlags
}

func (c *Chip) Parent() memory.Bank { return c.parent }
func (c *Chip) DatabusVal() uint8   { return c.databusVal }
