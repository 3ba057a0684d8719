// Package mmu implements the C64 bank switcher: the 82S100 PLA that maps
// each of the sixteen 4 KiB CPU address regions to a concrete memory.Bank
// based on the processor-port LORAM/HIRAM/CHAREN bits and the cartridge
// port's GAME/EXROM lines (spec §4.2, §9(a)).
package mmu

import (
	"fmt"

	"github.com/jmchacon/c64core/memory"
)

// Mode is the 5-bit composite the PLA switches on: bit0=LORAM, bit1=HIRAM,
// bit2=CHAREN, bit3=GAME, bit4=EXROM. GAME/EXROM are active-low on the real
// expansion port; callers pass the logical (non-inverted) bit here, i.e.
// 1 means the line is high (no cartridge signal asserted).
type Mode uint8

const (
	ModeLORAM Mode = 1 << iota
	ModeHIRAM
	ModeCHAREN
	ModeGAME
	ModeEXROM
)

// region identifies one of the sixteen 4 KiB address regions.
type region int

const (
	regLo0 region = iota // $0000-$0FFF, always RAM (zero page / stack live here)
	regLo1               // $1000-$1FFF
	regLo2               // $2000-$2FFF
	regLo3               // $3000-$3FFF
	regLo4               // $4000-$4FFF
	regLo5               // $5000-$5FFF
	regLo6               // $6000-$6FFF
	regLo7               // $7000-$7FFF
	regCartLo            // $8000-$8FFF
	regCartLo2           // $9000-$9FFF
	regCartHi1           // $A000-$AFFF
	regCartHi2           // $B000-$BFFF
	regIOLo              // $C000-$CFFF, always RAM
	regIO                // $D000-$DFFF
	regKernalLo          // $E000-$EFFF
	regKernalHi          // $F000-$FFFF
)

const numRegions = 16

// MMU owns the installed banks and the current 16-region map.
type MMU struct {
	ram     memory.Bank
	basic   memory.Bank
	kernal  memory.Bank
	char    memory.Bank
	io      memory.Bank
	cartLo  memory.Bank // ROML, $8000, present only if a cartridge is mounted
	cartHi  memory.Bank // ROMH, $A000 or $E000 depending on GAME/EXROM
	hasCart bool

	mode region16
	cur  Mode
}

type region16 [numRegions]memory.Bank

// Def collects the banks the MMU wires together. Ram, Basic, Kernal, Char,
// and Io must be non-nil; CartLo/CartHi are optional (nil when no
// cartridge is mounted).
type Def struct {
	Ram    memory.Bank
	Basic  memory.Bank
	Kernal memory.Bank
	Char   memory.Bank
	Io     memory.Bank
	CartLo memory.Bank
	CartHi memory.Bank
}

// ConfigError reports a malformed MMU configuration, part of the
// ConfigError taxonomy in spec §7.
type ConfigError struct {
	msg string
}

func (e ConfigError) Error() string { return e.msg }

// Init constructs an MMU and performs the initial bank switch assuming the
// canonical post-reset mode (LORAM=HIRAM=CHAREN=1, no cartridge: GAME=EXROM=1).
func Init(def *Def) (*MMU, error) {
	if def.Ram == nil || def.Basic == nil || def.Kernal == nil || def.Char == nil || def.Io == nil {
		return nil, ConfigError{"mmu: Ram, Basic, Kernal, Char and Io banks must all be non-nil"}
	}
	m := &MMU{
		ram:     def.Ram,
		basic:   def.Basic,
		kernal:  def.Kernal,
		char:    def.Char,
		io:      def.Io,
		cartLo:  def.CartLo,
		cartHi:  def.CartHi,
		hasCart: def.CartLo != nil || def.CartHi != nil,
	}
	m.SwitchBanks(ModeLORAM | ModeHIRAM | ModeCHAREN | ModeGAME | ModeEXROM)
	return m, nil
}

// SwitchBanks recomputes the 16-region map for the given mode per the
// documented C64 PLA truth table. Cartridge-bearing modes are resolved only
// when a cartridge bank was supplied at Init; otherwise GAME/EXROM are
// treated as if no cartridge were present (generic ROM mapping only, per
// spec's non-goal on custom-bus cartridges).
func (m *MMU) SwitchBanks(mode Mode) {
	m.cur = mode
	loram := mode&ModeLORAM != 0
	hiram := mode&ModeHIRAM != 0
	charen := mode&ModeCHAREN != 0
	game := mode&ModeGAME != 0
	exrom := mode&ModeEXROM != 0

	var banks region16
	for i := range banks {
		banks[i] = m.ram
	}

	cartLoPresent := m.hasCart && !exrom // EXROM asserted (0) means ROML present
	cart16k := m.hasCart && !exrom && !game

	switch {
	case cartLoPresent:
		if m.cartLo != nil {
			banks[regCartLo] = m.cartLo
			banks[regCartLo2] = m.cartLo
		}
	}

	switch {
	case cart16k && m.cartHi != nil:
		banks[regCartHi1] = m.cartHi
		banks[regCartHi2] = m.cartHi
	case hiram && loram:
		banks[regCartHi1] = m.basic
		banks[regCartHi2] = m.basic
	}

	if hiram {
		banks[regKernalLo] = m.kernal
		banks[regKernalHi] = m.kernal
	} else {
		banks[regKernalLo] = m.ram
		banks[regKernalHi] = m.ram
	}
	if m.hasCart && !game && exrom {
		// Ultimax mode: ROMH replaces the KERNAL at $E000-$FFFF and ROML maps
		// at $8000-$9FFF. The other regions keep the mapping computed above
		// (RAM, or BASIC at $A000-$BFFF when LORAM and HIRAM are set); no
		// region is left unmapped.
		if m.cartHi != nil {
			banks[regKernalLo] = m.cartHi
			banks[regKernalHi] = m.cartHi
		}
		if m.cartLo != nil {
			banks[regCartLo] = m.cartLo
			banks[regCartLo2] = m.cartLo
		}
	}

	// $D000-$DFFF: RAM when both LORAM and HIRAM are low (the PLA never
	// exposes I/O or CHARROM there); otherwise CHAREN multiplexes CHARROM
	// vs I/O.
	if loram || hiram {
		if charen {
			banks[regIO] = m.io
		} else {
			banks[regIO] = m.char
		}
	} else {
		banks[regIO] = m.ram
	}

	m.mode = banks
}

// Read dispatches a CPU read to the bank currently mapped for addr's region.
func (m *MMU) Read(addr uint16) uint8 {
	return m.mode[addr>>12].Read(addr)
}

// Write dispatches a CPU write to the bank currently mapped for addr's region.
func (m *MMU) Write(addr uint16, val uint8) {
	m.mode[addr>>12].Write(addr, val)
}

// PowerOn resets every installed bank and re-applies the canonical
// post-reset mode. Satisfies memory.Bank so the MMU itself can serve as the
// CPU's Ram.
func (m *MMU) PowerOn() {
	m.ram.PowerOn()
	for _, b := range []memory.Bank{m.basic, m.kernal, m.char, m.io, m.cartLo, m.cartHi} {
		if b != nil {
			b.PowerOn()
		}
	}
	m.SwitchBanks(ModeLORAM | ModeHIRAM | ModeCHAREN | ModeGAME | ModeEXROM)
}

// Parent satisfies memory.Bank; the MMU is always the top of its chain.
func (m *MMU) Parent() memory.Bank { return nil }

// DatabusVal returns the last value seen on the bus by the bank mapped at
// $0000-$0FFF (always RAM); accesses served by other banks are not reflected.
func (m *MMU) DatabusVal() uint8 {
	return m.mode[0].DatabusVal()
}

// CurrentMode returns the mode bits used for the last SwitchBanks call.
func (m *MMU) CurrentMode() Mode { return m.cur }

// BankAt returns the bank currently mapped to addr's 4 KiB region, useful
// for tests asserting the PLA truth table (Testable Property 3).
func (m *MMU) BankAt(addr uint16) memory.Bank {
	return m.mode[addr>>12]
}

// State is a snapshot of the MMU's currently switched mode, used by the
// machine package's snapshot/restore (Testable Property 7). The underlying
// banks' own contents (RAM, color RAM) are snapshotted separately by the
// machine package since the MMU only holds references to them.
type State struct {
	Mode Mode
}

// State returns a snapshot of the MMU's current mode.
func (m *MMU) State() State { return State{Mode: m.cur} }

// SetState restores a previously captured mode and recomputes the bank map.
func (m *MMU) SetState(s State) { m.SwitchBanks(s.Mode) }

func (m *MMU) String() string {
	return fmt.Sprintf("mode=%05b", m.cur)
}
