// Package machine wires the MMU, CPU, two CIAs, VIC and SID into a complete
// Commodore 64 and drives them in lock-step per spec §4.7: unlike the
// teacher's Atari 2600 (whose CPU/PIA run at 1/3 the TIA's clock), every
// C64 chip advances on the same ~1 MHz phi2 cycle, so Tick() ticks each
// chip exactly once per call with no clock-divider bookkeeping.
package machine

import (
	"errors"
	"fmt"
	"log"

	"github.com/jmchacon/c64core/cia"
	"github.com/jmchacon/c64core/cpu"
	"github.com/jmchacon/c64core/io"
	"github.com/jmchacon/c64core/memory"
	"github.com/jmchacon/c64core/mmu"
	"github.com/jmchacon/c64core/pin"
	"github.com/jmchacon/c64core/sid"
	"github.com/jmchacon/c64core/vic"
)

// KeyboardMatrix implements the C64's 8x8 keyboard scan: CIA1 port A
// (output) selects one or more columns active-low, CIA1 port B (input)
// reads back the row state for the selected columns, also active-low.
type KeyboardMatrix struct {
	keys [8][8]bool
	cia1 *cia.Chip
}

// SetKey sets or clears a single matrix position (col/row 0-7).
func (k *KeyboardMatrix) SetKey(col, row int, pressed bool) {
	k.keys[col][row] = pressed
}

// Input implements io.Port8, returning CIA1 port B's externally driven
// value given the column currently selected on port A.
func (k *KeyboardMatrix) Input() uint8 {
	if k.cia1 == nil {
		return 0xFF
	}
	cols := k.cia1.PortAOut()
	out := uint8(0xFF)
	for col := 0; col < 8; col++ {
		if cols&(1<<uint(col)) != 0 {
			continue // column not selected (active low)
		}
		for row := 0; row < 8; row++ {
			if k.keys[col][row] {
				out &^= 1 << uint(row)
			}
		}
	}
	return out
}

// CartridgeDef describes an optional generic ROM cartridge. Custom cartridge
// bus logic is out of scope (spec §1 Non-goals); only the GAME/EXROM-driven
// 8K/16K/ultimax ROM mapping is modelled.
type CartridgeDef struct {
	Lo   []uint8 // ROML image, mapped at $8000 when EXROM is asserted
	Hi   []uint8 // ROMH image, mapped at $A000 (16K cart) or $E000 (ultimax)
	Game bool    // logical (non-inverted) GAME line level
}

// C64Def collects a machine's wiring and ROM images.
type C64Def struct {
	Basic, Kernal, Char []uint8 // 8K, 8K, 4K ROM images respectively
	Cart                *CartridgeDef

	Standard vic.Standard

	Joystick2 io.Port8 // shares CIA1 port A with the keyboard column select, matching real wiring

	Debug bool
}

// C64 is a complete, powered-on Commodore 64 core.
type C64 struct {
	registry *pin.Registry

	ram    memory.Bank
	color  memory.Bank
	mmu    *mmu.MMU
	cpu    *cpu.Chip
	cia1   *cia.Chip
	cia2   *cia.Chip
	vic    *vic.Chip
	sid    *sid.Chip

	keyboard *KeyboardMatrix

	debug bool
}

// vicMemory gives the VIC its own 16-bit view of system RAM with the
// character ROM shadowed in at $1000-$1FFF/$9000-$9FFF (banks 0 and 2),
// independent of whatever the CPU's CHAREN/LORAM/HIRAM bits currently
// expose -- the VIC always sees character data there regardless of what
// the CPU is banked to.
type vicMemory struct {
	ram  memory.Bank
	char memory.Bank
}

func (v *vicMemory) Read(addr uint16) uint8 {
	bank := addr & 0xC000
	local := addr & 0x3FFF
	if (bank == 0x0000 || bank == 0x8000) && local >= 0x1000 && local < 0x2000 {
		return v.char.Read(local - 0x1000)
	}
	return v.ram.Read(addr)
}
func (v *vicMemory) Write(addr uint16, val uint8) { v.ram.Write(addr, val) }
func (v *vicMemory) PowerOn()                     {}
func (v *vicMemory) Parent() memory.Bank          { return nil }
func (v *vicMemory) DatabusVal() uint8            { return 0 }

// Init constructs and powers on a complete C64 from the given ROM images and
// wiring.
func Init(def *C64Def) (*C64, error) {
	if len(def.Basic) != 8192 {
		return nil, errors.New("machine: Basic ROM must be 8192 bytes")
	}
	if len(def.Kernal) != 8192 {
		return nil, errors.New("machine: Kernal ROM must be 8192 bytes")
	}
	if len(def.Char) != 4096 {
		return nil, errors.New("machine: Char ROM must be 4096 bytes")
	}

	registry := pin.NewRegistry()

	ramBank, err := memory.New8BitRAMBank(1<<16, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: can't create RAM: %v", err)
	}
	basicBank, err := memory.NewROMBank(def.Basic, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: can't create BASIC ROM: %v", err)
	}
	kernalBank, err := memory.NewROMBank(def.Kernal, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: can't create KERNAL ROM: %v", err)
	}
	charBank, err := memory.NewROMBank(def.Char, nil)
	if err != nil {
		return nil, fmt.Errorf("machine: can't create char ROM: %v", err)
	}
	colorBank := memory.NewColorRAMBank(nil)

	var cartLoBank, cartHiBank memory.Bank
	hasCart := def.Cart != nil
	cartGame := true
	if hasCart {
		cartGame = def.Cart.Game
		if len(def.Cart.Lo) > 0 {
			if cartLoBank, err = memory.NewROMBank(def.Cart.Lo, nil); err != nil {
				return nil, fmt.Errorf("machine: can't create cartridge ROML: %v", err)
			}
		}
		if len(def.Cart.Hi) > 0 {
			if cartHiBank, err = memory.NewROMBank(def.Cart.Hi, nil); err != nil {
				return nil, fmt.Errorf("machine: can't create cartridge ROMH: %v", err)
			}
		}
	}

	keyboard := &KeyboardMatrix{}

	vicChip, err := vic.Init(&vic.Def{
		Standard: def.Standard,
		Mem:      &vicMemory{ram: ramBank, char: charBank},
		Color:    colorBank,
		IRQ:      registry.Get(pin.IRQ),
		BA:       registry.Get(pin.BA),
		AEC:      registry.Get(pin.AEC),
		Name:     "vic",
		Debug:    def.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize VIC: %v", err)
	}

	sidChip, err := sid.Init(&sid.Def{Debug: def.Debug})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize SID: %v", err)
	}

	cia1Chip, err := cia.Init(&cia.Def{
		PortA: def.Joystick2,
		PortB: keyboard,
		IRQ:   registry.Get(pin.IRQ),
		Name:  "cia1",
		Debug: def.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize CIA1: %v", err)
	}
	keyboard.cia1 = cia1Chip

	cia2Chip, err := cia.Init(&cia.Def{
		IRQ:   registry.Get(pin.NMI),
		Name:  "cia2",
		Debug: def.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize CIA2: %v", err)
	}

	ioBank := memory.NewIOBank(vicChip, sidChip, cia1Chip, cia2Chip, colorBank, ramBank)

	m, err := mmu.Init(&mmu.Def{
		Ram:    ramBank,
		Basic:  basicBank,
		Kernal: kernalBank,
		Char:   charBank,
		Io:     ioBank,
		CartLo: cartLoBank,
		CartHi: cartHiBank,
	})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize MMU: %v", err)
	}

	c := &C64{
		registry: registry,
		ram:      ramBank,
		color:    colorBank,
		mmu:      m,
		cia1:     cia1Chip,
		cia2:     cia2Chip,
		vic:      vicChip,
		sid:      sidChip,
		keyboard: keyboard,
		debug:    def.Debug,
	}

	exrom, game := Mode(hasCart, cartGame, cartLoBank != nil || cartHiBank != nil)

	cpuChip, err := cpu.Init(&cpu.ChipDef{
		Cpu: cpu.CPU_NMOS_6510,
		Ram: m,
		Irq: registry.Get(pin.IRQ),
		Nmi: registry.Get(pin.NMI),
		BA:  registry.Get(pin.BA),
		AEC: registry.Get(pin.AEC),
		PortChange: func(ddr, port uint8) {
			c.switchBanks(ddr, port, game, exrom)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("machine: can't initialize CPU: %v", err)
	}
	c.cpu = cpuChip
	// The MMU's initial bank assignment assumed no cartridge; recompute now
	// that the cartridge's GAME/EXROM levels (if any) are known.
	c.switchBanks(cpuChip.PortDDR(), cpuChip.PortRead(), game, exrom)

	return c, nil
}

// Mode derives the logical (non-inverted) GAME/EXROM bits from a
// cartridge's physical presence and its own reported levels: no cartridge
// means both lines read high (inactive).
func Mode(hasCart, cartGame, hasAnyROM bool) (exrom, game bool) {
	if !hasCart || !hasAnyROM {
		return true, true
	}
	return !hasAnyROM, cartGame
}

// switchBanks recomputes the MMU's bank map from the 6510 processor port's
// LORAM/HIRAM/CHAREN bits plus the cartridge's fixed GAME/EXROM levels.
func (c *C64) switchBanks(ddr, port uint8, game, exrom bool) {
	readVal := (port & ddr) | (0xFF &^ ddr)
	mode := mmu.Mode(0)
	if readVal&0x01 != 0 {
		mode |= mmu.ModeLORAM
	}
	if readVal&0x02 != 0 {
		mode |= mmu.ModeHIRAM
	}
	if readVal&0x04 != 0 {
		mode |= mmu.ModeCHAREN
	}
	if game {
		mode |= mmu.ModeGAME
	}
	if exrom {
		mode |= mmu.ModeEXROM
	}
	c.mmu.SwitchBanks(mode)
}

// Tick advances the machine by one master cycle in the documented order:
// VIC, CPU (gated internally by the shared BA/AEC pins), CIA1, CIA2
// (after which the VIC's bank is resynced from CIA2 port A), SID.
func (c *C64) Tick() error {
	if err := c.vic.Tick(); err != nil {
		return fmt.Errorf("VIC tick: %v", err)
	}
	c.vic.TickDone()
	if c.debug {
		if d := c.vic.Debug(); d != "" {
			log.Printf("VIC: %s", d)
		}
	}

	if err := c.cpu.Tick(); err != nil {
		return fmt.Errorf("CPU tick: %v", err)
	}
	c.cpu.TickDone()
	if c.debug {
		if d := c.cpu.Debug(); d != "" {
			log.Printf("CPU: %s", d)
		}
	}

	if err := c.cia1.Tick(); err != nil {
		return fmt.Errorf("CIA1 tick: %v", err)
	}
	c.cia1.TickDone()
	if c.debug {
		if d := c.cia1.Debug(); d != "" {
			log.Printf("CIA1: %s", d)
		}
	}

	if err := c.cia2.Tick(); err != nil {
		return fmt.Errorf("CIA2 tick: %v", err)
	}
	c.cia2.TickDone()
	if c.debug {
		if d := c.cia2.Debug(); d != "" {
			log.Printf("CIA2: %s", d)
		}
	}
	// CIA2 port A bits 0-1 (inverted) select the VIC's 16K bank, per spec §4.5.
	inv := ^c.cia2.PortAOut() & 0x03
	c.vic.SetBank(uint16(inv) << 14)

	if err := c.sid.Tick(); err != nil {
		return fmt.Errorf("SID tick: %v", err)
	}
	c.sid.TickDone()
	if c.debug {
		if d := c.sid.Debug(); d != "" {
			log.Printf("SID: %s", d)
		}
	}

	return nil
}

// StepInstruction runs Tick() until the CPU reports an instruction
// boundary, per spec §4.7's step_instruction().
func (c *C64) StepInstruction() error {
	for {
		if err := c.Tick(); err != nil {
			return err
		}
		if c.cpu.InstructionDone() {
			return nil
		}
	}
}

// StepFrame runs Tick() until the VIC's raster line wraps back to 0, per
// spec §4.7's step_frame().
func (c *C64) StepFrame() error {
	for {
		prev := c.vic.Line()
		if err := c.Tick(); err != nil {
			return err
		}
		if prev != 0 && c.vic.Line() == 0 {
			return nil
		}
	}
}

// CPU, VIC, SID, CIA1, CIA2 expose the wired chip instances for callers
// that need direct register access (loaders, debuggers, tests).
func (c *C64) CPU() *cpu.Chip    { return c.cpu }
func (c *C64) VIC() *vic.Chip    { return c.vic }
func (c *C64) SID() *sid.Chip    { return c.sid }
func (c *C64) CIA1() *cia.Chip   { return c.cia1 }
func (c *C64) CIA2() *cia.Chip   { return c.cia2 }
func (c *C64) Keyboard() *KeyboardMatrix { return c.keyboard }

// RAM exposes the system RAM bank directly, for loaders that need to place
// a program image at an absolute address before starting execution.
func (c *C64) RAM() memory.Bank { return c.ram }
