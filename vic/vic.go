// Package vic implements the MOS 6567/6569 VIC-II video chip: the raster
// scanline scheduler, bad-line DMA, character/bitmap rendering, sprites,
// collision detection and the raster/light-pen interrupt source, per spec
// §4.5.
package vic

import (
	"fmt"
	"image"
	"image/color"

	"github.com/jmchacon/c64core/memory"
)

// Standard selects the PAL or NTSC raster geometry the chip runs.
type Standard int

const (
	PAL Standard = iota
	NTSC
)

const (
	palCyclesPerLine = 63
	palLines         = 312
	ntscCyclesPerLine = 65
	ntscLines         = 263

	firstVisibleLine = 0
	screenWidth      = 320
	screenHeight     = 200

	numSprites           = 8
	spriteDMACyclesTotal = numSprites * 2 // p-access + s-access pair per sprite, stolen from the tail of every line
)

// Register offsets within the 64-byte mirrored VIC register file.
const (
	regSprite0X = 0x00
	regSprite0Y = 0x01
	// ... sprites 1-7 follow at +2 each through regSprite7Y = 0x0F.
	regSpriteXMSB = 0x10
	regCtrl1      = 0x11
	regRaster     = 0x12
	regLightPenX  = 0x13
	regLightPenY  = 0x14
	regSpriteEnable = 0x15
	regCtrl2      = 0x16
	regSpriteYExpand = 0x17
	regMemPtrs    = 0x18
	regIRQ        = 0x19
	regIRQEnable  = 0x1A
	regSpritePriority = 0x1B
	regSpriteMulticolor = 0x1C
	regSpriteXExpand = 0x1D
	regSpriteSpriteCollision = 0x1E
	regSpriteBackgroundCollision = 0x1F
	regBorderColor = 0x20
	regBackground0 = 0x21
	regBackground1 = 0x22
	regBackground2 = 0x23
	regBackground3 = 0x24
	regSpriteMulti0 = 0x25
	regSpriteMulti1 = 0x26
	regSpriteColor0 = 0x27 // through 0x2E for sprites 0-7
)

const (
	ctrl1RST8   = 0x80
	ctrl1ECM    = 0x40
	ctrl1BMM    = 0x20
	ctrl1DEN    = 0x10
	ctrl1RSEL   = 0x08
	ctrl1YSCROLL = 0x07

	ctrl2RES     = 0x20
	ctrl2MCM     = 0x10
	ctrl2CSEL    = 0x08
	ctrl2XSCROLL = 0x07

	irqRST = 0x01
	irqMBC = 0x02
	irqMMC = 0x04
	irqILP = 0x08
	irqIR  = 0x80
)

// IRQSink is satisfied by pin.Pin.
type IRQSink interface {
	Set(producer string, asserted bool)
}

// BASink is satisfied by pin.Pin; the VIC asserts BA three cycles ahead of a
// bad line so the CPU can be held off the bus in time for c-access DMA.
type BASink interface {
	Set(producer string, asserted bool)
}

// AECSink is satisfied by pin.Pin; the VIC asserts AEC once it actually owns
// the bus for c-access/g-access or sprite p-access/s-access DMA.
type AECSink interface {
	Set(producer string, asserted bool)
}

// Chip is a complete VIC-II.
type Chip struct {
	name string
	std  Standard
	irq  IRQSink
	ba   BASink
	aec  AECSink

	// mem is read with full 16-bit addresses: the base of the bank selected
	// externally by CIA2 port A bits 0-1 (inverted) plus the VIC's 14-bit
	// offset. The caller (machine package) is responsible for keeping bank in sync.
	mem   memory.Bank
	color memory.Bank // the 1K color RAM nibble bank, addressed independently of the 16K bank window
	bank  uint16       // bank base address (0, 0x4000, 0x8000 or 0xC000)

	cycle int // 0..cyclesPerLine-1
	line  int // 0..totalLines-1

	rasterCmp uint16

	ctrl1, ctrl2 uint8
	memPtrs      uint8
	spriteEnable uint8
	spriteXMSB   uint8
	spriteYExpand uint8
	spriteXExpand uint8
	spritePriority uint8
	spriteMulticolorSel uint8

	spriteX [8]uint16
	spriteY [8]uint8

	spriteDMA  [numSprites]bool    // whether this sprite is within its active display range this line
	spritePtr  [numSprites]uint8   // data pointer fetched by this line's p-access
	spriteData [numSprites][3]uint8 // the 3 bytes fetched by this line's s-access (one sprite row)

	borderColor uint8
	background  [4]uint8
	spriteMulti [2]uint8
	spriteColor [8]uint8

	irqFlags  uint8
	irqEnable uint8

	collSS, collSB uint8

	lightPenX, lightPenY uint8

	badLine bool
	vmatrix [40]uint8 // latched character pointers for the current text row
	cmatrix [40]uint8 // latched color RAM nibbles for the current text row

	frame *image.NRGBA

	clocks int
	debug  bool
}

// Def collects a VIC's wiring.
type Def struct {
	Standard Standard
	Mem      memory.Bank // the 64K address space the VIC reads from; each access is the bank base plus a 14-bit offset
	Color    memory.Bank // the 1K color RAM nibble bank (independent of the bank window)
	IRQ      IRQSink
	BA       BASink
	AEC      AECSink
	Name     string
	Debug    bool
}

// Init returns a powered-on VIC.
func Init(d *Def) (*Chip, error) {
	c := &Chip{
		name:  d.Name,
		std:   d.Standard,
		irq:   d.IRQ,
		ba:    d.BA,
		aec:   d.AEC,
		mem:   d.Mem,
		color: d.Color,
		frame: image.NewNRGBA(image.Rect(0, 0, screenWidth, screenHeight)),
		debug: d.Debug,
	}
	c.PowerOn()
	return c, nil
}

// PowerOn resets chip state.
func (c *Chip) PowerOn() {
	c.cycle, c.line = 0, 0
	c.ctrl1, c.ctrl2 = 0, 0
	c.irqFlags, c.irqEnable = 0, 0
	c.collSS, c.collSB = 0, 0
	c.rasterCmp = 0
	if c.irq != nil {
		c.irq.Set(c.name, false)
	}
}

func (c *Chip) cyclesPerLine() int {
	if c.std == NTSC {
		return ntscCyclesPerLine
	}
	return palCyclesPerLine
}

func (c *Chip) totalLines() int {
	if c.std == NTSC {
		return ntscLines
	}
	return palLines
}

// SetBank sets the 14-bit VIC bank base address. The machine package calls
// this whenever CIA2 port A bits 0-1 change (the bits are active-low: value
// 3 selects bank 0, 0 selects bank 3).
func (c *Chip) SetBank(base uint16) {
	c.bank = base
}

// Raised reports whether the VIC currently has the IRQ line asserted.
func (c *Chip) Raised() bool {
	return c.irqFlags&c.irqEnable != 0
}

// Line returns the current raster line (0..totalLines-1).
func (c *Chip) Line() int { return c.line }

// State is a snapshot of everything that determines this VIC's future
// ticking/rendering behavior, used by the machine package's
// snapshot/restore (Testable Property 7).
type State struct {
	Bank                                         uint16
	Cycle, Line                                  int
	RasterCmp                                    uint16
	Ctrl1, Ctrl2                                 uint8
	MemPtrs, SpriteEnable                        uint8
	SpriteXMSB, SpriteYExpand, SpriteXExpand     uint8
	SpritePriority, SpriteMulticolorSel          uint8
	SpriteX                                      [8]uint16
	SpriteY                                      [8]uint8
	BorderColor                                  uint8
	Background                                   [4]uint8
	SpriteMulti                                  [2]uint8
	SpriteColor                                  [8]uint8
	IRQFlags, IRQEnable                          uint8
	CollSS, CollSB                               uint8
	BadLine                                      bool
	Vmatrix, Cmatrix                             [40]uint8
	SpriteDMA                                    [numSprites]bool
	SpritePtr                                    [numSprites]uint8
	SpriteData                                   [numSprites][3]uint8
	FramePix                                     []uint8
}

// State returns a snapshot of the chip's raster, register and pixel state.
func (c *Chip) State() State {
	return State{
		Bank: c.bank, Cycle: c.cycle, Line: c.line, RasterCmp: c.rasterCmp,
		Ctrl1: c.ctrl1, Ctrl2: c.ctrl2, MemPtrs: c.memPtrs, SpriteEnable: c.spriteEnable,
		SpriteXMSB: c.spriteXMSB, SpriteYExpand: c.spriteYExpand, SpriteXExpand: c.spriteXExpand,
		SpritePriority: c.spritePriority, SpriteMulticolorSel: c.spriteMulticolorSel,
		SpriteX: c.spriteX, SpriteY: c.spriteY,
		BorderColor: c.borderColor, Background: c.background, SpriteMulti: c.spriteMulti, SpriteColor: c.spriteColor,
		IRQFlags: c.irqFlags, IRQEnable: c.irqEnable, CollSS: c.collSS, CollSB: c.collSB,
		BadLine: c.badLine, Vmatrix: c.vmatrix, Cmatrix: c.cmatrix,
		SpriteDMA: c.spriteDMA, SpritePtr: c.spritePtr, SpriteData: c.spriteData,
		FramePix: append([]uint8(nil), c.frame.Pix...),
	}
}

// SetState restores a previously captured snapshot.
func (c *Chip) SetState(s State) {
	c.bank, c.cycle, c.line, c.rasterCmp = s.Bank, s.Cycle, s.Line, s.RasterCmp
	c.ctrl1, c.ctrl2, c.memPtrs, c.spriteEnable = s.Ctrl1, s.Ctrl2, s.MemPtrs, s.SpriteEnable
	c.spriteXMSB, c.spriteYExpand, c.spriteXExpand = s.SpriteXMSB, s.SpriteYExpand, s.SpriteXExpand
	c.spritePriority, c.spriteMulticolorSel = s.SpritePriority, s.SpriteMulticolorSel
	c.spriteX, c.spriteY = s.SpriteX, s.SpriteY
	c.borderColor, c.background, c.spriteMulti, c.spriteColor = s.BorderColor, s.Background, s.SpriteMulti, s.SpriteColor
	c.irqFlags, c.irqEnable, c.collSS, c.collSB = s.IRQFlags, s.IRQEnable, s.CollSS, s.CollSB
	c.badLine, c.vmatrix, c.cmatrix = s.BadLine, s.Vmatrix, s.Cmatrix
	c.spriteDMA, c.spritePtr, c.spriteData = s.SpriteDMA, s.SpritePtr, s.SpriteData
	copy(c.frame.Pix, s.FramePix)
}

// Framebuffer returns the chip's rendering target. The image is mutated in
// place as lines complete; callers should copy it if they need a stable
// snapshot (e.g. for a frame-complete callback).
func (c *Chip) Framebuffer() *image.NRGBA {
	return c.frame
}

// Read services a CPU/IO-bank register read. addr is pre-masked to 0-0x3F.
func (c *Chip) Read(addr uint16) uint8 {
	switch addr {
	case regCtrl1:
		v := c.ctrl1 &^ ctrl1RST8
		if c.line >= 256 {
			v |= ctrl1RST8
		}
		return v
	case regRaster:
		return uint8(c.line & 0xFF)
	case regSpriteXMSB:
		return c.spriteXMSB
	case regSpriteEnable:
		return c.spriteEnable
	case regCtrl2:
		return c.ctrl2 | 0xC0
	case regSpriteYExpand:
		return c.spriteYExpand
	case regMemPtrs:
		return c.memPtrs
	case regIRQ:
		v := c.irqFlags & (irqRST | irqMBC | irqMMC | irqILP)
		if c.irqFlags&c.irqEnable != 0 {
			v |= irqIR
		}
		return v | 0x70
	case regIRQEnable:
		return c.irqEnable | 0xF0
	case regSpritePriority:
		return c.spritePriority
	case regSpriteMulticolor:
		return c.spriteMulticolorSel
	case regSpriteXExpand:
		return c.spriteXExpand
	case regSpriteSpriteCollision:
		v := c.collSS
		c.collSS = 0
		return v
	case regSpriteBackgroundCollision:
		v := c.collSB
		c.collSB = 0
		return v
	case regBorderColor:
		return c.borderColor | 0xF0
	case regBackground0:
		return c.background[0] | 0xF0
	case regBackground1:
		return c.background[1] | 0xF0
	case regBackground2:
		return c.background[2] | 0xF0
	case regBackground3:
		return c.background[3] | 0xF0
	case regSpriteMulti0:
		return c.spriteMulti[0] | 0xF0
	case regSpriteMulti1:
		return c.spriteMulti[1] | 0xF0
	}
	switch {
	case addr <= 0x0F:
		if addr%2 == 0 {
			return uint8(c.spriteX[addr/2] & 0xFF)
		}
		return c.spriteY[addr/2]
	case addr >= regSpriteColor0 && addr <= 0x2E:
		return c.spriteColor[addr-regSpriteColor0] | 0xF0
	}
	return 0xFF
}

// Write services a CPU/IO-bank register write. addr is pre-masked to 0-0x3F.
func (c *Chip) Write(addr uint16, val uint8) {
	switch addr {
	case regCtrl1:
		c.ctrl1 = val
		hi := uint16(0)
		if val&ctrl1RST8 != 0 {
			hi = 0x100
		}
		c.rasterCmp = (c.rasterCmp & 0xFF) | hi
	case regRaster:
		c.rasterCmp = (c.rasterCmp & 0x100) | uint16(val)
	case regSpriteXMSB:
		c.spriteXMSB = val
	case regSpriteEnable:
		c.spriteEnable = val
	case regCtrl2:
		c.ctrl2 = val
	case regSpriteYExpand:
		c.spriteYExpand = val
	case regMemPtrs:
		c.memPtrs = val
	case regIRQ:
		// Writing a 1 to a flag bit clears it; bit 7 is not writable.
		c.irqFlags &^= val & 0x0F
		c.updateIRQ()
	case regIRQEnable:
		c.irqEnable = val & 0x0F
		c.updateIRQ()
	case regSpritePriority:
		c.spritePriority = val
	case regSpriteMulticolor:
		c.spriteMulticolorSel = val
	case regSpriteXExpand:
		c.spriteXExpand = val
	case regSpriteSpriteCollision, regSpriteBackgroundCollision:
		// Read-only on real hardware; writes are ignored.
	case regBorderColor:
		c.borderColor = val & 0x0F
	case regBackground0:
		c.background[0] = val & 0x0F
	case regBackground1:
		c.background[1] = val & 0x0F
	case regBackground2:
		c.background[2] = val & 0x0F
	case regBackground3:
		c.background[3] = val & 0x0F
	case regSpriteMulti0:
		c.spriteMulti[0] = val & 0x0F
	case regSpriteMulti1:
		c.spriteMulti[1] = val & 0x0F
	default:
		switch {
		case addr <= 0x0F:
			if addr%2 == 0 {
				c.spriteX[addr/2] = (c.spriteX[addr/2] & 0x100) | uint16(val)
			} else {
				c.spriteY[addr/2] = val
			}
		case addr >= regSpriteColor0 && addr <= 0x2E:
			c.spriteColor[addr-regSpriteColor0] = val & 0x0F
		}
	}
}

// updateIRQ recomputes the aggregate IRQ output and drives the shared pin.
func (c *Chip) updateIRQ() {
	if c.irq == nil {
		return
	}
	c.irq.Set(c.name, c.irqFlags&c.irqEnable != 0)
}

// isBadLine reports whether the current raster line qualifies for a bad
// line: DEN is set in CTRL1 at the time of the check (DEN set earlier in the
// frame and cleared since does not count), CTRL1 YSCROLL bits 0-2 match
// line&7, and the line falls in the display window $30-$F7, per spec §4.5.
func (c *Chip) isBadLine() bool {
	if c.ctrl1&ctrl1DEN == 0 {
		return false
	}
	if c.line < 0x30 || c.line > 0xF7 {
		return false
	}
	return uint8(c.line)&0x07 == c.ctrl1&ctrl1YSCROLL
}

// Tick advances the chip by one phi2 cycle: raster position, bad-line
// DMA/BA/AEC timing, sprite p-access/s-access DMA, memory accesses, pixel
// output, and interrupt latching.
func (c *Chip) Tick() error {
	c.clocks++
	cyclesPerLine := c.cyclesPerLine()

	if c.cycle == 0 {
		if uint16(c.line) == c.rasterCmp {
			c.irqFlags |= irqRST
			c.updateIRQ()
		}
		for s := 0; s < numSprites; s++ {
			sy := int(c.spriteY[s])
			c.spriteDMA[s] = c.spriteEnable&(1<<uint(s)) != 0 && c.line >= sy && c.line < sy+21
		}
	}

	// BA is asserted for the bad line's whole c-access window (cycles 0-39)
	// and AEC only from cycle 3, giving the CPU its three cycle grace
	// period; the c-accesses themselves start at cycle 0.
	c.badLine = c.isBadLine()
	badLineBA := c.badLine && c.cycle < 40
	badLineAEC := c.badLine && c.cycle >= 3 && c.cycle < 40

	spriteSlotStart := cyclesPerLine - spriteDMACyclesTotal
	inSpriteSlot := c.cycle >= spriteSlotStart
	var spriteIdx, spriteSub int
	if inSpriteSlot {
		slot := c.cycle - spriteSlotStart
		spriteIdx, spriteSub = slot/2, slot%2
	}
	spriteActive := inSpriteSlot && c.spriteDMA[spriteIdx]

	if c.ba != nil {
		c.ba.Set(c.name, badLineBA || spriteActive)
	}
	if c.aec != nil {
		c.aec.Set(c.name, badLineAEC || spriteActive)
	}

	if c.badLine && c.cycle < 40 {
		c.cAccess(c.cycle)
	}
	if spriteActive {
		if spriteSub == 0 {
			c.pAccess(spriteIdx)
			c.sAccess(spriteIdx, 0)
		} else {
			c.sAccess(spriteIdx, 1)
			c.sAccess(spriteIdx, 2)
		}
	}

	if c.cycle == cyclesPerLine-1 {
		if c.line >= 0x30 && c.line < 0x30+screenHeight {
			c.renderLine(c.line - 0x30)
		}
	}

	c.cycle++
	if c.cycle >= cyclesPerLine {
		c.cycle = 0
		c.line++
		if c.line >= c.totalLines() {
			c.line = 0
		}
	}
	return nil
}

// TickDone exists for symmetry with the rest of the chipset's Tick/TickDone
// pairing; the VIC has no cross-cycle shadow state left to commit once Tick
// has run.
func (c *Chip) TickDone() {}

// videoMatrixBase and charBase derive from the memory pointer register.
func (c *Chip) videoMatrixBase() uint16 {
	return c.bank + (uint16(c.memPtrs&0xF0) << 6)
}

func (c *Chip) charBase() uint16 {
	return c.bank + (uint16(c.memPtrs&0x0E) << 10)
}

// cAccess fetches one character pointer + color nibble for the current text
// row during the bad line's DMA window, per spec §4.5.
func (c *Chip) cAccess(col int) {
	row := (c.line - 0x30) / 8
	if row < 0 || row >= 25 {
		return
	}
	addr := c.videoMatrixBase() + uint16(row*40+col)
	c.vmatrix[col] = c.mem.Read(addr)
	if c.color != nil {
		c.cmatrix[col] = c.color.Read(uint16(row*40 + col))
	}
}

// pAccess fetches sprite s's data pointer from the last 8 bytes of the
// current video matrix row, the first of the two DMA cycles a displayed
// sprite steals from the CPU each line.
func (c *Chip) pAccess(s int) {
	ptrAddr := c.videoMatrixBase() + 0x3F8 + uint16(s)
	c.spritePtr[s] = c.mem.Read(ptrAddr)
}

// sAccess fetches one of sprite s's three data bytes for the current
// display row, indexed by the sprite's data pointer and its offset within
// the 63-byte sprite image.
func (c *Chip) sAccess(s, n int) {
	row := c.line - int(c.spriteY[s])
	base := c.bank + uint16(c.spritePtr[s])*64
	c.spriteData[s][n] = c.mem.Read(base + uint16(row*3+n))
}

// renderLine composites one visible scanline into the framebuffer: bitmap
// or character mode and sprite overlay with the documented priority order
// (foreground sprite > foreground graphic > background sprite > background),
// recording collisions as it goes. Multicolor mode (MCM) is not rendered:
// every cell is drawn with one bit per pixel.
func (c *Chip) renderLine(y int) {
	if y < 0 || y >= screenHeight {
		return
	}
	fineY := y % 8
	bmm := c.ctrl1&ctrl1BMM != 0
	mcm := c.ctrl2&ctrl2MCM != 0

	lineSprites := [screenWidth]uint8 // 0 = none, else 1-8
	var spritePixel [screenWidth]bool
	for s := 7; s >= 0; s-- {
		if !c.spriteDMA[s] {
			continue
		}
		sx := int(c.spriteX[s])
		if c.spriteXMSB&(1<<uint(s)) != 0 {
			sx += 256
		}
		for b := 0; b < 3; b++ {
			data := c.spriteData[s][b]
			for bit := 0; bit < 8; bit++ {
				if data&(0x80>>uint(bit)) == 0 {
					continue
				}
				px := sx - 24 + b*8 + bit
				if px < 0 || px >= screenWidth {
					continue
				}
				if spritePixel[px] {
					c.collSS |= 1 << uint(s)
				}
				spritePixel[px] = true
				lineSprites[px] = uint8(s + 1)
			}
		}
	}

	for x := 0; x < screenWidth; x++ {
		col := x / 8
		var fg bool
		var pixelColor uint8
		if col < 40 {
			ch := c.vmatrix[col]
			if bmm {
				data := c.mem.Read(c.charBase() + uint16(ch)*8 + uint16(fineY))
				bit := 7 - (x % 8)
				fg = data&(1<<uint(bit)) != 0
				if fg {
					pixelColor = ch >> 4
				} else {
					pixelColor = ch & 0x0F
				}
			} else {
				data := c.mem.Read(c.charBase() + uint16(ch)*8 + uint16(fineY))
				bit := 7 - (x % 8)
				fg = data&(1<<uint(bit)) != 0
				pixelColor = c.background[0]
				if fg {
					pixelColor = c.cmatrix[col] & 0x0F
				}
				_ = mcm
			}
		} else {
			pixelColor = c.background[0]
		}

		out := c.colorFor(pixelColor)
		if lineSprites[x] != 0 {
			s := lineSprites[x] - 1
			if fg {
				c.collSB |= 1 << s
			}
			front := c.spritePriority&(1<<s) == 0
			if front || !fg {
				out = c.colorFor(c.spriteColor[s])
			}
		}
		c.frame.Set(x, y, out)
	}

	if c.collSS != 0 || c.collSB != 0 {
		if c.collSS != 0 {
			c.irqFlags |= irqMMC
		}
		if c.collSB != 0 {
			c.irqFlags |= irqMBC
		}
		c.updateIRQ()
	}
}

// c64Palette is the standard 16 color VICE-style palette, used purely for
// framebuffer output; register values themselves only ever store the 4 bit
// index.
var c64Palette = [16]color.NRGBA{
	{0, 0, 0, 255}, {255, 255, 255, 255}, {136, 0, 0, 255}, {170, 255, 238, 255},
	{204, 68, 204, 255}, {0, 204, 85, 255}, {0, 0, 170, 255}, {238, 238, 119, 255},
	{221, 136, 85, 255}, {102, 68, 0, 255}, {255, 119, 119, 255}, {51, 51, 51, 255},
	{119, 119, 119, 255}, {170, 255, 102, 255}, {0, 136, 255, 255}, {187, 187, 187, 255},
}

func (c *Chip) colorFor(idx uint8) color.NRGBA {
	return c64Palette[idx&0x0F]
}

// Debug returns a one-line trace of raster position and interrupt state.
func (c *Chip) Debug() string {
	if !c.debug {
		return ""
	}
	return fmt.Sprintf("%.6d line=%.3d cycle=%.2d irq=%.2X/%.2X", c.clocks, c.line, c.cycle, c.irqFlags, c.irqEnable)
}
