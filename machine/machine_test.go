package machine

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/jmchacon/c64core/cpu"
	"github.com/jmchacon/c64core/vic"
)

// Synthetic ROM layout for tests that don't depend on real KERNAL/BASIC
// firmware content (which is copyrighted and not distributed with this
// module -- loading real images is the image-loader collaborator's job,
// spec §1/§6). Only the three hardware vectors at the top of the KERNAL
// image are populated, pointing at fixed RAM addresses. No test writes a
// program there: RAM starts zeroed, so the CPU finds BRK ($00) at each one.
const (
	testResetTarget = 0x0300
	testNMITarget   = 0x0310
	testIRQTarget   = 0x0320
)

func testROMs() ([]uint8, []uint8, []uint8) {
	basic := make([]uint8, 8192)
	kernal := make([]uint8, 8192)
	char := make([]uint8, 4096)
	setVec := func(addr uint16, target uint16) {
		off := addr - 0xE000
		kernal[off] = uint8(target & 0xFF)
		kernal[off+1] = uint8(target >> 8)
	}
	setVec(0xFFFA, testNMITarget) // NMI vector
	setVec(0xFFFC, testResetTarget) // RESET vector
	setVec(0xFFFE, testIRQTarget) // IRQ/BRK vector
	return basic, kernal, char
}

func newTestMachine(t *testing.T) *C64 {
	t.Helper()
	basic, kernal, char := testROMs()
	c, err := Init(&C64Def{Basic: basic, Kernal: kernal, Char: char, Standard: vic.PAL})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func tickN(t *testing.T, c *C64, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick (cycle %d): %v", i, err)
		}
	}
}

// TestResetLoadsVector verifies Testable Scenario S6: after construction
// (which implicitly asserts reset), the CPU's PC equals the word at $FFFC
// and the I flag is set, within the documented 6 cycle reset sequence that
// happens before the first Tick() is ever called.
func TestResetLoadsVector(t *testing.T) {
	c := newTestMachine(t)
	if got, want := c.CPU().PC, uint16(testResetTarget); got != want {
		t.Errorf("PC after reset = %.4X, want %.4X", got, want)
	}
	if c.CPU().P&cpu.P_INTERRUPT == 0 {
		t.Errorf("I flag not set after reset")
	}
}

// TestCIATimerIRQUnderflow verifies Testable Scenario S2: starting CIA1
// timer A in continuous mode with an unmasked underflow interrupt raises
// the shared IRQ line, and reading $DC0D (ICR, register offset 0x0D) back
// shows the asserted/masked bits.
func TestCIATimerIRQUnderflow(t *testing.T) {
	c := newTestMachine(t)
	c.CIA1().Write(0x04, 0xFF) // TALo
	c.CIA1().Write(0x05, 0x00) // TAHi
	c.CIA1().Write(0x0D, 0x81) // ICR: unmask timer A (bit0) with bit7 set
	c.CIA1().Write(0x0E, 0x01) // CRA: start, continuous

	tickN(t, c, 0x100+4) // $FF latch + reload/start delay + slack

	if got := c.CIA1().Read(0x0D); got&0x81 != 0x81 {
		t.Errorf("CIA1 ICR = %.2X, want bit0|bit7 set", got)
	}
}

// TestVICRasterIRQ verifies Testable Scenario S3: programming the raster
// compare to a given line fires the raster IRQ (bit 0 of $D019) exactly
// once as the VIC's internal raster counter reaches that line.
func TestVICRasterIRQ(t *testing.T) {
	c := newTestMachine(t)
	const line = 0x64
	c.VIC().Write(0x12, uint8(line&0xFF)) // raster compare low 8 bits
	c.VIC().Write(0x11, 0x1B)             // ctrl1: DEN set, RST8 clear (line < 256)
	c.VIC().Write(0x1A, 0x01)             // IRQEnable: raster

	// Run a bit more than a full PAL frame's worth of cycles; the IRQ must
	// have fired by the time the raster counter has wrapped back around.
	tickN(t, c, 63*312+10)

	if got := c.VIC().Read(0x19); got&0x81 != 0x81 {
		t.Errorf("VIC $D019 = %.2X, want bit0 (raster) and bit7 (IR) set", got)
	}
}

// TestNMIEdge verifies Testable Scenario S5: a CIA2 timer underflow with the
// NMI-wired ICR unmasked pulls the shared NMI line, and the CPU vectors
// through $FFFA within the documented 7 interrupt-sequence cycles of the
// instruction boundary it's sampled at.
func TestNMIEdge(t *testing.T) {
	c := newTestMachine(t)
	c.CIA2().Write(0x04, 0x02) // TALo = 2
	c.CIA2().Write(0x05, 0x00)
	c.CIA2().Write(0x0D, 0x81) // unmask timer A
	c.CIA2().Write(0x0E, 0x01) // start, continuous

	// Timer undeflows a few cycles in; give the CPU plenty of room (it's
	// running the BRK at $0300 from zeroed RAM meanwhile) to notice the
	// edge and run the 7 cycle interrupt sequence.
	tickN(t, c, 30)

	if got, want := c.CPU().PC, uint16(testNMITarget); got != want {
		t.Errorf("PC = %.4X, want %.4X (did not vector through NMI)", got, want)
	}
}

// TestSIDVoiceProducesBothPolarities verifies Testable Scenario S4: a pulse
// voice with gate on and a zero-length ADSR envelope reaches full volume
// almost immediately and its pulse waveform swings between both signed
// polarities as the oscillator's phase crosses the pulse width threshold.
func TestSIDVoiceProducesBothPolarities(t *testing.T) {
	c := newTestMachine(t)
	c.SID().Write(0x00, 0xD6) // voice 1 freq lo
	c.SID().Write(0x01, 0x1C) // voice 1 freq hi ($1CD6)
	c.SID().Write(0x02, 0x00) // pulse width lo
	c.SID().Write(0x03, 0x08) // pulse width hi ($0800)
	c.SID().Write(0x04, 0x41) // control: pulse + gate
	c.SID().Write(0x05, 0x00) // attack=0, decay=0
	c.SID().Write(0x06, 0x00) // sustain=0, release=0
	c.SID().Write(0x18, 0x0F) // volume = max

	var sawPos, sawNeg bool
	for i := 0; i < 2048; i++ {
		if err := c.SID().Tick(); err != nil {
			t.Fatalf("SID Tick: %v", err)
		}
		c.SID().TickDone()
		if i < 64*32 { // sample roughly once per 32 cycles, well within the window
			s := c.SID().Mix()
			if s > 0 {
				sawPos = true
			}
			if s < 0 {
				sawNeg = true
			}
		}
	}
	if !sawPos || !sawNeg {
		t.Errorf("SID output did not swing both polarities: sawPos=%v sawNeg=%v", sawPos, sawNeg)
	}
}

// TestSnapshotRoundTrip verifies Testable Property 7: a snapshot taken
// after N cycles, restored, and stepped another N cycles produces identical
// machine state to stepping 2N cycles from the original snapshot point.
func TestSnapshotRoundTrip(t *testing.T) {
	c := newTestMachine(t)
	c.CIA1().Write(0x04, 0x10)
	c.CIA1().Write(0x0E, 0x01)
	c.VIC().Write(0x12, 0x40)
	c.VIC().Write(0x1A, 0x01)

	tickN(t, c, 50)
	snap := c.Snapshot()

	tickN(t, c, 50)
	want := c.Snapshot()

	c.Restore(snap)
	tickN(t, c, 50)
	got := c.Snapshot()

	if diff := deep.Equal(got, want); diff != nil {
		t.Errorf("snapshot/restore round trip diverged: %v", diff)
	}
}
