package sid

import "testing"

func newTestChip(t *testing.T) *Chip {
	t.Helper()
	c, err := Init(&Def{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func tick(t *testing.T, c *Chip, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		c.TickDone()
	}
}

// TestEnvelopeAttackReachesPeak verifies attack rate 0 (2 samples) drives
// the envelope level to full scale within a small number of cycles, per
// Testable Property 6.
func TestEnvelopeAttackReachesPeak(t *testing.T) {
	c := newTestChip(t)
	c.Write(0x04, ctrlGATE|ctrlTRI) // voice 1 control: gate on, triangle
	c.Write(0x05, 0x00)             // attack=0 (fastest), decay=0
	c.Write(0x06, 0xF0)             // sustain=15 (hold at peak), release=0
	for i := 0; i < 600; i++ {
		tick(t, c, 1)
		if c.voices[0].level == 0xFF {
			return
		}
	}
	t.Errorf("voice 1 envelope never reached peak within 600 cycles: level=%.2X", c.voices[0].level)
}

// TestPulseGateProducesBothPolarities mirrors scenario S4: voice 1 at
// freq=$1CD6, pulse width=$0800, control=pulse+gate, instant ADSR; after a
// couple thousand cycles the mix should have produced both a strongly
// positive and a strongly negative sample as the pulse wave toggles.
func TestPulseGateProducesBothPolarities(t *testing.T) {
	c := newTestChip(t)
	c.Write(0x00, 0xD6) // freq lo
	c.Write(0x01, 0x1C) // freq hi
	c.Write(0x02, 0x00) // pw lo
	c.Write(0x03, 0x08) // pw hi -> pulse width 0x800
	c.Write(0x04, ctrlPULSE|ctrlGATE)
	c.Write(0x05, 0x00) // attack=0, decay=0
	c.Write(0x06, 0xF0) // sustain=15, release=0
	c.Write(regFilterModeVolume, 0x0F)

	sawPositive, sawNegative := false, false
	for i := 0; i < 2048; i++ {
		tick(t, c, 1)
		s := c.Mix()
		if s > 1000 {
			sawPositive = true
		}
		if s < -1000 {
			sawNegative = true
		}
	}
	if !sawPositive || !sawNegative {
		t.Errorf("pulse wave did not produce both polarities: +=%v -=%v", sawPositive, sawNegative)
	}
}

// TestSyncResetsAccumulator verifies enabling SYNC on voice 2 resets its
// phase when voice 1 (its source) wraps.
func TestSyncResetsAccumulator(t *testing.T) {
	c := newTestChip(t)
	c.Write(0x00, 0xFF) // voice 1 freq lo
	c.Write(0x01, 0xFF) // voice 1 freq hi -> large increment, wraps quickly
	c.Write(0x04, ctrlSAW)
	c.voices[1].freq = 1 // voice 2: tiny increment so it would not wrap on its own
	c.voices[1].ctrl = ctrlSAW | ctrlSYNC
	c.voices[1].phase = 0x800000 // partway advanced

	for i := 0; i < 300; i++ {
		tick(t, c, 1)
		if c.voices[1].phase == 0 {
			return
		}
	}
	t.Errorf("voice 2 phase never reset by sync from voice 1's wrap: phase=%.6X", c.voices[1].phase)
}
