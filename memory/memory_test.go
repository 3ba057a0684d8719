package memory

import "testing"

func TestRAMReadWrite(t *testing.T) {
	b, err := New8BitRAMBank(256, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	b.Write(0x10, 0x42)
	if got := b.Read(0x10); got != 0x42 {
		t.Errorf("Read(0x10) = %.2X, want 0x42", got)
	}
	if got := b.DatabusVal(); got != 0x42 {
		t.Errorf("DatabusVal() = %.2X, want 0x42", got)
	}
}

func TestRAMAliasesPastSize(t *testing.T) {
	b, err := New8BitRAMBank(256, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	b.Write(0x10, 0x55)
	if got := b.Read(0x110); got != 0x55 {
		t.Errorf("Read(0x110) = %.2X, want 0x55 (aliased from 0x10)", got)
	}
}

func TestRAMBytesRoundTrip(t *testing.T) {
	b, err := New8BitRAMBank(16, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	b.Write(0, 0xAA)
	b.Write(15, 0xBB)
	snap := b.(interface {
		Bytes() []uint8
		SetBytes([]uint8)
	}).Bytes()

	other, err := New8BitRAMBank(16, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	other.(interface{ SetBytes([]uint8) }).SetBytes(snap)
	if got := other.Read(0); got != 0xAA {
		t.Errorf("after SetBytes, Read(0) = %.2X, want 0xAA", got)
	}
	if got := other.Read(15); got != 0xBB {
		t.Errorf("after SetBytes, Read(15) = %.2X, want 0xBB", got)
	}
}

func TestROMWritesAreDiscarded(t *testing.T) {
	b, err := NewROMBank([]uint8{1, 2, 3, 4}, nil)
	if err != nil {
		t.Fatalf("NewROMBank: %v", err)
	}
	b.Write(1, 0xFF)
	if got := b.Read(1); got != 2 {
		t.Errorf("Read(1) after Write = %.2X, want unchanged 2", got)
	}
}

func TestROMRejectsEmptyImage(t *testing.T) {
	if _, err := NewROMBank(nil, nil); err == nil {
		t.Error("NewROMBank with empty image: want error, got nil")
	}
}

func TestColorRAMLowNibbleOnly(t *testing.T) {
	c := NewColorRAMBank(nil)
	c.Write(5, 0xFE)
	if got := c.Read(5); got&0x0F != 0x0E {
		t.Errorf("Read(5) low nibble = %.1X, want 0xE", got&0x0F)
	}
}

// TestColorRAMHighNibbleFloatsToDatabus verifies the documented floating-bus
// behavior: the high nibble echoes whatever the last databus value was,
// found by chasing Parent() to the outermost bank.
func TestColorRAMHighNibbleFloatsToDatabus(t *testing.T) {
	ram, err := New8BitRAMBank(256, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	c := NewColorRAMBank(ram)
	ram.Write(0, 0x70) // drive the outer bus high nibble to 0x7
	c.Write(3, 0x0A)
	if got := c.Read(3); got&0xF0 != 0x70 {
		t.Errorf("Read(3) high nibble = %.1X, want 0x7 (floated from RAM's last databus value)", got>>4)
	}
}

func TestColorRAMBytesRoundTrip(t *testing.T) {
	c := NewColorRAMBank(nil)
	c.Write(0, 0x0C)
	c.Write(1023, 0x03)
	snap := c.(interface{ Bytes() []uint8 }).Bytes()
	if len(snap) != 1024 {
		t.Fatalf("Bytes() len = %d, want 1024", len(snap))
	}

	c2 := NewColorRAMBank(nil)
	c2.(interface{ SetBytes([]uint8) }).SetBytes(snap)
	if got := c2.Read(0); got&0x0F != 0x0C {
		t.Errorf("after SetBytes, Read(0) low nibble = %.1X, want 0xC", got&0x0F)
	}
	if got := c2.Read(1023); got&0x0F != 0x03 {
		t.Errorf("after SetBytes, Read(1023) low nibble = %.1X, want 0x3", got&0x0F)
	}
}

func TestLatestDatabusValChainsToOutermostBank(t *testing.T) {
	outer, err := New8BitRAMBank(256, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	inner, err := New8BitRAMBank(16, outer)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	outer.Write(0, 0x99)
	inner.Write(0, 0x11) // doesn't touch outer's databus latch

	if got := LatestDatabusVal(inner); got != 0x99 {
		t.Errorf("LatestDatabusVal(inner) = %.2X, want 0x99 (outer's last value)", got)
	}
}

// fakeDispatcher is a minimal Dispatcher for exercising NewIOBank's address
// decoding without pulling in the real chip packages.
type fakeDispatcher struct {
	lastRead, lastWrite uint16
	val                 uint8
}

func (f *fakeDispatcher) Read(addr uint16) uint8 {
	f.lastRead = addr
	return f.val
}
func (f *fakeDispatcher) Write(addr uint16, v uint8) {
	f.lastWrite = addr
	f.val = v
}

func TestIOBankDecodesRegions(t *testing.T) {
	vic := &fakeDispatcher{val: 1}
	sid := &fakeDispatcher{val: 2}
	cia1 := &fakeDispatcher{val: 3}
	cia2 := &fakeDispatcher{val: 4}
	color := NewColorRAMBank(nil)
	io := NewIOBank(vic, sid, cia1, cia2, color, nil)

	if got := io.Read(0xD000 + 0x011); got != 1 {
		t.Errorf("VIC region Read = %.2X, want 1", got)
	}
	if got := vic.lastRead; got != 0x011&0x3F {
		t.Errorf("VIC saw addr %.2X, want mirrored into 0-0x3F", got)
	}

	if got := io.Read(0xD400 + 0x005); got != 2 {
		t.Errorf("SID region Read = %.2X, want 2", got)
	}
	if got := io.Read(0xDC00 + 0x00D); got != 3 {
		t.Errorf("CIA1 region Read = %.2X, want 3", got)
	}
	if got := io.Read(0xDD00 + 0x00D); got != 4 {
		t.Errorf("CIA2 region Read = %.2X, want 4", got)
	}

	io.Write(0xD800+5, 0x0A)
	if got := color.Read(5); got&0x0F != 0x0A {
		t.Errorf("color RAM region Write not routed: got low nibble %.1X, want 0xA", got&0x0F)
	}
}
