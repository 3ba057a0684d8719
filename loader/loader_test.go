package loader

import (
	"testing"

	"github.com/jmchacon/c64core/memory"
)

func TestLoadPRG(t *testing.T) {
	img := []uint8{0x01, 0x08, 0xAA, 0xBB, 0xCC}
	p, err := LoadPRG(img)
	if err != nil {
		t.Fatalf("LoadPRG: %v", err)
	}
	if p.Addr != 0x0801 {
		t.Errorf("Addr = %.4X, want 0x0801", p.Addr)
	}
	if got := p.Data; len(got) != 3 || got[0] != 0xAA || got[2] != 0xCC {
		t.Errorf("Data = %v, want [AA BB CC]", got)
	}
}

func TestLoadPRGTruncated(t *testing.T) {
	if _, err := LoadPRG([]uint8{0x01}); err == nil {
		t.Error("LoadPRG with 1 byte: want ImageError, got nil")
	} else if _, ok := err.(ImageError); !ok {
		t.Errorf("LoadPRG: got %T, want ImageError", err)
	}
}

func TestLoadBIN(t *testing.T) {
	got := LoadBIN([]uint8{1, 2, 3})
	if len(got) != 3 || got[1] != 2 {
		t.Errorf("LoadBIN = %v, want [1 2 3]", got)
	}
}

func TestPlace(t *testing.T) {
	ram, err := memory.New8BitRAMBank(1<<16, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	Place(ram, 0x0801, []uint8{0x11, 0x22, 0x33})
	if got := ram.Read(0x0801); got != 0x11 {
		t.Errorf("Read(0x0801) = %.2X, want 0x11", got)
	}
	if got := ram.Read(0x0803); got != 0x33 {
		t.Errorf("Read(0x0803) = %.2X, want 0x33", got)
	}
}

func p00Image(name string, prgAddr uint16, data []uint8) []uint8 {
	img := append([]uint8(nil), p00Magic[:]...)
	nameField := make([]uint8, 17)
	copy(nameField, name)
	img = append(img, nameField...)
	img = append(img, 0) // record size, unused
	img = append(img, uint8(prgAddr&0xFF), uint8(prgAddr>>8))
	img = append(img, data...)
	return img
}

func TestLoadP00(t *testing.T) {
	img := p00Image("MYPROG", 0xC000, []uint8{1, 2, 3})
	p, err := LoadP00(img)
	if err != nil {
		t.Fatalf("LoadP00: %v", err)
	}
	if got := p.PRG.Addr; got != 0xC000 {
		t.Errorf("Addr = %.4X, want 0xC000", got)
	}
	if len(p.PRG.Data) != 3 {
		t.Errorf("Data len = %d, want 3", len(p.PRG.Data))
	}
}

func TestLoadP00BadMagic(t *testing.T) {
	img := p00Image("X", 0, nil)
	img[0] = 'Z'
	if _, err := LoadP00(img); err == nil {
		t.Error("LoadP00 with bad magic: want error, got nil")
	}
}

func crtImage(hwType uint16, chips []CRTChip) []uint8 {
	hdr := make([]uint8, crtHeaderLen)
	copy(hdr, crtMagic[:])
	hdr[crtHWTypeOffset] = uint8(hwType >> 8)
	hdr[crtHWTypeOffset+1] = uint8(hwType & 0xFF)
	img := hdr
	for _, c := range chips {
		chipHdr := make([]uint8, crtChipHeaderLen)
		copy(chipHdr, crtChipSignature)
		length := uint32(crtChipHeaderLen + len(c.Data))
		chipHdr[4] = uint8(length >> 24)
		chipHdr[5] = uint8(length >> 16)
		chipHdr[6] = uint8(length >> 8)
		chipHdr[7] = uint8(length)
		chipHdr[12] = uint8(c.LoadAddr >> 8)
		chipHdr[13] = uint8(c.LoadAddr & 0xFF)
		size := uint16(len(c.Data))
		chipHdr[14] = uint8(size >> 8)
		chipHdr[15] = uint8(size & 0xFF)
		img = append(img, chipHdr...)
		img = append(img, c.Data...)
	}
	return img
}

func TestLoadCRT(t *testing.T) {
	img := crtImage(0, []CRTChip{{LoadAddr: 0x8000, Data: []uint8{1, 2, 3, 4}}})
	c, err := LoadCRT(img)
	if err != nil {
		t.Fatalf("LoadCRT: %v", err)
	}
	if c.HWType != 0 {
		t.Errorf("HWType = %d, want 0", c.HWType)
	}
	if len(c.Chips) != 1 || c.Chips[0].LoadAddr != 0x8000 {
		t.Fatalf("Chips = %+v, want one chip at 0x8000", c.Chips)
	}
	if got := c.Chips[0].Data; len(got) != 4 || got[3] != 4 {
		t.Errorf("chip data = %v, want [1 2 3 4]", got)
	}
}

func TestLoadCRTMultipleChips(t *testing.T) {
	img := crtImage(0, []CRTChip{
		{LoadAddr: 0x8000, Data: []uint8{1, 2}},
		{LoadAddr: 0xA000, Data: []uint8{3, 4, 5}},
	})
	c, err := LoadCRT(img)
	if err != nil {
		t.Fatalf("LoadCRT: %v", err)
	}
	if len(c.Chips) != 2 {
		t.Fatalf("Chips len = %d, want 2", len(c.Chips))
	}
	if c.Chips[1].LoadAddr != 0xA000 || len(c.Chips[1].Data) != 3 {
		t.Errorf("second chip = %+v, want LoadAddr=A000 len=3", c.Chips[1])
	}
}

func TestLoadCRTBadMagic(t *testing.T) {
	img := crtImage(0, nil)
	img[0] = 'X'
	if _, err := LoadCRT(img); err == nil {
		t.Error("LoadCRT with bad magic: want error, got nil")
	}
}

func TestMountErrorMessage(t *testing.T) {
	err := MountError{HWType: 5}
	if err.Error() == "" {
		t.Error("MountError.Error() returned empty string")
	}
}

func tapImage(version uint8, pulses []uint8) []uint8 {
	hdr := make([]uint8, tapHeaderLen)
	copy(hdr, "C64-TAPE-RAW")
	hdr[12] = version
	length := uint32(len(pulses))
	hdr[16] = uint8(length)
	hdr[17] = uint8(length >> 8)
	hdr[18] = uint8(length >> 16)
	hdr[19] = uint8(length >> 24)
	return append(hdr, pulses...)
}

func TestLoadTAPShortPulses(t *testing.T) {
	img := tapImage(1, []uint8{0x10, 0x20})
	tap, err := LoadTAP(img)
	if err != nil {
		t.Fatalf("LoadTAP: %v", err)
	}
	if len(tap.Pulses) != 2 {
		t.Fatalf("Pulses len = %d, want 2", len(tap.Pulses))
	}
	if tap.Pulses[0] != 0x10*8 {
		t.Errorf("Pulses[0] = %d, want %d", tap.Pulses[0], 0x10*8)
	}
}

func TestLoadTAPExtendedPulse(t *testing.T) {
	// A zero byte followed by a 3 byte little-endian extended pulse width.
	img := tapImage(1, []uint8{0x00, 0x34, 0x12, 0x00})
	tap, err := LoadTAP(img)
	if err != nil {
		t.Fatalf("LoadTAP: %v", err)
	}
	if len(tap.Pulses) != 1 {
		t.Fatalf("Pulses len = %d, want 1", len(tap.Pulses))
	}
	if want := uint32(0x1234); tap.Pulses[0] != want {
		t.Errorf("Pulses[0] = %.6X, want %.6X", tap.Pulses[0], want)
	}
}

func TestLoadTAPBadMagic(t *testing.T) {
	img := tapImage(1, nil)
	img[0] = 'X'
	if _, err := LoadTAP(img); err == nil {
		t.Error("LoadTAP with bad magic: want error, got nil")
	}
}

func TestPresetZeroPage(t *testing.T) {
	ram, err := memory.New8BitRAMBank(1<<16, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	PresetZeroPage(ram)
	if got := ram.Read(0x002B); got != 0x01 {
		t.Errorf("Read(0x002B) = %.2X, want 0x01", got)
	}
	if got := ram.Read(0x002C); got != 0x08 {
		t.Errorf("Read(0x002C) = %.2X, want 0x08", got)
	}
}
