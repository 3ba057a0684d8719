package mmu

import (
	"testing"

	"github.com/jmchacon/c64core/memory"
)

func mustBank(t *testing.T, fill uint8) *fakeBank {
	t.Helper()
	return &fakeBank{tag: fill}
}

// fakeBank is a distinguishable memory.Bank stand-in so tests can assert
// bank identity (which concrete bank a region resolved to) rather than
// bank contents.
type fakeBank struct{ tag uint8 }

func (f *fakeBank) Read(addr uint16) uint8     { return f.tag }
func (f *fakeBank) Write(addr uint16, v uint8) {}
func (f *fakeBank) PowerOn()                   {}
func (f *fakeBank) Parent() memory.Bank        { return nil }
func (f *fakeBank) DatabusVal() uint8          { return f.tag }

func newTestMMU(t *testing.T, cartLo, cartHi *fakeBank) (*MMU, *fakeBank, *fakeBank, *fakeBank, *fakeBank, *fakeBank) {
	t.Helper()
	ram := mustBank(t, 1)
	basic := mustBank(t, 2)
	kernal := mustBank(t, 3)
	char := mustBank(t, 4)
	io := mustBank(t, 5)

	def := &Def{Ram: ram, Basic: basic, Kernal: kernal, Char: char, Io: io}
	if cartLo != nil {
		def.CartLo = cartLo
	}
	if cartHi != nil {
		def.CartHi = cartHi
	}
	m, err := Init(def)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m, ram, basic, kernal, char, io
}

// TestSwitchBanksNoCartridge verifies Testable Property 3 for every one of
// the 8 LORAM/HIRAM/CHAREN combinations with no cartridge present against
// the real 82S100 PLA truth table: the always-RAM regions never move,
// $E000-$FFFF tracks HIRAM alone, $A000/$B000 shows BASIC only when both
// HIRAM and LORAM are set, and $D000 is RAM whenever LORAM and HIRAM are
// both low, otherwise toggles between I/O and character ROM on CHAREN.
func TestSwitchBanksNoCartridge(t *testing.T) {
	for loram := 0; loram < 2; loram++ {
		for hiram := 0; hiram < 2; hiram++ {
			for charen := 0; charen < 2; charen++ {
				m, ram, basic, kernal, char, io := newTestMMU(t, nil, nil)
				mode := ModeGAME | ModeEXROM
				if loram == 1 {
					mode |= ModeLORAM
				}
				if hiram == 1 {
					mode |= ModeHIRAM
				}
				if charen == 1 {
					mode |= ModeCHAREN
				}
				m.SwitchBanks(mode)

				for _, addr := range []uint16{0x0000, 0x1000, 0x3000, 0x7000, 0xC000} {
					if got := m.BankAt(addr); got != ram {
						t.Errorf("mode %05b: BankAt(%.4X) = %v, want ram", mode, addr, got)
					}
				}

				wantKernal := ram
				if hiram == 1 {
					wantKernal = kernal
				}
				for _, addr := range []uint16{0xE000, 0xF000} {
					if got := m.BankAt(addr); got != wantKernal {
						t.Errorf("mode %05b: BankAt(%.4X) = %v, want %v", mode, addr, got, wantKernal)
					}
				}

				wantA000 := ram
				if loram == 1 && hiram == 1 {
					wantA000 = basic
				}
				for _, addr := range []uint16{0xA000, 0xB000} {
					if got := m.BankAt(addr); got != wantA000 {
						t.Errorf("mode %05b: BankAt(%.4X) = %v, want %v", mode, addr, got, wantA000)
					}
				}

				wantD000 := ram
				if loram == 1 || hiram == 1 {
					if charen == 1 {
						wantD000 = io
					} else {
						wantD000 = char
					}
				}
				if got := m.BankAt(0xD000); got != wantD000 {
					t.Errorf("mode %05b: BankAt($D000) = %v, want %v", mode, got, wantD000)
				}

				for _, addr := range []uint16{0x8000, 0x9000} {
					if got := m.BankAt(addr); got != ram {
						t.Errorf("mode %05b: BankAt(%.4X) = %v, want ram (no cartridge)", mode, addr, got)
					}
				}
			}
		}
	}
}

// TestSwitchBanks16KCartridge verifies the 16K cartridge case (GAME=EXROM=0):
// ROML maps at $8000/$9000 and ROMH maps at $A000/$B000 regardless of the
// processor port bits.
func TestSwitchBanks16KCartridge(t *testing.T) {
	cartLo := mustBank(t, 0x10)
	cartHi := mustBank(t, 0x11)
	m, _, _, _, _, _ := newTestMMU(t, cartLo, cartHi)
	m.SwitchBanks(ModeLORAM | ModeHIRAM | ModeCHAREN)

	for _, addr := range []uint16{0x8000, 0x9000} {
		if got := m.BankAt(addr); got != cartLo {
			t.Errorf("BankAt(%.4X) = %v, want cartLo", addr, got)
		}
	}
	for _, addr := range []uint16{0xA000, 0xB000} {
		if got := m.BankAt(addr); got != cartHi {
			t.Errorf("BankAt(%.4X) = %v, want cartHi", addr, got)
		}
	}
}

// TestSwitchBanksUltimax verifies ultimax mode (GAME=0, EXROM=1): ROMH
// replaces the KERNAL at $E000-$FFFF and ROML still maps at $8000/$9000,
// independent of the processor port.
func TestSwitchBanksUltimax(t *testing.T) {
	cartLo := mustBank(t, 0x20)
	cartHi := mustBank(t, 0x21)
	m, ram, _, _, _, _ := newTestMMU(t, cartLo, cartHi)
	m.SwitchBanks(ModeLORAM | ModeHIRAM | ModeCHAREN | ModeEXROM)

	for _, addr := range []uint16{0x8000, 0x9000} {
		if got := m.BankAt(addr); got != cartLo {
			t.Errorf("BankAt(%.4X) = %v, want cartLo", addr, got)
		}
	}
	for _, addr := range []uint16{0xE000, 0xF000} {
		if got := m.BankAt(addr); got != cartHi {
			t.Errorf("BankAt(%.4X) = %v, want cartHi (ultimax)", addr, got)
		}
	}
	if got := m.BankAt(0xC000); got != ram {
		t.Errorf("BankAt($C000) = %v, want ram (ultimax still exposes low RAM)", got)
	}
}

func TestConfigErrorOnMissingBank(t *testing.T) {
	_, err := Init(&Def{})
	if err == nil {
		t.Fatal("Init with no banks: want ConfigError, got nil")
	}
	if _, ok := err.(ConfigError); !ok {
		t.Errorf("Init with no banks: got %T, want ConfigError", err)
	}
}
