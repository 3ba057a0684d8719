package c64basic

import (
	"testing"

	"github.com/jmchacon/c64core/memory"
)

// writeProgram lays out a tokenized BASIC program in ram starting at start,
// computing each line's next-line-pointer as it goes, and terminates with
// the standard 0x0000 end-of-program marker.
func writeProgram(ram memory.Bank, start uint16, lines []struct {
	num    uint16
	tokens []uint8
}) {
	addr := start
	for _, l := range lines {
		lineLen := uint16(4 + len(l.tokens)) // header + tokens (already NUL terminated)
		next := addr + lineLen
		ram.Write(addr, uint8(next&0xFF))
		ram.Write(addr+1, uint8(next>>8))
		ram.Write(addr+2, uint8(l.num&0xFF))
		ram.Write(addr+3, uint8(l.num>>8))
		for i, b := range l.tokens {
			ram.Write(addr+4+uint16(i), b)
		}
		addr = next
	}
	ram.Write(addr, 0)
	ram.Write(addr+1, 0)
}

func newRAM(t *testing.T) memory.Bank {
	t.Helper()
	ram, err := memory.New8BitRAMBank(1<<16, nil)
	if err != nil {
		t.Fatalf("New8BitRAMBank: %v", err)
	}
	return ram
}

func TestListSingleLine(t *testing.T) {
	ram := newRAM(t)
	writeProgram(ram, 0x0801, []struct {
		num    uint16
		tokens []uint8
	}{
		{10, []uint8{0x99, '"', 'H', 'I', '"', 0x00}}, // 10 PRINT"HI"
	})

	line, newPC, err := List(0x0801, ram)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := `10 PRINT"HI"`; line != want {
		t.Errorf("line = %q, want %q", line, want)
	}
	if newPC == 0 {
		t.Errorf("newPC = 0, want nonzero (not yet end of program)")
	}

	line, newPC, err = List(newPC, ram)
	if err != nil {
		t.Fatalf("List at end: %v", err)
	}
	if line != "" || newPC != 0 {
		t.Errorf("List at end = (%q, %.4X), want (\"\", 0)", line, newPC)
	}
}

func TestListMultipleLines(t *testing.T) {
	ram := newRAM(t)
	writeProgram(ram, 0x0801, []struct {
		num    uint16
		tokens []uint8
	}{
		{10, []uint8{0x99, '"', 'H', 'I', '"', 0x00}}, // 10 PRINT"HI"
		{20, []uint8{0x89, ' ', '1', '0', 0x00}},       // 20 GOTO 10
	})

	var got []string
	pc := uint16(0x0801)
	for {
		line, newPC, err := List(pc, ram)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if newPC == 0 && line == "" {
			break
		}
		got = append(got, line)
		pc = newPC
	}
	want := []string{`10 PRINT"HI"`, "20 GOTO 10"}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListBadToken(t *testing.T) {
	ram := newRAM(t)
	writeProgram(ram, 0x0801, []struct {
		num    uint16
		tokens []uint8
	}{
		{10, []uint8{0xFF, 0x00}}, // token above the documented 0xCB ceiling
	})

	_, _, err := List(0x0801, ram)
	if err == nil {
		t.Error("List with out-of-range token: want error, got nil")
	}
}
