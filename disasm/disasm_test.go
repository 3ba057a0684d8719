package disasm

import (
	"strings"
	"testing"

	"github.com/jmchacon/c64core/memory"
)

// flatMemory is a trivial 64K memory.Bank for feeding Step fixed byte
// sequences without depending on the mmu package.
type flatMemory [1 << 16]uint8

func (f *flatMemory) Read(addr uint16) uint8     { return f[addr] }
func (f *flatMemory) Write(addr uint16, v uint8) { f[addr] = v }
func (f *flatMemory) PowerOn()                   {}
func (f *flatMemory) Parent() memory.Bank        { return nil }
func (f *flatMemory) DatabusVal() uint8          { return 0 }

func newMem(bytes ...uint8) *flatMemory {
	m := &flatMemory{}
	for i, b := range bytes {
		m[i] = b
	}
	return m
}

func TestStepImplied(t *testing.T) {
	m := newMem(0xEA) // NOP
	out, n := Step(0, m)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if !strings.Contains(out, "NOP") {
		t.Errorf("out = %q, want it to contain NOP", out)
	}
}

func TestStepImmediate(t *testing.T) {
	m := newMem(0xA9, 0x42) // LDA #$42
	out, n := Step(0, m)
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if !strings.Contains(out, "LDA") || !strings.Contains(out, "#42") {
		t.Errorf("out = %q, want LDA #42", out)
	}
}

func TestStepAbsolute(t *testing.T) {
	m := newMem(0x4C, 0x00, 0xC0) // JMP $C000
	out, n := Step(0, m)
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if !strings.Contains(out, "JMP") || !strings.Contains(out, "C000") {
		t.Errorf("out = %q, want JMP C000", out)
	}
}

func TestStepRelativeComputesTarget(t *testing.T) {
	// BNE with a forward offset of 5 at PC 0x1000 targets 0x1000 + 2 + 5.
	m := newMem(0xD0, 0x05)
	out, n := Step(0x1000, m)
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if !strings.Contains(out, "1007") {
		t.Errorf("out = %q, want branch target 1007", out)
	}
}

func TestStepRelativeBackward(t *testing.T) {
	// BNE with offset 0xFE (-2) at PC 0x1000 targets 0x1000.
	m := newMem(0xD0, 0xFE)
	out, _ := Step(0x1000, m)
	if !strings.Contains(out, "1000") {
		t.Errorf("out = %q, want branch target 1000", out)
	}
}

// TestStepUndocumentedAddressingModes spot-checks the addressing-mode gaps
// filled in for the unofficial opcodes (AHX, TAS, SHY, SHX, LAS).
func TestStepUndocumentedAddressingModes(t *testing.T) {
	cases := []struct {
		name string
		op   uint8
		mode int
		want string
	}{
		{"AHX indirect,Y", 0x93, modeIndirectY, "AHX"},
		{"TAS absolute,Y", 0x9B, modeAbsoluteY, "TAS"},
		{"SHY absolute,X", 0x9C, modeAbsoluteX, "SHY"},
		{"SHX absolute,Y", 0x9E, modeAbsoluteY, "SHX"},
		{"AHX absolute,Y", 0x9F, modeAbsoluteY, "AHX"},
		{"LAS absolute,Y", 0xBB, modeAbsoluteY, "LAS"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newMem(c.op, 0x34, 0x12)
			out, n := Step(0, m)
			if !strings.Contains(out, c.want) {
				t.Errorf("out = %q, want it to contain %s", out, c.want)
			}
			wantCount := 2
			if c.mode == modeAbsoluteX || c.mode == modeAbsoluteY {
				wantCount = 3
			}
			if n != wantCount {
				t.Errorf("count = %d, want %d", n, wantCount)
			}
		})
	}
}

func TestStepHLT(t *testing.T) {
	m := newMem(0x02)
	out, _ := Step(0, m)
	if !strings.Contains(out, "HLT") {
		t.Errorf("out = %q, want HLT", out)
	}
}
