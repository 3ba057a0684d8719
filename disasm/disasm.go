// Package disasm implements a single-instruction disassembler for the 6510
// opcode set the cpu package executes, used as an internal diagnostic
// utility distinct from the out-of-scope interactive debugger (spec §1).
package disasm

import (
	"fmt"

	"github.com/jmchacon/c64core/memory"
)

const (
	modeImmediate = iota
	modeZP
	modeZPX
	modeZPY
	modeIndirectX
	modeIndirectY
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeIndirect
	modeImplied
	modeRelative
)

// Step disassembles the instruction at pc, returning the formatted line and
// the number of bytes it occupies. This does not interpret control flow, so
// a JMP target is printed but not followed. Step always reads two bytes past
// pc, so the caller must ensure that address range is valid (the CPU's
// address space is total, per spec §4.8, so this is never out of range).
func Step(pc uint16, b memory.Bank) (string, int) {
	pc1 := b.Read(pc + 1)
	pc116 := uint16(int16(int8(pc1)))
	pc2 := b.Read(pc + 2)

	var op string
	mode := modeImplied
	o := b.Read(pc)
	switch o {
	case 0x00:
		op, mode = "BRK", modeImmediate // byte after BRK is read and skipped.
	case 0x01:
		op, mode = "ORA", modeIndirectX
	case 0x02:
		op = "HLT"
	case 0x03:
		op, mode = "SLO", modeIndirectX
	case 0x04:
		op, mode = "NOP", modeZP
	case 0x05:
		op, mode = "ORA", modeZP
	case 0x06:
		op, mode = "ASL", modeZP
	case 0x07:
		op, mode = "SLO", modeZP
	case 0x08:
		op = "PHP"
	case 0x09:
		op, mode = "ORA", modeImmediate
	case 0x0A:
		op = "ASL"
	case 0x0B:
		op, mode = "ANC", modeImmediate
	case 0x0C:
		op, mode = "NOP", modeAbsolute
	case 0x0D:
		op, mode = "ORA", modeAbsolute
	case 0x0E:
		op, mode = "ASL", modeAbsolute
	case 0x0F:
		op, mode = "SLO", modeAbsolute
	case 0x10:
		op, mode = "BPL", modeRelative
	case 0x11:
		op, mode = "ORA", modeIndirectY
	case 0x12:
		op = "HLT"
	case 0x13:
		op, mode = "SLO", modeIndirectY
	case 0x14:
		op, mode = "NOP", modeZPX
	case 0x15:
		op, mode = "ORA", modeZPX
	case 0x16:
		op, mode = "ASL", modeZPX
	case 0x17:
		op, mode = "SLO", modeZPX
	case 0x18:
		op = "CLC"
	case 0x19:
		op, mode = "ORA", modeAbsoluteY
	case 0x1A:
		op = "NOP"
	case 0x1B:
		op, mode = "SLO", modeAbsoluteY
	case 0x1C:
		op, mode = "NOP", modeAbsoluteX
	case 0x1D:
		op, mode = "ORA", modeAbsoluteX
	case 0x1E:
		op, mode = "ASL", modeAbsoluteX
	case 0x1F:
		op, mode = "SLO", modeAbsoluteX
	case 0x20:
		op, mode = "JSR", modeAbsolute
	case 0x21:
		op, mode = "AND", modeIndirectX
	case 0x22:
		op = "HLT"
	case 0x23:
		op, mode = "RLA", modeIndirectX
	case 0x24:
		op, mode = "BIT", modeZP
	case 0x25:
		op, mode = "AND", modeZP
	case 0x26:
		op, mode = "ROL", modeZP
	case 0x27:
		op, mode = "RLA", modeZP
	case 0x28:
		op = "PLP"
	case 0x29:
		op, mode = "AND", modeImmediate
	case 0x2A:
		op = "ROL"
	case 0x2B:
		op, mode = "ANC", modeImmediate
	case 0x2C:
		op, mode = "BIT", modeAbsolute
	case 0x2D:
		op, mode = "AND", modeAbsolute
	case 0x2E:
		op, mode = "ROL", modeAbsolute
	case 0x2F:
		op, mode = "RLA", modeAbsolute
	case 0x30:
		op, mode = "BMI", modeRelative
	case 0x31:
		op, mode = "AND", modeIndirectY
	case 0x32:
		op = "HLT"
	case 0x33:
		op, mode = "RLA", modeIndirectY
	case 0x34:
		op, mode = "NOP", modeZPX
	case 0x35:
		op, mode = "AND", modeZPX
	case 0x36:
		op, mode = "ROL", modeZPX
	case 0x37:
		op, mode = "RLA", modeZPX
	case 0x38:
		op = "SEC"
	case 0x39:
		op, mode = "AND", modeAbsoluteY
	case 0x3A:
		op = "NOP"
	case 0x3B:
		op, mode = "RLA", modeAbsoluteY
	case 0x3C:
		op, mode = "NOP", modeAbsoluteX
	case 0x3D:
		op, mode = "AND", modeAbsoluteX
	case 0x3E:
		op, mode = "ROL", modeAbsoluteX
	case 0x3F:
		op, mode = "RLA", modeAbsoluteX
	case 0x40:
		op = "RTI"
	case 0x41:
		op, mode = "EOR", modeIndirectX
	case 0x42:
		op = "HLT"
	case 0x43:
		op, mode = "SRE", modeIndirectX
	case 0x44:
		op, mode = "NOP", modeZP
	case 0x45:
		op, mode = "EOR", modeZP
	case 0x46:
		op, mode = "LSR", modeZP
	case 0x47:
		op, mode = "SRE", modeZP
	case 0x48:
		op = "PHA"
	case 0x49:
		op, mode = "EOR", modeImmediate
	case 0x4A:
		op = "LSR"
	case 0x4B:
		op, mode = "ALR", modeImmediate
	case 0x4C:
		op, mode = "JMP", modeAbsolute
	case 0x4D:
		op, mode = "EOR", modeAbsolute
	case 0x4E:
		op, mode = "LSR", modeAbsolute
	case 0x4F:
		op, mode = "SRE", modeAbsolute
	case 0x50:
		op, mode = "BVC", modeRelative
	case 0x51:
		op, mode = "EOR", modeIndirectY
	case 0x52:
		op = "HLT"
	case 0x53:
		op, mode = "SRE", modeIndirectY
	case 0x54:
		op, mode = "NOP", modeZPX
	case 0x55:
		op, mode = "EOR", modeZPX
	case 0x56:
		op, mode = "LSR", modeZPX
	case 0x57:
		op, mode = "SRE", modeZPX
	case 0x58:
		op = "CLI"
	case 0x59:
		op, mode = "EOR", modeAbsoluteY
	case 0x5A:
		op = "NOP"
	case 0x5B:
		op, mode = "SRE", modeAbsoluteY
	case 0x5C:
		op, mode = "NOP", modeAbsoluteX
	case 0x5D:
		op, mode = "EOR", modeAbsoluteX
	case 0x5E:
		op, mode = "LSR", modeAbsoluteX
	case 0x5F:
		op, mode = "SRE", modeAbsoluteX
	case 0x60:
		op = "RTS"
	case 0x61:
		op, mode = "ADC", modeIndirectX
	case 0x62:
		op = "HLT"
	case 0x63:
		op, mode = "RRA", modeIndirectX
	case 0x64:
		op, mode = "NOP", modeZP
	case 0x65:
		op, mode = "ADC", modeZP
	case 0x66:
		op, mode = "ROR", modeZP
	case 0x67:
		op, mode = "RRA", modeZP
	case 0x68:
		op = "PLA"
	case 0x69:
		op, mode = "ADC", modeImmediate
	case 0x6A:
		op = "ROR"
	case 0x6B:
		op, mode = "ARR", modeImmediate
	case 0x6C:
		op, mode = "JMP", modeIndirect
	case 0x6D:
		op, mode = "ADC", modeAbsolute
	case 0x6E:
		op, mode = "ROR", modeAbsolute
	case 0x6F:
		op, mode = "RRA", modeAbsolute
	case 0x70:
		op, mode = "BVS", modeRelative
	case 0x71:
		op, mode = "ADC", modeIndirectY
	case 0x72:
		op = "HLT"
	case 0x73:
		op, mode = "RRA", modeIndirectY
	case 0x74:
		op, mode = "NOP", modeZPX
	case 0x75:
		op, mode = "ADC", modeZPX
	case 0x76:
		op, mode = "ROR", modeZPX
	case 0x77:
		op, mode = "RRA", modeZPX
	case 0x78:
		op = "SEI"
	case 0x79:
		op, mode = "ADC", modeAbsoluteY
	case 0x7A:
		op = "NOP"
	case 0x7B:
		op, mode = "RRA", modeAbsoluteY
	case 0x7C:
		op, mode = "NOP", modeAbsoluteX
	case 0x7D:
		op, mode = "ADC", modeAbsoluteX
	case 0x7E:
		op, mode = "ROR", modeAbsoluteX
	case 0x7F:
		op, mode = "RRA", modeAbsoluteX
	case 0x80:
		op, mode = "NOP", modeImmediate
	case 0x81:
		op, mode = "STA", modeIndirectX
	case 0x82:
		op, mode = "NOP", modeImmediate
	case 0x83:
		op, mode = "SAX", modeIndirectX
	case 0x84:
		op, mode = "STY", modeZP
	case 0x85:
		op, mode = "STA", modeZP
	case 0x86:
		op, mode = "STX", modeZP
	case 0x87:
		op, mode = "SAX", modeZP
	case 0x88:
		op = "DEY"
	case 0x89:
		op, mode = "NOP", modeImmediate
	case 0x8A:
		op = "TXA"
	case 0x8B:
		op, mode = "XAA", modeImmediate
	case 0x8C:
		op, mode = "STY", modeAbsolute
	case 0x8D:
		op, mode = "STA", modeAbsolute
	case 0x8E:
		op, mode = "STX", modeAbsolute
	case 0x8F:
		op, mode = "SAX", modeAbsolute
	case 0x90:
		op, mode = "BCC", modeRelative
	case 0x91:
		op, mode = "STA", modeIndirectY
	case 0x92:
		op = "HLT"
	case 0x93:
		op, mode = "AHX", modeIndirectY
	case 0x94:
		op, mode = "STY", modeZPX
	case 0x95:
		op, mode = "STA", modeZPX
	case 0x96:
		op, mode = "STX", modeZPY
	case 0x97:
		op, mode = "SAX", modeZPY
	case 0x98:
		op = "TYA"
	case 0x99:
		op, mode = "STA", modeAbsoluteY
	case 0x9A:
		op = "TXS"
	case 0x9B:
		op, mode = "TAS", modeAbsoluteY
	case 0x9C:
		op, mode = "SHY", modeAbsoluteX
	case 0x9D:
		op, mode = "STA", modeAbsoluteX
	case 0x9E:
		op, mode = "SHX", modeAbsoluteY
	case 0x9F:
		op, mode = "AHX", modeAbsoluteY
	case 0xA0:
		op, mode = "LDY", modeImmediate
	case 0xA1:
		op, mode = "LDA", modeIndirectX
	case 0xA2:
		op, mode = "LDX", modeImmediate
	case 0xA3:
		op, mode = "LAX", modeIndirectX
	case 0xA4:
		op, mode = "LDY", modeZP
	case 0xA5:
		op, mode = "LDA", modeZP
	case 0xA6:
		op, mode = "LDX", modeZP
	case 0xA7:
		op, mode = "LAX", modeZP
	case 0xA8:
		op = "TAY"
	case 0xA9:
		op, mode = "LDA", modeImmediate
	case 0xAA:
		op = "TAX"
	case 0xAB:
		op, mode = "OAL", modeImmediate
	case 0xAC:
		op, mode = "LDY", modeAbsolute
	case 0xAD:
		op, mode = "LDA", modeAbsolute
	case 0xAE:
		op, mode = "LDX", modeAbsolute
	case 0xAF:
		op, mode = "LAX", modeAbsolute
	case 0xB0:
		op, mode = "BCS", modeRelative
	case 0xB1:
		op, mode = "LDA", modeIndirectY
	case 0xB2:
		op = "HLT"
	case 0xB3:
		op, mode = "LAX", modeIndirectY
	case 0xB4:
		op, mode = "LDY", modeZPX
	case 0xB5:
		op, mode = "LDA", modeZPX
	case 0xB6:
		op, mode = "LDX", modeZPY
	case 0xB7:
		op, mode = "LAX", modeZPY
	case 0xB8:
		op = "CLV"
	case 0xB9:
		op, mode = "LDA", modeAbsoluteY
	case 0xBA:
		op = "TSX"
	case 0xBB:
		op, mode = "LAS", modeAbsoluteY
	case 0xBC:
		op, mode = "LDY", modeAbsoluteX
	case 0xBD:
		op, mode = "LDA", modeAbsoluteX
	case 0xBE:
		op, mode = "LDX", modeAbsoluteY
	case 0xBF:
		op, mode = "LAX", modeAbsoluteY
	case 0xC0:
		op, mode = "CPY", modeImmediate
	case 0xC1:
		op, mode = "CMP", modeIndirectX
	case 0xC2:
		op, mode = "NOP", modeImmediate
	case 0xC3:
		op, mode = "DCP", modeIndirectX
	case 0xC4:
		op, mode = "CPY", modeZP
	case 0xC5:
		op, mode = "CMP", modeZP
	case 0xC6:
		op, mode = "DEC", modeZP
	case 0xC7:
		op, mode = "DCP", modeZP
	case 0xC8:
		op = "INY"
	case 0xC9:
		op, mode = "CMP", modeImmediate
	case 0xCA:
		op = "DEX"
	case 0xCB:
		op, mode = "SBX", modeImmediate
	case 0xCC:
		op, mode = "CPY", modeAbsolute
	case 0xCD:
		op, mode = "CMP", modeAbsolute
	case 0xCE:
		op, mode = "DEC", modeAbsolute
	case 0xCF:
		op, mode = "DCP", modeAbsolute
	case 0xD0:
		op, mode = "BNE", modeRelative
	case 0xD1:
		op, mode = "CMP", modeIndirectY
	case 0xD2:
		op = "HLT"
	case 0xD3:
		op, mode = "DCP", modeIndirectY
	case 0xD4:
		op, mode = "NOP", modeZPX
	case 0xD5:
		op, mode = "CMP", modeZPX
	case 0xD6:
		op, mode = "DEC", modeZPX
	case 0xD7:
		op, mode = "DCP", modeZPX
	case 0xD8:
		op = "CLD"
	case 0xD9:
		op, mode = "CMP", modeAbsoluteY
	case 0xDA:
		op = "NOP"
	case 0xDB:
		op, mode = "DCP", modeAbsoluteY
	case 0xDC:
		op, mode = "NOP", modeAbsoluteX
	case 0xDD:
		op, mode = "CMP", modeAbsoluteX
	case 0xDE:
		op, mode = "DEC", modeAbsoluteX
	case 0xDF:
		op, mode = "DCP", modeAbsoluteX
	case 0xE0:
		op, mode = "CPX", modeImmediate
	case 0xE1:
		op, mode = "SBC", modeIndirectX
	case 0xE2:
		op, mode = "NOP", modeImmediate
	case 0xE3:
		op, mode = "ISC", modeIndirectX
	case 0xE4:
		op, mode = "CPX", modeZP
	case 0xE5:
		op, mode = "SBC", modeZP
	case 0xE6:
		op, mode = "INC", modeZP
	case 0xE7:
		op, mode = "ISC", modeZP
	case 0xE8:
		op = "INX"
	case 0xE9:
		op, mode = "SBC", modeImmediate
	case 0xEA:
		op = "NOP"
	case 0xEB:
		op, mode = "SBC", modeImmediate
	case 0xEC:
		op, mode = "CPX", modeAbsolute
	case 0xED:
		op, mode = "SBC", modeAbsolute
	case 0xEE:
		op, mode = "INC", modeAbsolute
	case 0xEF:
		op, mode = "ISC", modeAbsolute
	case 0xF0:
		op, mode = "BEQ", modeRelative
	case 0xF1:
		op, mode = "SBC", modeIndirectY
	case 0xF2:
		op = "HLT"
	case 0xF3:
		op, mode = "ISC", modeIndirectY
	case 0xF4:
		op, mode = "NOP", modeZPX
	case 0xF5:
		op, mode = "SBC", modeZPX
	case 0xF6:
		op, mode = "INC", modeZPX
	case 0xF7:
		op, mode = "ISC", modeZPX
	case 0xF8:
		op = "SED"
	case 0xF9:
		op, mode = "SBC", modeAbsoluteY
	case 0xFA:
		op = "NOP"
	case 0xFB:
		op, mode = "ISC", modeAbsoluteY
	case 0xFC:
		op, mode = "NOP", modeAbsoluteX
	case 0xFD:
		op, mode = "SBC", modeAbsoluteX
	case 0xFE:
		op, mode = "INC", modeAbsoluteX
	case 0xFF:
		op, mode = "ISC", modeAbsoluteX
	default:
		op = "UNIMPLEMENTED"
	}

	count := 2 // Default byte count, adjusted below.
	out := fmt.Sprintf("%.4X %.2X ", pc, o)
	switch mode {
	case modeImmediate:
		out += fmt.Sprintf("%.2X      %s #%.2X       ", pc1, op, pc1)
	case modeZP:
		out += fmt.Sprintf("%.2X      %s %.2X        ", pc1, op, pc1)
	case modeZPX:
		out += fmt.Sprintf("%.2X      %s %.2X,X      ", pc1, op, pc1)
	case modeZPY:
		out += fmt.Sprintf("%.2X      %s %.2X,Y      ", pc1, op, pc1)
	case modeIndirectX:
		out += fmt.Sprintf("%.2X      %s (%.2X,X)    ", pc1, op, pc1)
	case modeIndirectY:
		out += fmt.Sprintf("%.2X      %s (%.2X),Y    ", pc1, op, pc1)
	case modeAbsolute:
		out += fmt.Sprintf("%.2X %.2X   %s %.2X%.2X      ", pc1, pc2, op, pc2, pc1)
		count++
	case modeAbsoluteX:
		out += fmt.Sprintf("%.2X %.2X   %s %.2X%.2X,X    ", pc1, pc2, op, pc2, pc1)
		count++
	case modeAbsoluteY:
		out += fmt.Sprintf("%.2X %.2X   %s %.2X%.2X,Y    ", pc1, pc2, op, pc2, pc1)
		count++
	case modeIndirect:
		out += fmt.Sprintf("%.2X %.2X   %s (%.2X%.2X)    ", pc1, pc2, op, pc2, pc1)
		count++
	case modeImplied:
		out += fmt.Sprintf("        %s           ", op)
		count--
	case modeRelative:
		out += fmt.Sprintf("%.2X      %s %.2X (%.4X) ", pc1, op, pc1, pc+pc116+2)
	default:
		panic(fmt.Sprintf("disasm: invalid mode %d", mode))
	}
	return out, count
}
