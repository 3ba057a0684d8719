// Package io defines the minimal port interfaces chips use to read and
// drive external single-bit and 8-bit lines (joystick directions, paddle
// charge, keyboard matrix columns/rows, CIA parallel ports) without
// depending on a concrete input source.
package io

// Port8 is a readable 8-bit input port, e.g. a CIA parallel port as seen
// from outside the chip.
type Port8 interface {
	// Input will return the current value being set on the given input port.
	Input() uint8
}

// PortIn8 is an 8-bit value source (keyboard matrix row/column read-back).
type PortIn8 interface {
	Input() uint8
}

// PortOut8 is an 8-bit value sink (keyboard matrix column/row drive).
type PortOut8 interface {
	Output(uint8)
}

// PortIn1 is a single-bit input (joystick direction, paddle button, tape
// sense line). true means the physical signal is active (e.g. pressed).
type PortIn1 interface {
	Input() bool
}

// PortOut1 is a single-bit output (e.g. tape motor control, driven by the
// processor port).
type PortOut1 interface {
	Output(bool)
}
