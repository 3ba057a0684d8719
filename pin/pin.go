// Package pin implements the shared electrical-signal abstraction that chips
// use to observe each other without holding direct references to one
// another. A Pin is active-low and multi-producer: the aggregate level is
// low iff any registered producer currently asserts it.
package pin

// Name identifies one of the well known signal lines shared across chips.
type Name int

// The fixed set of named pins the machine wires up at construction time.
const (
	IRQ Name = iota
	NMI
	Reset
	BA
	AEC
	CassetteSense
	CassetteRead
	CassetteMotor
)

// Pin is a multi-producer active-low signal. The zero value is a pin with no
// producers, which reads as high (not asserted).
type Pin struct {
	producers map[string]bool
}

// NewPin returns an unasserted pin ready for producers to register against.
func NewPin() *Pin {
	return &Pin{producers: make(map[string]bool)}
}

// Assert sets the given producer's slot to asserted (active-low: pin reads
// low). Producers are identified by name so a producer can clear its own
// assertion without affecting any other producer's.
func (p *Pin) Assert(producer string) {
	p.producers[producer] = true
}

// Clear removes the given producer's assertion. It's not an error to clear a
// producer that never asserted.
func (p *Pin) Clear(producer string) {
	p.producers[producer] = false
}

// Set is a convenience for Assert/Clear driven by a boolean (true == assert).
func (p *Pin) Set(producer string, asserted bool) {
	if asserted {
		p.Assert(producer)
		return
	}
	p.Clear(producer)
}

// Raised reports the aggregate pin level: true (asserted, i.e. electrically
// low) iff at least one producer currently asserts it.
func (p *Pin) Raised() bool {
	for _, v := range p.producers {
		if v {
			return true
		}
	}
	return false
}

// Registry owns every named pin in the machine so chips hold only opaque
// handles into it rather than direct references to each other. This avoids
// the reference cycles that arise when two chips need to observe the same
// signal.
type Registry struct {
	pins map[Name]*Pin
}

// NewRegistry returns a registry pre-populated with all well known pins.
func NewRegistry() *Registry {
	r := &Registry{pins: make(map[Name]*Pin)}
	for _, n := range []Name{IRQ, NMI, Reset, BA, AEC, CassetteSense, CassetteRead, CassetteMotor} {
		r.pins[n] = NewPin()
	}
	return r
}

// Get returns the pin for the given name, creating it on first use so the
// registry can also host chip-specific pins (e.g. a CIA's CNT line) beyond
// the well known set.
func (r *Registry) Get(n Name) *Pin {
	if p, ok := r.pins[n]; ok {
		return p
	}
	p := NewPin()
	r.pins[n] = p
	return p
}
