package pin

import "testing"

func TestPinZeroValueUnasserted(t *testing.T) {
	var p Pin
	if p.Raised() {
		t.Error("zero-value pin: Raised() = true, want false")
	}
}

func TestPinSingleProducer(t *testing.T) {
	p := NewPin()
	p.Assert("a")
	if !p.Raised() {
		t.Error("after Assert: Raised() = false, want true")
	}
	p.Clear("a")
	if p.Raised() {
		t.Error("after Clear: Raised() = true, want false")
	}
}

// TestPinMultiProducer verifies the active-low, multi-producer wired-OR
// semantics: the aggregate pin stays asserted until every producer clears.
func TestPinMultiProducer(t *testing.T) {
	p := NewPin()
	p.Assert("a")
	p.Assert("b")
	if !p.Raised() {
		t.Fatal("two producers asserted: Raised() = false, want true")
	}
	p.Clear("a")
	if !p.Raised() {
		t.Error("one of two producers cleared: Raised() = false, want true (b still asserts)")
	}
	p.Clear("b")
	if p.Raised() {
		t.Error("both producers cleared: Raised() = true, want false")
	}
}

func TestPinSet(t *testing.T) {
	p := NewPin()
	p.Set("a", true)
	if !p.Raised() {
		t.Error("Set(true): Raised() = false, want true")
	}
	p.Set("a", false)
	if p.Raised() {
		t.Error("Set(false): Raised() = true, want false")
	}
}

func TestPinClearUnknownProducerIsNoop(t *testing.T) {
	p := NewPin()
	p.Clear("never-asserted")
	if p.Raised() {
		t.Error("clearing a producer that never asserted: Raised() = true, want false")
	}
}

func TestRegistryReturnsSamePinForSameName(t *testing.T) {
	r := NewRegistry()
	a := r.Get(IRQ)
	b := r.Get(IRQ)
	if a != b {
		t.Error("Get(IRQ) returned different pins on repeated calls")
	}
}

func TestRegistryDistinctNamesGetDistinctPins(t *testing.T) {
	r := NewRegistry()
	irq := r.Get(IRQ)
	nmi := r.Get(NMI)
	if irq == nmi {
		t.Fatal("IRQ and NMI resolved to the same pin")
	}
	irq.Assert("cia1")
	if nmi.Raised() {
		t.Error("asserting IRQ also raised NMI")
	}
}

// TestRegistryCreatesUnknownPinsOnDemand verifies a Registry can also host
// chip-private pins (e.g. a CIA's CNT line) beyond the well known set.
func TestRegistryCreatesUnknownPinsOnDemand(t *testing.T) {
	r := NewRegistry()
	const cnt Name = 1000
	p := r.Get(cnt)
	if p == nil {
		t.Fatal("Get on unknown name returned nil")
	}
	if p.Raised() {
		t.Error("freshly created on-demand pin: Raised() = true, want false")
	}
}
