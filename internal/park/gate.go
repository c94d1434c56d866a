package park

// LoadGate serializes the claim phase of cars. A car holds the single permit
// from the moment it starts loading until it has issued its departure ticket,
// so ticket order is exactly the order in which cars finish claiming.
type LoadGate struct {
	permit chan struct{}
}

// NewLoadGate creates a gate with its permit available.
func NewLoadGate() *LoadGate {
	g := &LoadGate{permit: make(chan struct{}, 1)}
	g.permit <- struct{}{}
	return g
}

// Acquire takes the permit, giving up if done is closed first.
//
// Returns:
//   - true if the caller now holds the gate and must call Release
//   - false if done fired while waiting
func (g *LoadGate) Acquire(done <-chan struct{}) bool {
	select {
	case <-g.permit:
		return true
	case <-done:
		return false
	}
}

// Release returns the permit. Calling Release without holding the gate panics.
func (g *LoadGate) Release() {
	select {
	case g.permit <- struct{}{}:
	default:
		panic("park: release of unheld load gate")
	}
}
