package park

import (
	"sync"

	"golang.org/x/exp/slices"
)

// TicketBooth tracks passengers who finished exploring and are waiting for
// space in the ride queue. It is informational only: admission order is
// decided by the RideQueue, the booth just lets the monitor show who is
// standing in line for a ticket.
type TicketBooth struct {
	ids []int
	mu  sync.Mutex
}

// NewTicketBooth creates an empty booth.
func NewTicketBooth() *TicketBooth {
	return &TicketBooth{}
}

// Enter appends a passenger to the booth line.
func (b *TicketBooth) Enter(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, id)
}

// Leave removes a passenger from the booth line. No-op if absent.
func (b *TicketBooth) Leave(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.ids, id); i >= 0 {
		b.ids = slices.Delete(b.ids, i, i+1)
	}
}

// IDs returns a copy of the booth line in arrival order.
func (b *TicketBooth) IDs() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ids)
}
