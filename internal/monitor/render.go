package monitor

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/ridepark/internal/park"
)

// Format renders one snapshot as the monitor's system state block.
func Format(s park.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n[Monitor] SYSTEM STATE (Time: %d) =>\n", s.Time)
	b.WriteString("Ticket Queue: [")
	writeIDs(&b, s.TicketQueue)
	b.WriteString("]\n")
	b.WriteString("Ride Queue:   [")
	writeIDs(&b, s.RideQueue)
	b.WriteString("]\n")

	cars := slices.Clone(s.Cars)
	slices.SortFunc(cars, func(a, b park.CarSnapshot) int { return a.ID - b.ID })
	for _, c := range cars {
		fmt.Fprintf(&b, "Car status %d %s (%d/%d Passengers)\n", c.ID, c.Status, c.Riders, c.Capacity)
	}
	fmt.Fprintf(&b, "Passengers served: %d | Rides: %d\n", s.Served, s.Rides)
	return b.String()
}

func writeIDs(b *strings.Builder, ids []int) {
	for _, id := range ids {
		fmt.Fprintf(b, "P%d ", id)
	}
}

// maxFrame bounds one encoded snapshot line.
const maxFrame = 1 << 20

// Render reads newline-delimited JSON snapshots from r and writes each one to
// w as it arrives. Blank lines are skipped. It returns nil when r reaches EOF.
func Render(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrame)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var s park.Snapshot
		if err := json.Unmarshal(line, &s); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		if _, err := io.WriteString(w, Format(s)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	return nil
}
