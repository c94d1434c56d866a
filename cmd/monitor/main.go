// Command monitor renders park snapshots read from stdin until the stream
// ends. cmd/park starts it with -monitor <path>.
package main

import (
	"log"
	"os"

	"github.com/dreamware/ridepark/internal/monitor"
)

func main() {
	if err := monitor.Render(os.Stdin, os.Stdout); err != nil {
		log.Printf("monitor: %v", err)
		os.Exit(1)
	}
}
