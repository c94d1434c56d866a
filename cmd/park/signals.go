package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// doubleStopExitCode is used when a second signal arrives during the drain.
const doubleStopExitCode = 1

// shutdownOnSignals returns a context canceled by the first SIGINT or SIGTERM.
// A second signal exits the process immediately.
func shutdownOnSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// Buffer two so neither of the first two signals is dropped.
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-ch:
			log.Printf("received %v, closing the park", sig)
			cancel()
		case <-ctx.Done():
			signal.Stop(ch)
			return
		}
		<-ch
		log.Printf("second signal, exiting")
		os.Exit(doubleStopExitCode)
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
