// Package monitor carries park snapshots from the simulation to an isolated
// monitor and renders them.
//
// # Wire Format
//
// Each snapshot is one JSON object followed by a newline:
//
//	{"run_id":"…","ticket_queue":[3],"ride_queue":[1,4],"cars":[…],"time":9,…}
//
// The producing side (Broadcaster) and the consuming side (Render) share
// nothing but the byte stream, so the consumer can run in-process over an
// io.Pipe or in a separate process reading its stdin.
//
// # Backpressure
//
// The simulation never waits for the monitor. Broadcaster.Publish copies the
// snapshot into a bounded buffer; when the buffer is full, or after a write
// to the monitor failed, the snapshot is dropped and a *ChannelError is
// returned so the caller can log it.
package monitor
