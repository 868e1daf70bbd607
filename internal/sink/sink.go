// Package sink defines the capability interface shared by packet consumers
// of the Stream: the Decoder and the Recorder. Modeled as a small interface
// rather than a class hierarchy, per the two concrete implementations that
// exist today (more are possible without touching the Stream).
package sink

import "github.com/alxayo/videopipe/internal/packet"

// CodecDescriptor identifies the elementary stream a sink must be prepared
// to consume: the codec id (always H.264 here), pixel format, and the
// caller-declared frame dimensions used by muxers/codec contexts that need
// them up front.
type CodecDescriptor struct {
	CodecID string // "h264"
	Width   int
	Height  int
}

// Sink is the packet consumer contract. Push borrows the packet for the
// duration of the call; a sink that needs to retain it past return must
// call packet.Packet.Retain (or Clone) before returning.
type Sink interface {
	Open(codec CodecDescriptor) error
	Push(pkt *packet.Packet) error
	Close() error
}

// Interrupter is implemented by sinks that can unblock a downstream
// consumer waiting for frames (the Decoder sink, via its Video Buffer).
// Stream.Stop calls Interrupt on any configured sink that implements it.
type Interrupter interface {
	Interrupt()
}
