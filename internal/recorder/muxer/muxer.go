// Package muxer defines the container-writer contract the Recorder drives,
// and is the parent of the two concrete backends (mp4, matroska).
package muxer

import "io"

// Muxer writes a single H.264 video stream into a container format. A Muxer
// is single-writer: every method is called from the Recorder's writer
// goroutine only, in the sequence Open, WritePacket*, Close.
type Muxer interface {
	// Open writes the container header for one video stream. extradata is
	// the raw SPS/PPS payload received in the config packet, and width and
	// height are the caller-declared frame dimensions. Neither backend in
	// this module stores extradata in the container (the mp4 backend also
	// ignores width and height). w is written to but not closed by the
	// Muxer; the Recorder owns the underlying file's lifetime.
	Open(w io.Writer, extradata []byte, width, height int) error

	// TimeBase reports ticks per second of the unit this Muxer's
	// WritePacket expects pts/dts in. The Recorder rescales from
	// microseconds into this base immediately before calling WritePacket.
	TimeBase() int64

	// WritePacket writes one access unit. pts and dts are already rescaled
	// into this Muxer's TimeBase.
	WritePacket(data []byte, pts, dts int64, keyFrame bool) error

	// Close writes the container trailer/finalizes block writers. It does
	// not close w.
	Close() error
}
