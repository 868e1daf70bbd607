// Package packet defines the Packet type shared by the Stream, Recorder and
// Decoder sink: a reference-counted access-unit payload plus timing metadata.
package packet

import (
	"sync/atomic"

	"github.com/alxayo/videopipe/internal/bufpool"
)

// NoPTS marks a packet whose PTS is unset: the first packet of a session,
// carrying codec extradata (SPS/PPS) rather than frame payload. On the wire
// this is the all-ones 64-bit pattern, which as a signed int64 is -1.
const NoPTS int64 = -1

// Packet is a reference-counted access unit. The Stream constructs one
// Packet per emitted access unit and calls Push on each configured sink in
// turn; a sink that wants to retain the packet beyond the Push call must
// call Retain, and must call Release exactly once when done with it.
type Packet struct {
	Data     []byte // payload bytes, backed by a bufpool buffer
	PTS      int64  // microseconds, or NoPTS for a config packet
	DTS      int64  // microseconds
	Duration int64  // microseconds; filled in by the Recorder's duration inference
	KeyFrame bool

	pool *bufpool.Pool
	refs int32
}

// New allocates a Packet whose Data is a copy of payload, backed by pool (or
// a newly created bufpool.Pool if nil). The returned Packet starts with one
// reference, owned by the caller.
func New(pool *bufpool.Pool, payload []byte, pts, dts int64, keyFrame bool) *Packet {
	if pool == nil {
		pool = bufpool.New()
	}
	buf := pool.Get(len(payload))
	copy(buf, payload)
	return &Packet{
		Data:     buf,
		PTS:      pts,
		DTS:      dts,
		KeyFrame: keyFrame,
		pool:     pool,
		refs:     1,
	}
}

// IsConfig reports whether this packet carries codec extradata rather than
// frame payload (PTS unset).
func (p *Packet) IsConfig() bool { return p.PTS == NoPTS }

// Retain increments the reference count. Call before handing the packet to
// a second owner (e.g. the Recorder's queue) that outlives the original
// caller's stack frame.
func (p *Packet) Retain() *Packet {
	if p == nil {
		return p
	}
	atomic.AddInt32(&p.refs, 1)
	return p
}

// Release decrements the reference count, returning the backing buffer to
// the pool once the last reference is dropped. Safe to call on a nil
// Packet.
func (p *Packet) Release() {
	if p == nil {
		return
	}
	if atomic.AddInt32(&p.refs, -1) > 0 {
		return
	}
	if p.pool != nil && p.Data != nil {
		p.pool.Put(p.Data)
	}
	p.Data = nil
}

// Clone returns an independent Packet with its own copy of Data, suitable
// for a consumer (e.g. the Recorder's writer goroutine) that wants to own
// the packet without coupling its lifetime to the producer's reference
// count.
func (p *Packet) Clone() *Packet {
	cp := New(p.pool, p.Data, p.PTS, p.DTS, p.KeyFrame)
	cp.Duration = p.Duration
	return cp
}
