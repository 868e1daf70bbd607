// Package videobuffer implements a lossy, constant-memory latest-frame
// hand-off between one producer thread (the Decoder) and one consumer
// thread (the renderer). It is a three-slot swap, not a queue: the
// consumer only ever wants the most recently decoded frame, so older
// offered frames are dropped rather than buffered.
package videobuffer

import "sync"

// Frame is an opaque decoded picture. The codec library that fills it is
// abstracted away (see internal/decodersink); the buffer only moves
// pointers around and never inspects Planes.
type Frame struct {
	Width, Height int
	Planes        [3][]byte // Y, U, V for YUV420P
	PTS           int64     // microseconds
}

// Callbacks are invoked by the producer thread, synchronously, immediately
// after releasing the buffer's internal lock. They must not block.
type Callbacks struct {
	OnFrameAvailable func(userdata any)
	OnFrameSkipped   func(userdata any) // optional
}

// Buffer is the triple-buffered hand-off described in the spec: producer,
// pending and consumer slots plus one boolean tracking whether the pending
// slot has been consumed.
type Buffer struct {
	mu sync.Mutex

	producer *Frame
	pending  *Frame
	consumer *Frame

	pendingConsumed bool

	cb       Callbacks
	userdata any
	cbSet    bool
}

// New allocates a Buffer with three inert frame slots. No frame is
// available to the consumer until the producer calls OfferFrame at least
// once.
func New() *Buffer {
	return &Buffer{
		producer:        &Frame{},
		pending:         &Frame{},
		consumer:        &Frame{},
		pendingConsumed: true,
	}
}

// SetConsumerCallbacks installs the consumer notification hooks. Must be
// called exactly once, before the first OfferFrame.
func (b *Buffer) SetConsumerCallbacks(cb Callbacks, userdata any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
	b.userdata = userdata
	b.cbSet = true
}

// Producer returns the slot the producer thread should write the next
// decoded frame into, before calling OfferFrame. Only the producer thread
// may touch the returned Frame.
func (b *Buffer) Producer() *Frame {
	return b.producer
}

// OfferFrame publishes the frame currently held in the producer slot,
// dropping whatever frame was previously pending and not yet consumed.
// Called by the producer thread only.
func (b *Buffer) OfferFrame() {
	b.mu.Lock()
	// Drop the prior pending frame's payload reference before it is
	// overwritten; the consumer never sees a half-replaced slot because
	// the swap below happens under the same lock.
	b.pending.Planes = [3][]byte{}

	b.producer, b.pending = b.pending, b.producer

	skipped := !b.pendingConsumed
	b.pendingConsumed = false
	cb := b.cb
	userdata := b.userdata
	cbSet := b.cbSet
	b.mu.Unlock()

	if !cbSet {
		return
	}
	if skipped {
		if cb.OnFrameSkipped != nil {
			cb.OnFrameSkipped(userdata)
		}
		return
	}
	if cb.OnFrameAvailable != nil {
		cb.OnFrameAvailable(userdata)
	}
}

// TakeFrame publishes the latest offered frame into the consumer slot and
// returns it. The returned Frame is read-only and valid until the next
// TakeFrame call. Panics if called when no frame is pending — the contract
// is that the consumer only calls this from an on_frame_available (or
// on_frame_skipped-preceded) notification. Called by the consumer thread
// only.
func (b *Buffer) TakeFrame() *Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingConsumed {
		panic("videobuffer: TakeFrame called with no frame pending")
	}
	b.pendingConsumed = true
	b.consumer, b.pending = b.pending, b.consumer
	b.pending.Planes = [3][]byte{}
	return b.consumer
}

// Interrupt unblocks a consumer that is sleeping for frames. This
// implementation's consumer is event-driven via callbacks and never
// blocks, so Interrupt is a no-op hook kept for sink implementations
// (e.g. the Decoder sink) that wrap a blocking downstream consumer.
func (b *Buffer) Interrupt() {}
