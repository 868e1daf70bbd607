// Package decodersink implements the Decoder sink: it drives a codec
// engine to turn packets into frames and deposits each emitted frame into
// the Video Buffer for a renderer to sample.
package decodersink

import (
	"errors"
	"log/slog"

	"github.com/alxayo/videopipe/internal/logger"
	"github.com/alxayo/videopipe/internal/packet"
	"github.com/alxayo/videopipe/internal/pipelineerr"
	"github.com/alxayo/videopipe/internal/sink"
	"github.com/alxayo/videopipe/internal/videobuffer"
)

// ErrAgain is returned by Codec.ReceiveFrame when the engine has
// consumed the submitted packet but has not yet assembled a full picture
// (the classic send/receive decode loop's non-fatal "need more input").
var ErrAgain = errors.New("decodersink: no frame ready")

// Codec abstracts the concrete decode engine behind the send-packet /
// receive-frame convention the spec describes. No decoding implementation
// ships in this module (NullCodec only counts packets and never emits a
// frame): see DESIGN.md for why the example corpus gives no grounded
// third-party codec library to wrap here. Callers supply one (a cgo
// binding, a subprocess-based decoder, or a test double) at construction
// time.
type Codec interface {
	// Open allocates the codec context and any long-lived resources for
	// the given stream parameters.
	Open(codec sink.CodecDescriptor) error
	// SendPacket submits one access unit to the decoder.
	SendPacket(pkt *packet.Packet) error
	// ReceiveFrame attempts to fill dst with one decoded picture. Returns
	// ErrAgain if no frame is ready yet; any other error is fatal.
	ReceiveFrame(dst *videobuffer.Frame) error
	// Close tears down the codec context.
	Close() error
}

// Sink implements sink.Sink and sink.Interrupter, wiring a Codec to a
// Video Buffer. It is driven by the Stream's single read-loop goroutine;
// the codec engine and the buffer's producer slot are therefore touched by
// one goroutine only, matching the spec's synchronous-decoder design.
type Sink struct {
	codec Codec
	buf   *videobuffer.Buffer
	log   *slog.Logger
}

// New wires codec to buf. The caller must have already called
// buf.SetConsumerCallbacks before packets start flowing.
func New(codec Codec, buf *videobuffer.Buffer) *Sink {
	return &Sink{
		codec: codec,
		buf:   buf,
		log:   logger.WithComponent(logger.Logger(), "decoder"),
	}
}

// Open allocates the codec context.
func (s *Sink) Open(codec sink.CodecDescriptor) error {
	if err := s.codec.Open(codec); err != nil {
		return pipelineerr.NewDecodeError("open", err)
	}
	return nil
}

// Push submits pkt, then attempts one frame receive into the buffer's
// producer slot. EAGAIN is non-fatal: the codec consumed the packet but
// needs more input before it can emit a picture. Any other receive error
// is fatal and terminates the Stream per the sink contract.
func (s *Sink) Push(pkt *packet.Packet) error {
	if err := s.codec.SendPacket(pkt); err != nil {
		return pipelineerr.NewDecodeError("send_packet", err)
	}

	if err := s.codec.ReceiveFrame(s.buf.Producer()); err != nil {
		if errors.Is(err, ErrAgain) {
			return nil
		}
		return pipelineerr.NewDecodeError("receive_frame", err)
	}

	s.buf.OfferFrame()
	return nil
}

// Close tears down the codec context.
func (s *Sink) Close() error {
	if err := s.codec.Close(); err != nil {
		return pipelineerr.NewDecodeError("close", err)
	}
	return nil
}

// Interrupt forwards to the underlying Video Buffer's Interrupt. That
// buffer's consumer is event-driven and never blocks waiting for frames,
// so the call currently has no effect.
func (s *Sink) Interrupt() { s.buf.Interrupt() }
