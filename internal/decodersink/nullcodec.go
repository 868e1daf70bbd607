package decodersink

import (
	"log/slog"

	"github.com/alxayo/videopipe/internal/logger"
	"github.com/alxayo/videopipe/internal/packet"
	"github.com/alxayo/videopipe/internal/sink"
	"github.com/alxayo/videopipe/internal/videobuffer"
)

// NullCodec is a Codec that counts submitted packets but never emits a
// frame. It exists so the pipeline can be wired and exercised (e.g. for a
// recording-only deployment, or for tests) without linking an actual
// decode engine, which this repository does not vendor — see DESIGN.md.
type NullCodec struct {
	log       *slog.Logger
	Submitted uint64
}

// NewNullCodec returns a Codec that always reports ErrAgain.
func NewNullCodec() *NullCodec {
	return &NullCodec{log: logger.WithComponent(logger.Logger(), "null_codec")}
}

func (c *NullCodec) Open(codec sink.CodecDescriptor) error {
	c.log.Info("null codec opened, frames will not be decoded", "codec", codec.CodecID)
	return nil
}

func (c *NullCodec) SendPacket(pkt *packet.Packet) error {
	c.Submitted++
	return nil
}

func (c *NullCodec) ReceiveFrame(dst *videobuffer.Frame) error { return ErrAgain }

func (c *NullCodec) Close() error { return nil }
