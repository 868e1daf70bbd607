// Package matroska adapts github.com/at-wat/ebml-go's webm/mkvcore block
// writer to the recorder/muxer.Muxer contract.
package matroska

import (
	"io"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"

	"github.com/alxayo/videopipe/internal/pipelineerr"
)

// Muxer writes a single H.264 video track into a Matroska (webm-flavored)
// container using ebml-go's SimpleBlockWriter.
type Muxer struct {
	video webm.BlockWriteCloser
	onErr error
}

// New returns an unopened matroska Muxer.
func New() *Muxer { return &Muxer{} }

// Open creates the single video track. extradata is not passed to ebml-go
// directly (SimpleBlockWriter has no SPS/PPS slot for V_MPEG4/ISO/AVC); it
// is recorded by the caller for its own bookkeeping, matching how the
// single-track WebM examples in the ecosystem write raw Annex-B without a
// codec-private blob.
func (m *Muxer) Open(w io.Writer, extradata []byte, width, height int) error {
	writers, err := webm.NewSimpleBlockWriter(w, []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     "V_MPEG4/ISO/AVC",
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(width),
				PixelHeight: uint64(height),
			},
		},
	}, mkvcore.WithOnFatalHandler(func(err error) {
		m.onErr = err
	}))
	if err != nil {
		return pipelineerr.NewMuxError("matroska_create", err)
	}
	m.video = writers[0]
	return nil
}

// TimeBase reports nanoseconds, matching ebml-go's block timestamp unit.
func (m *Muxer) TimeBase() int64 { return 1_000_000_000 }

// WritePacket writes one Annex-B access unit at the given pts (dts is
// unused: Matroska SimpleBlocks carry a single presentation timestamp).
func (m *Muxer) WritePacket(data []byte, pts, dts int64, keyFrame bool) error {
	if _, err := m.video.Write(keyFrame, pts, data); err != nil {
		return pipelineerr.NewMuxError("matroska_write", err)
	}
	if m.onErr != nil {
		err := m.onErr
		m.onErr = nil
		return pipelineerr.NewMuxError("matroska_fatal", err)
	}
	return nil
}

// Close finalizes the block writer.
func (m *Muxer) Close() error {
	if err := m.video.Close(); err != nil {
		return pipelineerr.NewMuxError("matroska_close", err)
	}
	return nil
}
