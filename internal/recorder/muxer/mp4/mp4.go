// Package mp4 adapts github.com/yapingcat/gomedia's classic (non-fragmented)
// MP4 muxer to the recorder/muxer.Muxer contract.
package mp4

import (
	"io"

	gomp4 "github.com/yapingcat/gomedia/go-mp4"

	"github.com/alxayo/videopipe/internal/pipelineerr"
)

// Muxer writes a single H.264 track into a classic (moov-at-end) MP4 file
// via gomedia's Movmuxer, the same non-fragmented write/AddVideoTrack/
// WriteTrailer lifecycle used for on-disk recording elsewhere in the
// ecosystem.
type Muxer struct {
	mux     *gomp4.Movmuxer
	trackID uint32
}

// New returns an unopened mp4 Muxer.
func New() *Muxer { return &Muxer{} }

// Open creates the underlying Movmuxer and registers a single H.264 video
// track. gomedia derives parameter sets from the Annex-B bitstream it is
// handed on WritePacket rather than accepting them up front, so extradata
// and the declared frame size are not passed into the library call itself;
// they are recorded by the caller (the Recorder) for its own bookkeeping.
func (m *Muxer) Open(w io.Writer, extradata []byte, width, height int) error {
	mux, err := gomp4.CreateMp4Muxer(w)
	if err != nil {
		return pipelineerr.NewMuxError("mp4_create", err)
	}
	m.mux = mux
	m.trackID = mux.AddVideoTrack(gomp4.MP4_CODEC_H264)
	return nil
}

// TimeBase reports milliseconds, matching gomedia's Write signature.
func (m *Muxer) TimeBase() int64 { return 1000 }

// WritePacket writes one Annex-B access unit at the given pts/dts, both in
// milliseconds.
func (m *Muxer) WritePacket(data []byte, pts, dts int64, keyFrame bool) error {
	if err := m.mux.Write(m.trackID, data, uint64(pts), uint64(dts)); err != nil {
		return pipelineerr.NewMuxError("mp4_write", err)
	}
	return nil
}

// Close writes the moov trailer.
func (m *Muxer) Close() error {
	if err := m.mux.WriteTrailer(); err != nil {
		return pipelineerr.NewMuxError("mp4_trailer", err)
	}
	return nil
}
