package recorder

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/alxayo/videopipe/internal/packet"
)

type writeCall struct {
	data     []byte
	pts, dts int64
	keyFrame bool
}

// fakeMuxer is an injectable muxer.Muxer used to exercise the Recorder's
// state machine without depending on a real container library's byte
// format.
type fakeMuxer struct {
	opened        bool
	extradata     []byte
	width, height int
	writes        []writeCall
	closed        bool
	failAtWrite   int // 1-indexed write call to fail, 0 = never
	openErr       error
}

func (m *fakeMuxer) Open(_ io.Writer, extradata []byte, width, height int) error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	m.extradata = append([]byte(nil), extradata...)
	m.width, m.height = width, height
	return nil
}

func (m *fakeMuxer) TimeBase() int64 { return 1000 }

func (m *fakeMuxer) WritePacket(data []byte, pts, dts int64, keyFrame bool) error {
	m.writes = append(m.writes, writeCall{
		data: append([]byte(nil), data...), pts: pts, dts: dts, keyFrame: keyFrame,
	})
	if m.failAtWrite != 0 && len(m.writes) == m.failAtWrite {
		return errors.New("simulated muxer write failure")
	}
	return nil
}

func (m *fakeMuxer) Close() error {
	m.closed = true
	return nil
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func newTestRecorder(mx *fakeMuxer) *Recorder {
	return newWithMuxer(mx, nopWriteCloser{&bytes.Buffer{}}, 1280, 720)
}

func TestCleanTwoFrameRecording(t *testing.T) {
	mx := &fakeMuxer{}
	r := newTestRecorder(mx)

	cfg := packet.New(nil, []byte{0x01, 0x02, 0x03, 0x04}, packet.NoPTS, packet.NoPTS, false)
	f1 := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	f2 := packet.New(nil, []byte{0xBB}, 4000, 4000, true)
	defer cfg.Release()
	defer f1.Release()
	defer f2.Release()

	for _, p := range []*packet.Packet{cfg, f1, f2} {
		if err := r.Push(p); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if !mx.opened {
		t.Fatalf("expected muxer to be opened")
	}
	if !bytes.Equal(mx.extradata, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("unexpected extradata: %v", mx.extradata)
	}
	if !mx.closed {
		t.Fatalf("expected trailer to be written")
	}
	if len(mx.writes) != 2 {
		t.Fatalf("expected 2 muxed packets, got %d", len(mx.writes))
	}

	stats := r.Stats()
	if stats.Failed {
		t.Fatalf("expected clean recording, got failed=true")
	}
	if stats.PacketsWritten != 2 {
		t.Fatalf("expected 2 packets written, got %d", stats.PacketsWritten)
	}
}

func TestDurationInferenceAndFallback(t *testing.T) {
	mx := &fakeMuxer{}
	r := newTestRecorder(mx)

	cfg := packet.New(nil, []byte{0x67}, packet.NoPTS, packet.NoPTS, false)
	f1 := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	f2 := packet.New(nil, []byte{0xBB}, 4000, 4000, false)
	defer cfg.Release()
	defer f1.Release()
	defer f2.Release()

	for _, p := range []*packet.Packet{cfg, f1, f2} {
		if err := r.Push(p); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(mx.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(mx.writes))
	}
	// First packet's duration is the PTS delta to its successor (3000us ->
	// 3 in the fake's millisecond time base); the final packet gets the
	// 100ms fallback, which this test only verifies indirectly via the
	// recorder not hanging or failing — the fake muxer doesn't receive a
	// duration parameter (neither real backend's wire format carries one).
	if mx.writes[0].pts != 1 || mx.writes[1].pts != 4 {
		t.Fatalf("unexpected rescaled pts: %+v", mx.writes)
	}
}

func TestRejectsNonConfigFirstPacket(t *testing.T) {
	mx := &fakeMuxer{}
	r := newTestRecorder(mx)

	bad := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	defer bad.Release()

	if err := r.Push(bad); err != nil {
		t.Fatalf("push itself should not fail: %v", err)
	}
	if err := r.Close(); err == nil {
		t.Fatalf("expected close to report failure for missing header")
	}

	if mx.opened {
		t.Fatalf("expected muxer never to be opened")
	}
	if !r.Stats().Failed {
		t.Fatalf("expected Stats().Failed true")
	}
}

func TestMidStreamConfigPacketIsDropped(t *testing.T) {
	mx := &fakeMuxer{}
	r := newTestRecorder(mx)

	cfg := packet.New(nil, []byte{0x67}, packet.NoPTS, packet.NoPTS, false)
	f1 := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	midCfg := packet.New(nil, []byte{0x67, 0x68}, packet.NoPTS, packet.NoPTS, false)
	f2 := packet.New(nil, []byte{0xBB}, 4000, 4000, false)
	defer cfg.Release()
	defer f1.Release()
	defer midCfg.Release()
	defer f2.Release()

	for _, p := range []*packet.Packet{cfg, f1, midCfg, f2} {
		if err := r.Push(p); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(mx.writes) != 2 {
		t.Fatalf("expected mid-stream config to be dropped, not written; got %d writes", len(mx.writes))
	}
	if r.Stats().Dropped != 1 {
		t.Fatalf("expected dropped count of 1, got %d", r.Stats().Dropped)
	}
}

func TestMuxerWriteFailureMarksFailedAndSkipsTrailer(t *testing.T) {
	mx := &fakeMuxer{failAtWrite: 1}
	r := newTestRecorder(mx)

	cfg := packet.New(nil, []byte{0x67}, packet.NoPTS, packet.NoPTS, false)
	f1 := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	f2 := packet.New(nil, []byte{0xBB}, 2000, 2000, true)
	f3 := packet.New(nil, []byte{0xCC}, 3000, 3000, true)
	defer cfg.Release()
	defer f1.Release()
	defer f2.Release()
	defer f3.Release()

	for _, p := range []*packet.Packet{cfg, f1, f2, f3} {
		_ = r.Push(p)
	}
	if err := r.Close(); err == nil {
		t.Fatalf("expected close to surface the muxer failure")
	}

	if mx.closed {
		t.Fatalf("expected trailer not to be written after a write failure")
	}
	if !r.Stats().Failed {
		t.Fatalf("expected Stats().Failed true")
	}
	// f1's write was the one that failed, triggered by dequeuing f2; f2 is
	// released instead of becoming `previous`, so finish() has nothing to
	// flush, and f3 is either drained from the queue unwritten or rejected
	// by Push once the recorder has failed. No write beyond the failing one
	// may ever reach the muxer.
	if len(mx.writes) != 1 {
		t.Fatalf("expected exactly 1 muxer write (the failing one), got %d: %+v", len(mx.writes), mx.writes)
	}
}

func TestPushAfterCloseIsRejected(t *testing.T) {
	mx := &fakeMuxer{}
	r := newTestRecorder(mx)

	cfg := packet.New(nil, []byte{0x67}, packet.NoPTS, packet.NoPTS, false)
	defer cfg.Release()
	if err := r.Push(cfg); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	late := packet.New(nil, []byte{0xAA}, 1000, 1000, true)
	defer late.Release()
	if err := r.Push(late); err == nil {
		t.Fatalf("expected push after close to be rejected")
	}
}

func TestNewValidatesFormatAndFilename(t *testing.T) {
	if _, err := New("out.bin", Format("avi")); err == nil {
		t.Fatalf("expected unsupported format to be rejected")
	}
	if _, err := New("", FormatMP4); err == nil {
		t.Fatalf("expected empty filename to be rejected")
	}
	if _, err := New("out.mp4", FormatMP4); err != nil {
		t.Fatalf("expected valid construction to succeed: %v", err)
	}
}
