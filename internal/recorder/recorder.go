// Package recorder implements the Recorder sink: an asynchronous writer
// that queues packets off the Stream's calling goroutine, infers a
// duration for each from PTS deltas, and muxes them into an MP4 or
// Matroska file on its own writer goroutine.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/alxayo/videopipe/internal/logger"
	"github.com/alxayo/videopipe/internal/packet"
	"github.com/alxayo/videopipe/internal/pipelineerr"
	"github.com/alxayo/videopipe/internal/recorder/muxer"
	"github.com/alxayo/videopipe/internal/recorder/muxer/matroska"
	"github.com/alxayo/videopipe/internal/recorder/muxer/mp4"
	"github.com/alxayo/videopipe/internal/sink"
)

// Format selects the container the Recorder writes.
type Format string

const (
	FormatMP4      Format = "mp4"
	FormatMatroska Format = "matroska"
)

// fallbackDuration is assigned to the final packet of a recording, whose
// true duration cannot be inferred because it has no successor.
const fallbackDuration int64 = 100_000 // microseconds

// Stats reports cumulative recorder activity. Safe to call from any
// goroutine at any time, including while recording is in progress.
type Stats struct {
	PacketsWritten uint64
	BytesWritten   uint64
	Dropped        uint64 // mid-stream config packets silently dropped
	Failed         bool
}

// Recorder is the asynchronous muxing sink described in the spec's
// Recorder State: an unbounded FIFO queue feeding a single writer
// goroutine that owns the muxer context, the header-written flag, and the
// one-slot duration-inference lookahead after Open.
type Recorder struct {
	filename string
	format   Format
	log      *slog.Logger

	width, height int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*packet.Packet
	stopped bool
	failed  bool

	file io.WriteCloser
	mux  muxer.Muxer

	// writer-goroutine-only state after Open.
	headerWritten bool
	extradata     []byte
	previous      *packet.Packet

	packetsWritten atomic.Uint64
	bytesWritten   atomic.Uint64
	dropped        atomic.Uint64

	wg sync.WaitGroup
}

// New validates filename/format and returns an unopened Recorder. Format
// validation happens here, at construction, rather than being discovered
// later at Open time.
func New(filename string, format Format) (*Recorder, error) {
	switch format {
	case FormatMP4, FormatMatroska:
	default:
		return nil, pipelineerr.NewRecorderError("new", fmt.Errorf("unsupported format %q", format))
	}
	if filename == "" {
		return nil, pipelineerr.NewRecorderError("new", fmt.Errorf("empty filename"))
	}
	r := &Recorder{
		filename: filename,
		format:   format,
		log:      logger.WithRecording(logger.WithComponent(logger.Logger(), "recorder"), filename, string(format)),
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// Open creates the output file, selects the muxer backend, and starts the
// writer goroutine. The container header itself is written lazily, by the
// writer goroutine, once the first (config) packet is dequeued.
func (r *Recorder) Open(codec sink.CodecDescriptor) error {
	f, err := os.Create(r.filename)
	if err != nil {
		return pipelineerr.NewRecorderError("open_file", err)
	}
	switch r.format {
	case FormatMP4:
		r.mux = mp4.New()
	case FormatMatroska:
		r.mux = matroska.New()
	}
	r.file = f
	r.width = codec.Width
	r.height = codec.Height

	r.wg.Add(1)
	go r.runWriter()
	return nil
}

// newWithMuxer is a test hook: it builds a Recorder around an
// already-selected muxer backend and writer, bypassing file creation and
// format dispatch, mirroring the teacher's newRecorderWithWriter fault
// injection pattern.
func newWithMuxer(mx muxer.Muxer, w io.WriteCloser, width, height int) *Recorder {
	r := &Recorder{
		filename: "<injected>",
		log:      logger.WithComponent(logger.Logger(), "recorder"),
		mux:      mx,
		file:     w,
		width:    width,
		height:   height,
	}
	r.cond = sync.NewCond(&r.mu)
	r.wg.Add(1)
	go r.runWriter()
	return r
}

// Push clones pkt and enqueues it for the writer goroutine, signalling it
// awake. Rejects once the recorder has failed or been asked to stop.
func (r *Recorder) Push(pkt *packet.Packet) error {
	r.mu.Lock()
	if r.failed {
		r.mu.Unlock()
		return pipelineerr.NewRecorderError("push", fmt.Errorf("recorder has failed"))
	}
	if r.stopped {
		r.mu.Unlock()
		return pipelineerr.NewRecorderError("push", fmt.Errorf("recorder is stopped"))
	}
	r.queue = append(r.queue, pkt.Clone())
	r.cond.Signal()
	r.mu.Unlock()
	return nil
}

// Close requests termination, waits for the writer goroutine to drain the
// queue and finalize the container, then closes the underlying file.
// Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.wg.Wait()
		return nil
	}
	r.stopped = true
	r.cond.Signal()
	r.mu.Unlock()

	r.wg.Wait()

	var closeErr error
	if r.file != nil {
		closeErr = r.file.Close()
	}
	if r.Stats().Failed {
		return pipelineerr.NewRecorderError("close", fmt.Errorf("recording failed"))
	}
	if closeErr != nil {
		return pipelineerr.NewRecorderError("close_file", closeErr)
	}
	return nil
}

// Stats returns a point-in-time snapshot of recorder activity.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()
	return Stats{
		PacketsWritten: r.packetsWritten.Load(),
		BytesWritten:   r.bytesWritten.Load(),
		Dropped:        r.dropped.Load(),
		Failed:         failed,
	}
}

// runWriter is the sole goroutine touching previous, headerWritten,
// extradata and the muxer context once Open returns.
func (r *Recorder) runWriter() {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		for !r.stopped && len(r.queue) == 0 {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.mu.Unlock()
			break
		}
		curr := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if err := r.process(curr); err != nil {
			r.log.Error("recorder writer failed", "error", err)
			r.markFailed()
			r.drainQueue()
			break
		}
	}
	r.finish()
}

// process implements the per-packet state machine: header protocol on the
// first dequeue, silent drop of mid-stream config packets, and one-slot
// duration inference for everything else.
func (r *Recorder) process(curr *packet.Packet) error {
	if !r.headerWritten {
		if !curr.IsConfig() {
			curr.Release()
			return pipelineerr.NewRecorderError("header", fmt.Errorf("first packet must carry codec extradata"))
		}
		r.extradata = append([]byte(nil), curr.Data...)
		if err := r.mux.Open(r.file, r.extradata, r.width, r.height); err != nil {
			curr.Release()
			return err
		}
		r.headerWritten = true
		curr.Release()
		return nil
	}

	if curr.IsConfig() {
		r.dropped.Add(1)
		curr.Release()
		return nil
	}

	if r.previous == nil {
		r.previous = curr
		return nil
	}

	r.previous.Duration = curr.PTS - r.previous.PTS
	err := r.writePacket(r.previous)
	r.previous.Release()
	if err != nil {
		// Leave previous nil rather than handing curr to finish(): once a
		// mux write has failed, finish() must not issue another one.
		r.previous = nil
		curr.Release()
		return err
	}
	r.previous = curr
	return nil
}

// writePacket rescales a packet's PTS/DTS into the muxer's native time
// base and hands it off.
func (r *Recorder) writePacket(p *packet.Packet) error {
	tb := r.mux.TimeBase()
	pts := rescale(p.PTS, tb)
	dts := rescale(p.DTS, tb)
	if err := r.mux.WritePacket(p.Data, pts, dts, p.KeyFrame); err != nil {
		return err
	}
	r.packetsWritten.Add(1)
	r.bytesWritten.Add(uint64(len(p.Data)))
	return nil
}

func rescale(us int64, timeBase int64) int64 {
	return us * timeBase / 1_000_000
}

// finish runs once, after the writer loop exits for any reason. The final
// packet is only flushed with the fallback duration on a clean exit: once a
// mux write has already failed (and runWriter has called markFailed before
// reaching here), no further WritePacket call is issued.
func (r *Recorder) finish() {
	r.mu.Lock()
	failed := r.failed
	r.mu.Unlock()

	if !failed && r.previous != nil {
		r.previous.Duration = fallbackDuration
		if err := r.writePacket(r.previous); err != nil {
			r.log.Warn("final packet write failed", "error", err)
		}
	}
	if r.previous != nil {
		r.previous.Release()
		r.previous = nil
	}

	r.mu.Lock()
	failed = r.failed
	headerWritten := r.headerWritten
	r.mu.Unlock()

	if !failed && headerWritten {
		if err := r.mux.Close(); err != nil {
			r.log.Error("trailer write failed", "error", err)
			r.markFailed()
		}
		return
	}
	r.markFailed()
}

func (r *Recorder) markFailed() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
}

func (r *Recorder) drainQueue() {
	r.mu.Lock()
	q := r.queue
	r.queue = nil
	r.mu.Unlock()
	for _, p := range q {
		p.Release()
	}
}
