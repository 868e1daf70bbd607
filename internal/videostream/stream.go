// Package videostream implements the Stream: the network read loop that
// deframes the wire protocol (one complete H.264 access unit per chunk),
// detects key frames, and fans each
// resulting Packet out to its configured sinks (the Decoder, then the
// Recorder) in a fixed order. It is the producer side both of those sinks
// depend on.
package videostream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/alxayo/videopipe/internal/bufpool"
	"github.com/alxayo/videopipe/internal/events"
	"github.com/alxayo/videopipe/internal/logger"
	"github.com/alxayo/videopipe/internal/packet"
	"github.com/alxayo/videopipe/internal/pipelineerr"
	"github.com/alxayo/videopipe/internal/sink"
)

// maxPayloadLength bounds a single chunk's declared length, guarding
// against a corrupt header driving an unbounded allocation.
const maxPayloadLength = 32 << 20

// Stream owns the network read loop. Not safe for concurrent use beyond its
// own Start/Stop/Join contract: a single goroutine runs the loop.
type Stream struct {
	conn  io.ReadCloser
	codec sink.CodecDescriptor
	sinks []sink.Sink
	pool  *bufpool.Pool
	evq   *events.Queue
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New creates a Stream reading framed chunks from conn and pushing packets
// to sinks in the given order (conventionally decoder first, recorder
// second). evq may be nil, in which case stream-stopped notifications are
// simply discarded.
func New(conn io.ReadCloser, codec sink.CodecDescriptor, evq *events.Queue, sinks ...sink.Sink) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		conn:   conn,
		codec:  codec,
		sinks:  sinks,
		pool:   bufpool.New(),
		evq:    evq,
		log:    logger.WithComponent(logger.Logger(), "stream"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens every configured sink and launches the read loop goroutine.
// If any sink fails to open, already-opened sinks are closed and the error
// is returned without starting the loop.
func (s *Stream) Start() error {
	opened := make([]sink.Sink, 0, len(s.sinks))
	for _, sk := range s.sinks {
		if err := sk.Open(s.codec); err != nil {
			for _, o := range opened {
				_ = o.Close()
			}
			return pipelineerr.NewStreamError("sink_open", err)
		}
		opened = append(opened, sk)
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop requests termination. Idempotent and safe to call from any thread.
// It interrupts any sink capable of unblocking a waiting consumer and
// closes the underlying connection, which unblocks the read loop's pending
// read; the read loop then exits cleanly on the resulting error.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		for _, sk := range s.sinks {
			if in, ok := sk.(sink.Interrupter); ok {
				in.Interrupt()
			}
		}
		s.cancel()
		_ = s.conn.Close()
	})
}

// Join blocks until the read loop goroutine has exited.
func (s *Stream) Join() { s.wg.Wait() }

func (s *Stream) run() {
	defer s.wg.Done()
	defer s.closeSinks()

	err := s.readLoop()
	s.postStopped(err)
	if err != nil {
		s.log.Error("stream terminated", "error", err)
		return
	}
	s.log.Info("stream ended cleanly")
}

// readLoop is the deframe/parse/dispatch cycle described by the spec:
// receive a 12-byte header, receive the declared payload, parse it into an
// access unit, build a Packet, and push it to every sink in order.
func (s *Stream) readLoop() error {
	headerBuf := make([]byte, headerSize)
	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		pts, length, err := readHeader(s.conn, headerBuf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return nil
			}
			return pipelineerr.NewStreamError("read_header", err)
		}
		if length == 0 || length > maxPayloadLength {
			return pipelineerr.NewStreamError("read_header", fmt.Errorf("invalid payload length %d", length))
		}

		payload := s.pool.Get(int(length))
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			s.pool.Put(payload)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || s.ctx.Err() != nil {
				return nil
			}
			return pipelineerr.NewStreamError("read_payload", err)
		}

		keyFrame, perr := containsIDR(payload)
		if perr != nil {
			s.log.Debug("access unit failed to parse as Annex-B", "error", perr, "pts_us", pts, "size", length)
			keyFrame = false
		}

		pkt := packet.New(s.pool, payload, pts, pts, keyFrame)
		s.pool.Put(payload)

		if err := s.dispatch(pkt); err != nil {
			return err
		}
	}
}

// dispatch pushes pkt to every configured sink in order, releasing the
// stream's own reference once all sinks have seen it. A sink that needs the
// packet past its Push call must Retain it itself.
func (s *Stream) dispatch(pkt *packet.Packet) error {
	defer pkt.Release()
	for _, sk := range s.sinks {
		if err := sk.Push(pkt); err != nil {
			return pipelineerr.NewStreamError("sink_push", err)
		}
	}
	return nil
}

func (s *Stream) closeSinks() {
	for _, sk := range s.sinks {
		if err := sk.Close(); err != nil {
			s.log.Warn("sink close failed", "error", err)
		}
	}
}

func (s *Stream) postStopped(cause error) {
	if s.evq == nil {
		return
	}
	s.evq.Post(events.Event{Type: events.StreamStopped, Timestamp: time.Now(), Err: cause})
}
