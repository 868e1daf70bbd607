package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alxayo/videopipe/internal/decodersink"
	"github.com/alxayo/videopipe/internal/events"
	"github.com/alxayo/videopipe/internal/logger"
	"github.com/alxayo/videopipe/internal/recorder"
	"github.com/alxayo/videopipe/internal/sink"
	"github.com/alxayo/videopipe/internal/videobuffer"
	"github.com/alxayo/videopipe/internal/videostream"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.WithComponent(logger.Logger(), "cli")

	conn, err := net.Dial("tcp", cfg.addr)
	if err != nil {
		log.Error("failed to connect", "addr", cfg.addr, "error", err)
		os.Exit(1)
	}

	codecDescriptor := sink.CodecDescriptor{
		CodecID: "h264",
		Width:   int(cfg.width),
		Height:  int(cfg.height),
	}

	buf := videobuffer.New()
	var framesRendered uint64
	buf.SetConsumerCallbacks(videobuffer.Callbacks{
		OnFrameAvailable: func(any) {
			framesRendered++
			f := buf.TakeFrame()
			log.Debug("frame available", "pts_us", f.PTS)
		},
		OnFrameSkipped: func(any) {
			log.Debug("frame skipped, renderer behind")
		},
	}, nil)

	decoder := decodersink.New(decodersink.NewNullCodec(), buf)
	sinks := []sink.Sink{decoder}

	var rec *recorder.Recorder
	if cfg.record {
		rec, err = recorder.New(cfg.recordFile, recorder.Format(cfg.recordFmt))
		if err != nil {
			log.Error("invalid recorder configuration", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, rec)
	}

	evq := events.NewQueue(4)
	st := videostream.New(conn, codecDescriptor, evq, sinks...)
	if err := st.Start(); err != nil {
		log.Error("failed to start stream", "error", err)
		os.Exit(1)
	}
	log.Info("pipeline started", "addr", cfg.addr, "version", version, "recording", cfg.record)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownGracefully(st, log)
	case ev := <-evq.C():
		if ev.Err != nil {
			log.Error("stream stopped with error", "error", ev.Err)
		} else {
			log.Info("stream stopped")
		}
		st.Join()
	}

	if rec != nil {
		stats := rec.Stats()
		if stats.Failed {
			log.Error("recording failed", "file", cfg.recordFile)
		} else {
			log.Info("recording complete", "file", cfg.recordFile, "format", cfg.recordFmt,
				"packets_written", stats.PacketsWritten, "bytes_written", stats.BytesWritten)
		}
	}
	log.Info("frames rendered", "count", framesRendered)
}

// shutdownGracefully requests stop and waits for the stream worker to
// exit, forcing process exit after a bounded timeout if it doesn't.
func shutdownGracefully(st *videostream.Stream, log interface {
	Info(string, ...any)
	Error(string, ...any)
}) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		st.Stop()
		st.Join()
		close(done)
	}()

	select {
	case <-done:
		log.Info("pipeline stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after shutdown timeout")
	}
}
