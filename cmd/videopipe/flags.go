package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/alxayo/videopipe/internal/recorder"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user-supplied flag values prior to validation, so main
// can map it onto the pipeline's constructors.
type cliConfig struct {
	addr        string
	logLevel    string
	width       uint
	height      uint
	record      bool
	recordFile  string
	recordFmt   string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("videopipe", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.StringVar(&cfg.addr, "addr", "127.0.0.1:9999", "TCP address to dial for the framed H.264 stream")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.UintVar(&cfg.width, "width", 1280, "Declared frame width")
	fs.UintVar(&cfg.height, "height", 720, "Declared frame height")
	fs.BoolVar(&cfg.record, "record", false, "Enable recording to -record-file")
	fs.StringVar(&cfg.recordFile, "record-file", "recording.mp4", "Output path for the recorder")
	fs.StringVar(&cfg.recordFmt, "record-format", "mp4", "Recorder container: mp4|matroska")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if cfg.width == 0 || cfg.height == 0 {
		return nil, errors.New("width and height must be positive")
	}

	if cfg.record {
		switch cfg.recordFmt {
		case string(recorder.FormatMP4), string(recorder.FormatMatroska):
		default:
			return nil, fmt.Errorf("invalid record-format %q", cfg.recordFmt)
		}
		if cfg.recordFile == "" {
			return nil, errors.New("record-file must not be empty when -record is set")
		}
	}

	return cfg, nil
}
