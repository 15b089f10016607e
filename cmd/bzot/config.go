package main

import (
	"flag"
	"io"
	"log/slog"
	"time"

	"bzot/application/bzot/request"
	"bzot/application/bzot/server"
	"bzot/transport/tcp"

	"github.com/pkg/errors"
)

type config struct {
	Listen tcp.ListenOptions
	Server server.Options

	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
}

func parseFlags(name string, args []string, output io.Writer) (config, error) {
	cfg := config{Listen: tcp.DefaultListenOptions()}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&cfg.Listen.Address, "addr", cfg.Listen.Address, "address to listen on")
	fs.IntVar(&cfg.Listen.Backlog, "backlog", cfg.Listen.Backlog, "listen backlog")
	fs.BoolVar(&cfg.Listen.ReuseAddr, "reuse-addr", cfg.Listen.ReuseAddr, "set SO_REUSEADDR")
	fs.BoolVar(&cfg.Listen.ReusePort, "reuse-port", cfg.Listen.ReusePort, "set SO_REUSEPORT")

	fs.UintVar(&cfg.Server.Read.ChunkSize, "chunk-size", request.DefaultChunkSize, "bytes requested per read")
	fs.UintVar(&cfg.Server.Read.MaxRequestSize, "max-request-size", 0, "largest request accepted in bytes, 0 for no limit")
	fs.DurationVar(&cfg.Server.Timeout.ReadTimeout, "read-timeout", 0, "time allowed to receive a request, 0 for no limit")
	fs.DurationVar(&cfg.Server.Timeout.WriteTimeout, "write-timeout", 0, "time allowed to write the reply, 0 for no limit")

	var banner string
	fs.StringVar(&banner, "banner", "", "text written to every connection before reading")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, empty to disable")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "time to wait for handlers on shutdown")

	var level string
	fs.StringVar(&level, "log-level", "info", "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if fs.NArg() > 0 {
		return config{}, errors.Errorf("unexpected arguments: %v", fs.Args())
	}

	if cfg.Server.Read.ChunkSize == 0 {
		return config{}, errors.New("chunk-size must be more than 0")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return config{}, errors.Wrap(err, "parsing log-level")
	}

	if banner != "" {
		cfg.Server.Reply.Banner = []byte(banner)
	}

	return cfg, nil
}
