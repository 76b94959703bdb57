package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"fenrir/internal/common"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/events"
	"fenrir/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.ParseServerFlags(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid flags")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	srv := build(cfg)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
	}
}

// build wires the Server and Engine together. The Engine's
// constructor needs a Sink (the Server implements events.Sink) but
// the Server's constructor needs the Engine to dispatch to, so the
// two are built in two steps — net.Server.SetEngine closes the loop
// without either side needing a placeholder pointer swap.
//
// The Engine never talks to srv.Deliver directly: it is wrapped in an
// events.ChannelSink, so a stalled client connection's blocking
// conn.Write backs up the sink's buffered channel and gets dropped by
// the sink rather than stalling a symbol's matching goroutine.
func build(cfg config.Server) *net.Server {
	srv := net.New(cfg.Address, cfg.Port, nil, cfg.ConnWorkers, cfg.ConnTimeout)
	if cfg.CommandLogPath != "" && cfg.EventLogPath != "" {
		if err := srv.EnableRecording(cfg.CommandLogPath, cfg.EventLogPath); err != nil {
			log.Fatal().Err(err).Msg("failed enabling replay recording")
		}
	}
	sink := events.NewChannelSink(cfg.EventBufferSize, srv.Deliver)
	eng := engine.New(sink, common.SystemClock{}, cfg.SelfTradePolicy, cfg.BookBackend, cfg.CommandQueueSize, cfg.Symbols...)
	srv.SetEngine(eng)
	return srv
}
