// Command replay feeds a recorded command log back through a fresh
// Engine and checks the resulting event stream against a recorded
// event log, byte-for-byte (spec.md §8 property 5). Exit codes follow
// spec.md §6's CLI surface: 0 success, 2 usage error, 3 divergence;
// 1 if the replay engine itself fails to run.
package main

import (
	"os"

	"fenrir/internal/config"
	"fenrir/internal/replay"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.ParseReplayFlags(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("invalid flags")
		os.Exit(2)
	}
	if cfg.CommandLogPath == "" || cfg.EventLogPath == "" {
		log.Error().Msg("both -commands and -events are required")
		os.Exit(2)
	}

	cmds, err := replay.ReadCommandLog(cfg.CommandLogPath)
	if err != nil {
		log.Error().Err(err).Msg("failed reading command log")
		os.Exit(2)
	}
	expected, err := replay.ReadEventLog(cfg.EventLogPath)
	if err != nil {
		log.Error().Err(err).Msg("failed reading event log")
		os.Exit(2)
	}

	produced, diff, err := replay.Run(cmds, expected, cfg.SelfTradePolicy)
	if err != nil {
		log.Error().Err(err).Msg("replay run failed")
		os.Exit(1)
	}
	if diff != nil {
		log.Error().Str("diff", diff.String()).Msg("replay diverged from recorded event log")
		os.Exit(3)
	}

	log.Info().Int("commands", len(cmds)).Int("events", len(produced)).Msg("replay matched recorded event log")
	os.Exit(0)
}
