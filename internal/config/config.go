// Package config holds the plain option structs cmd/server and
// cmd/replay populate from flag.FlagSet. No repo in the retrieved pack
// reaches for a config file/env library for a surface this small — a
// dozen scalar fields parsed once at startup — so the teacher's own
// approach (a struct filled in by the standard flag package, as
// cmd/client/client.go already does for its own flags) is kept rather
// than introduced for its own sake. See DESIGN.md.
package config

import (
	"flag"
	"time"

	"fenrir/internal/engine"
)

// Server holds every option cmd/server/server.go needs to wire an
// Engine and a net.Server together.
type Server struct {
	Address string
	Port    int

	Symbols []string

	SelfTradePolicy engine.SelfTradePolicy
	BookBackend     engine.BookBackend

	CommandQueueSize int
	EventBufferSize  int
	ConnWorkers      int
	ConnTimeout      time.Duration

	// CommandLogPath/EventLogPath enable recording a replayable log of
	// this run, for later replay/divergence checking via cmd/replay.
	// Both empty (the default) disables recording entirely.
	CommandLogPath string
	EventLogPath   string
}

// ParseServerFlags parses args (typically os.Args[1:]) into a Server
// config, applying the same defaults the teacher's cmd/server/server.go
// hard-coded (0.0.0.0:9001).
func ParseServerFlags(args []string) (Server, error) {
	fs := flag.NewFlagSet("fenrir-server", flag.ContinueOnError)

	address := fs.String("address", "0.0.0.0", "listen address")
	port := fs.Int("port", 9001, "listen port")
	symbols := fs.String("symbols", "AAPL", "comma-separated list of tradeable symbols")
	selfTrade := fs.String("self-trade-policy", "cancel-taker", "self-trade policy: cancel-taker|cancel-maker|cancel-both")
	bookBackend := fs.String("book-backend", "btree", "per-symbol book storage backend: btree|heap")
	cmdQueue := fs.Int("command-queue-size", 1024, "per-symbol bounded command channel size")
	eventBuf := fs.Int("event-buffer-size", 4096, "event sink channel buffer size")
	connWorkers := fs.Int("conn-workers", 10, "TCP connection worker pool size")
	connTimeout := fs.Duration("conn-timeout", time.Second, "per-read connection deadline")
	cmdLog := fs.String("record-commands", "", "path to append a replayable command log to (disabled if empty)")
	eventLog := fs.String("record-events", "", "path to write the matching recorded event log to on shutdown (disabled if empty)")

	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}

	return Server{
		Address:          *address,
		Port:             *port,
		Symbols:          splitSymbols(*symbols),
		SelfTradePolicy:  parseSelfTradePolicy(*selfTrade),
		BookBackend:      parseBookBackend(*bookBackend),
		CommandQueueSize: *cmdQueue,
		EventBufferSize:  *eventBuf,
		ConnWorkers:      *connWorkers,
		ConnTimeout:      *connTimeout,
		CommandLogPath:   *cmdLog,
		EventLogPath:     *eventLog,
	}, nil
}

func splitSymbols(raw string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func parseSelfTradePolicy(raw string) engine.SelfTradePolicy {
	switch raw {
	case "cancel-maker":
		return engine.CancelMaker
	case "cancel-both":
		return engine.CancelBoth
	default:
		return engine.CancelTaker
	}
}

// parseBookBackend defaults to the btree backend; "heap" selects the
// container/heap-backed book.HeapSideBook, a lighter choice for
// symbols with few distinct price levels (see
// internal/book/legacy_heap.go).
func parseBookBackend(raw string) engine.BookBackend {
	if raw == "heap" {
		return engine.HeapBackend
	}
	return engine.BTreeBackend
}

// Replay holds the options cmd/replay/main.go needs to reconstruct
// and verify a recorded command/event log.
type Replay struct {
	CommandLogPath  string
	EventLogPath    string
	SelfTradePolicy engine.SelfTradePolicy
}

// ParseReplayFlags parses args into a Replay config. The self-trade
// policy must match whatever the original run used — it is not
// recoverable from the log itself, so it is passed the same way the
// server's is: as a flag.
func ParseReplayFlags(args []string) (Replay, error) {
	fs := flag.NewFlagSet("fenrir-replay", flag.ContinueOnError)
	cmdLog := fs.String("commands", "", "path to recorded command log")
	eventLog := fs.String("events", "", "path to recorded event log to check against")
	selfTrade := fs.String("self-trade-policy", "cancel-taker", "self-trade policy used by the original run: cancel-taker|cancel-maker|cancel-both")
	if err := fs.Parse(args); err != nil {
		return Replay{}, err
	}
	return Replay{
		CommandLogPath:  *cmdLog,
		EventLogPath:    *eventLog,
		SelfTradePolicy: parseSelfTradePolicy(*selfTrade),
	}, nil
}
