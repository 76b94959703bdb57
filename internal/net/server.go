package net

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"fenrir/internal/engine"
	"fenrir/internal/events"
	"fenrir/internal/replay"
	"fenrir/internal/worker"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const maxRecvSize = 4 * 1024

// Server is the TCP front door: it accepts connections, parses
// commands off them, routes them to the Engine, and implements
// events.Sink to push reports back to the connection that submitted
// the order they concern. Grounded on the teacher's
// internal/net/server.go (tomb.v2 supervision, a fixed worker pool
// reading connections), generalized to dispatch through
// *engine.Engine instead of a single-AssetType Engine interface and
// to report via the full events.Event stream instead of two
// ReportTrade/ReportError methods.
type Server struct {
	address string
	port    int
	eng     *engine.Engine
	pool    *worker.Pool
	timeout time.Duration

	mu        sync.Mutex
	orderConn map[string]net.Conn
	sessions  map[string]net.Conn

	cmdRecorder  *replay.CommandRecorder
	cmdLogFile   *os.File
	eventLogPath string
	eventLog     *events.RecordingSink
}

// New creates a Server that dispatches commands to eng. eng may be
// nil at construction time and filled in later with SetEngine — the
// Engine's own constructor takes the Server as its events.Sink, so
// the two must be built in two steps to break the cycle. connWorkers
// bounds the number of connections actively being read at once;
// connTimeout is the per-read deadline.
func New(address string, port int, eng *engine.Engine, connWorkers int, connTimeout time.Duration) *Server {
	return &Server{
		address:   address,
		port:      port,
		eng:       eng,
		pool:      worker.NewPool(connWorkers),
		timeout:   connTimeout,
		orderConn: make(map[string]net.Conn),
		sessions:  make(map[string]net.Conn),
	}
}

// SetEngine wires the Engine this Server dispatches to. Must be
// called before Run.
func (s *Server) SetEngine(eng *engine.Engine) { s.eng = eng }

// EnableRecording opens cmdLogPath for append and arranges for every
// dispatched submit, cancel and modify command (snapshot requests are
// not recorded), and every emitted event, to be logged — feeding
// cmd/replay's divergence check (spec.md §8 property 5). eventLogPath
// is only written once, when Close is called, since it must be
// written in full rather than streamed (ReadEventLog expects a
// complete file).
func (s *Server) EnableRecording(cmdLogPath, eventLogPath string) error {
	f, err := os.OpenFile(cmdLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open command log: %w", err)
	}
	s.cmdLogFile = f
	s.cmdRecorder = replay.NewCommandRecorder(f)
	s.eventLogPath = eventLogPath
	s.eventLog = events.NewRecordingSink()
	return nil
}

// Close flushes the recorded event log (if recording is enabled) and
// releases the command log file handle.
func (s *Server) Close() error {
	if s.eventLogPath != "" {
		f, err := os.Create(s.eventLogPath)
		if err != nil {
			return fmt.Errorf("create event log: %w", err)
		}
		defer f.Close()
		if err := replay.WriteEventLog(f, s.eventLog.Events()); err != nil {
			return fmt.Errorf("write event log: %w", err)
		}
	}
	if s.cmdLogFile != nil {
		return s.cmdLogFile.Close()
	}
	return nil
}

// Deliver implements events.Sink, routing each event to whichever
// connection submitted the order(s) it concerns. Connections that
// never submitted the order in question (nothing known about it)
// are silently skipped.
func (s *Server) Deliver(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.eventLog != nil {
		s.eventLog.Deliver(ev)
	}

	switch ev.Kind {
	case events.Trade:
		s.writeToLocked(ev.TakerOrderID, ev)
		s.writeToLocked(ev.MakerOrderID, ev)
	default:
		s.writeToLocked(ev.OrderID, ev)
		if ev.Kind == events.Rejected || ev.Kind == events.Canceled {
			delete(s.orderConn, ev.OrderID)
		}
	}
}

func (s *Server) writeToLocked(orderID string, ev events.Event) {
	conn, ok := s.orderConn[orderID]
	if !ok {
		return
	}
	if _, err := conn.Write(EncodeReport(ev)); err != nil {
		log.Error().Err(err).Str("orderID", orderID).Msg("failed writing report to client")
		delete(s.sessions, conn.RemoteAddr().String())
		delete(s.orderConn, orderID)
	}
}

// Run starts the Engine, the connection-accept loop, and the worker
// pool that reads from accepted connections, blocking until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("failed flushing recorded logs")
		}
	}()

	t.Go(func() error { return s.eng.Run(ctx) })
	t.Go(func() error { s.pool.Run(t, s.handleConnection); return nil })
	t.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("server listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return t.Wait()
			default:
				log.Error().Err(err).Msg("accept error")
				continue
			}
		}
		s.addSession(conn)
		s.pool.AddTask(conn)
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = conn
}

func (s *Server) removeSession(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, addr)
}

// handleConnection reads exactly one message off conn, dispatches it,
// and re-queues the connection for its next message. A read error
// (including the per-read deadline expiring) tears the connection
// down; a message that fails to parse is dropped and the connection
// is re-queued.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		log.Error().Err(err).Msg("failed setting connection deadline")
		return nil
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		s.removeSession(conn.RemoteAddr().String())
		conn.Close()
		return nil
	}

	cmd, err := ParseCommand(buf[:n])
	if err != nil {
		log.Warn().Err(err).Str("address", conn.RemoteAddr().String()).Msg("dropping unparseable message")
		s.pool.AddTask(conn)
		return nil
	}

	s.dispatch(conn, cmd)
	s.pool.AddTask(conn)
	return nil
}

// recordCommand is a no-op unless EnableRecording was called. Replay
// is only byte-stable against a log recorded under a deterministic
// Clock (tests use common.ManualClock); against a live SystemClock
// run it reproduces the same commands and event ordering, but event
// timestamps are best-effort since two real clock reads a command
// apart are never bit-identical.
func (s *Server) recordCommand(cmd engine.Command) {
	if s.cmdRecorder == nil {
		return
	}
	if err := s.cmdRecorder.Record(time.Now(), cmd); err != nil {
		log.Error().Err(err).Msg("failed writing command log")
	}
}

func (s *Server) dispatch(conn net.Conn, cmd Command) {
	switch cmd.Kind {
	case engine.CmdSubmit:
		id, err := s.eng.Submit(cmd.Command)
		if id != "" {
			s.mu.Lock()
			s.orderConn[id] = conn
			s.mu.Unlock()
			// Pin the assigned id so a replayed submit reuses it
			// instead of minting a fresh uuid.
			cmd.Command.OrderID = id
		}
		s.recordCommand(cmd.Command)
		if err != nil {
			log.Info().Err(err).Str("symbol", cmd.Symbol).Msg("order rejected")
		}
	case engine.CmdCancel:
		s.recordCommand(cmd.Command)
		if err := s.eng.Cancel(cmd.Command); err != nil {
			log.Info().Err(err).Str("orderID", cmd.TargetOrderID).Msg("cancel rejected")
		}
	case engine.CmdModify:
		s.recordCommand(cmd.Command)
		if err := s.eng.Modify(cmd.Command); err != nil {
			log.Info().Err(err).Str("orderID", cmd.TargetOrderID).Msg("modify rejected")
		}
	case engine.CmdSnapshot:
		snap, err := s.eng.Snapshot(cmd.Symbol, cmd.IncludeOrders)
		if err != nil {
			log.Info().Err(err).Str("symbol", cmd.Symbol).Msg("snapshot failed")
			return
		}
		if _, err := conn.Write(EncodeSnapshotReport(snap)); err != nil {
			log.Error().Err(err).Msg("failed writing snapshot report")
		}
	}
}
