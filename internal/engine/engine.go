// Package engine implements the matching core: a SymbolBook per
// traded symbol, each owned exclusively by its own supervised
// goroutine, plus the Engine that routes commands and snapshot
// requests to the right SymbolBook (replay is driven from outside, by
// internal/replay feeding commands into an Engine). Grounded on the
// teacher's internal/engine/engine.go (a single-book dispatcher) and
// internal/net/server.go's tomb.v2 supervision style, generalized to
// one worker per symbol with no shared mutable book state.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"fenrir/internal/common"
	"fenrir/internal/events"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// ErrUnknownSymbol is returned when a command or snapshot request
// names a symbol the Engine was not configured with.
var ErrUnknownSymbol = errors.New("symbol not registered with this engine")

// job is a unit of work handed to a symbol's owning goroutine. Using
// a closure rather than a CommandKind switch inside the worker keeps
// the worker loop itself oblivious to what operation it is running;
// Engine's exported methods build the closures.
type job func(*SymbolBook)

type symbolWorker struct {
	book *SymbolBook
	jobs chan job
}

// Engine owns one SymbolBook per symbol and the single event_seq
// counter shared by all of them (spec.md §3). No state is shared
// across symbols other than that counter and the injected Sink.
type Engine struct {
	sink      events.Sink
	clock     common.Clock
	policy    SelfTradePolicy
	backend   BookBackend
	queueSize int
	globalSeq atomic.Uint64

	mu      sync.RWMutex
	workers map[string]*symbolWorker

	t *tomb.Tomb
}

// New creates an Engine with a SymbolBook pre-registered for every
// symbol in symbols, each built on backend. queueSize bounds each
// symbol's command channel.
func New(sink events.Sink, clock common.Clock, policy SelfTradePolicy, backend BookBackend, queueSize int, symbols ...string) *Engine {
	e := &Engine{
		sink:      sink,
		clock:     clock,
		policy:    policy,
		backend:   backend,
		queueSize: queueSize,
		workers:   make(map[string]*symbolWorker),
	}
	for _, s := range symbols {
		e.registerLocked(s)
	}
	return e
}

func (e *Engine) registerLocked(symbol string) *symbolWorker {
	w := &symbolWorker{
		book: NewSymbolBook(symbol, e.policy, e.clock, e.sink, &e.globalSeq, e.backend),
		jobs: make(chan job, e.queueSize),
	}
	e.workers[symbol] = w
	return w
}

// RegisterSymbol adds a new tradeable symbol at runtime, starting its
// worker goroutine if the Engine is already running. Safe to call
// concurrently with Submit/Cancel/Modify/Snapshot.
func (e *Engine) RegisterSymbol(symbol string) {
	e.mu.Lock()
	if _, exists := e.workers[symbol]; exists {
		e.mu.Unlock()
		return
	}
	w := e.registerLocked(symbol)
	running := e.t != nil
	e.mu.Unlock()

	if running {
		e.t.Go(func() error { return e.runSymbol(symbol, w) })
	}
}

// Run starts one supervised goroutine per registered symbol and
// blocks until ctx is canceled or a worker returns a fatal error.
func (e *Engine) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	e.mu.Lock()
	e.t = t
	workers := make(map[string]*symbolWorker, len(e.workers))
	for sym, w := range e.workers {
		workers[sym] = w
	}
	e.mu.Unlock()

	for sym, w := range workers {
		sym, w := sym, w
		t.Go(func() error { return e.runSymbol(sym, w) })
	}

	log.Info().Int("symbols", len(workers)).Msg("engine running")
	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (e *Engine) runSymbol(symbol string, w *symbolWorker) error {
	log.Info().Str("symbol", symbol).Msg("symbol worker starting")
	for {
		select {
		case <-e.t.Dying():
			return nil
		case j := <-w.jobs:
			j(w.book)
		}
	}
}

// do runs fn synchronously on symbol's owning goroutine and waits for
// it to finish, so callers observe a consistent view (spec.md §5).
func (e *Engine) do(symbol string, fn func(*SymbolBook)) error {
	e.mu.RLock()
	w, ok := e.workers[symbol]
	t := e.t
	e.mu.RUnlock()
	if !ok {
		return ErrUnknownSymbol
	}

	done := make(chan struct{})
	wrapped := job(func(sb *SymbolBook) {
		fn(sb)
		close(done)
	})

	if t == nil {
		// Engine.Run has not been started yet (e.g. unit tests driving
		// a SymbolBook synchronously); run inline.
		wrapped(w.book)
		return nil
	}

	select {
	case w.jobs <- wrapped:
	case <-t.Dying():
		return t.Err()
	}
	select {
	case <-done:
		return nil
	case <-t.Dying():
		return t.Err()
	}
}

// Submit routes cmd to its symbol's worker and returns the admitted
// order id (empty on reject).
func (e *Engine) Submit(cmd Command) (string, error) {
	var id string
	var err error
	if derr := e.do(cmd.Symbol, func(sb *SymbolBook) { id, err = sb.Submit(cmd) }); derr != nil {
		return "", derr
	}
	return id, err
}

// Cancel routes cmd to its symbol's worker.
func (e *Engine) Cancel(cmd Command) error {
	var err error
	if derr := e.do(cmd.Symbol, func(sb *SymbolBook) { err = sb.Cancel(cmd) }); derr != nil {
		return derr
	}
	return err
}

// Modify routes cmd to its symbol's worker.
func (e *Engine) Modify(cmd Command) error {
	var err error
	if derr := e.do(cmd.Symbol, func(sb *SymbolBook) { err = sb.Modify(cmd) }); derr != nil {
		return derr
	}
	return err
}

// Snapshot produces a consistent, point-in-time view of symbol's book
// by running the read on the book's own goroutine.
func (e *Engine) Snapshot(symbol string, includeOrders bool) (*events.Snapshot, error) {
	var snap *events.Snapshot
	if derr := e.do(symbol, func(sb *SymbolBook) { snap = sb.Snapshot(includeOrders) }); derr != nil {
		return nil, derr
	}
	return snap, nil
}

// Symbols returns the currently registered symbol names.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.workers))
	for s := range e.workers {
		out = append(out, s)
	}
	return out
}
