package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ChannelSink is the production Sink: a bounded channel plus a single
// drain goroutine that hands events to a downstream Deliver func (the
// TCP reporter, a log writer, whatever cmd/server wires up). When the
// channel is full, Deliver drops the event and logs it rather than
// blocking the matching goroutine — spec.md §5 makes this the only
// permitted suspension point, and only while enqueuing, never while
// draining.
//
// Grounded on the teacher's internal/net/server.go push-style
// ReportTrade/ReportError, generalized from a concrete *Server method
// into this injected, symbol-worker-safe interface implementation.
type ChannelSink struct {
	ch         chan Event
	downstream func(Event)
	dropped    atomic.Uint64
	wg         sync.WaitGroup
}

// NewChannelSink creates a sink with the given buffer size and starts
// its drain goroutine, which calls downstream for every delivered event.
func NewChannelSink(bufSize int, downstream func(Event)) *ChannelSink {
	s := &ChannelSink{
		ch:         make(chan Event, bufSize),
		downstream: downstream,
	}
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *ChannelSink) drain() {
	defer s.wg.Done()
	for ev := range s.ch {
		s.downstream(ev)
	}
}

// Deliver is safe for concurrent use by multiple symbol workers.
func (s *ChannelSink) Deliver(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		log.Warn().
			Str("symbol", ev.Symbol).
			Str("kind", ev.Kind.String()).
			Uint64("seq", ev.Seq).
			Msg("event sink backpressure: event dropped")
	}
}

// Dropped returns the number of events dropped due to backpressure.
func (s *ChannelSink) Dropped() uint64 { return s.dropped.Load() }

// Close stops accepting new events and waits for the drain goroutine
// to finish flushing whatever is already buffered.
func (s *ChannelSink) Close() {
	close(s.ch)
	s.wg.Wait()
}

// RecordingSink accumulates every delivered event in order, for tests
// and for the replay CLI's byte-stable divergence check
// (spec.md §8 property 5).
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a snapshot copy of everything recorded so far, in
// delivery order.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
