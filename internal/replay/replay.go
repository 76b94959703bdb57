package replay

import (
	"context"
	"fmt"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

// Diff describes the first point where a replayed event stream
// diverged from the expected recording.
type Diff struct {
	Index    int
	Expected EventRecord
	Actual   EventRecord
}

func (d Diff) String() string {
	return fmt.Sprintf("event %d diverged:\n  expected: %+v\n  actual:   %+v", d.Index, d.Expected, d.Actual)
}

// symbolsIn collects the distinct symbols referenced across cmds, so
// Run can register every SymbolBook the log touches up front.
func symbolsIn(cmds []CommandRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range cmds {
		if !seen[rec.Cmd.Symbol] {
			seen[rec.Cmd.Symbol] = true
			out = append(out, rec.Cmd.Symbol)
		}
	}
	return out
}

// Run replays cmds in log order (across all symbols) through a
// freshly constructed Engine clocked to each command's recorded
// timestamp, and diffs the resulting event stream against expected.
// It returns the produced stream and, if found, the first Diff.
func Run(cmds []CommandRecord, expected []EventRecord, policy engine.SelfTradePolicy) ([]EventRecord, *Diff, error) {
	var start time.Time
	if len(cmds) > 0 {
		start = cmds[0].Ts
	}
	clock := common.NewManualClock(start)
	sink := events.NewRecordingSink()
	// BookBackend only changes how levels are stored internally, never
	// the matching semantics or event stream it produces, so replay
	// fidelity does not depend on matching the original run's choice.
	eng := engine.New(sink, clock, policy, engine.BTreeBackend, 64, symbolsIn(cmds)...)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run(ctx) }()

	for _, rec := range cmds {
		clock.Set(rec.Ts)
		if err := dispatch(eng, rec.Cmd); err != nil {
			// Rejections/rejects surface as events, not errors here;
			// a non-nil error means the command targeted an order or
			// symbol no longer live, which the recorded run would have
			// hit identically — it is not a divergence by itself.
			_ = err
		}
	}
	cancel()
	if err := <-runErr; err != nil {
		return nil, nil, fmt.Errorf("engine run: %w", err)
	}

	produced := make([]EventRecord, 0, len(sink.Events()))
	for _, ev := range sink.Events() {
		produced = append(produced, toRecord(ev))
	}

	diff := firstDivergence(expected, produced)
	return produced, diff, nil
}

func dispatch(eng *engine.Engine, cmd engine.Command) error {
	switch cmd.Kind {
	case engine.CmdSubmit:
		_, err := eng.Submit(cmd)
		return err
	case engine.CmdCancel:
		return eng.Cancel(cmd)
	case engine.CmdModify:
		return eng.Modify(cmd)
	case engine.CmdSnapshot:
		_, err := eng.Snapshot(cmd.Symbol, false)
		return err
	default:
		return nil
	}
}

func firstDivergence(expected, actual []EventRecord) *Diff {
	n := len(expected)
	if len(actual) < n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		if expected[i] != actual[i] {
			return &Diff{Index: i, Expected: expected[i], Actual: actual[i]}
		}
	}
	if len(expected) != len(actual) {
		i := n
		var exp, act EventRecord
		if i < len(expected) {
			exp = expected[i]
		}
		if i < len(actual) {
			act = actual[i]
		}
		return &Diff{Index: i, Expected: exp, Actual: act}
	}
	return nil
}
