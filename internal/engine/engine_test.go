package engine

import (
	"context"
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEngine(t *testing.T, eng *Engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestEngine_RoutesCommandsBySymbol(t *testing.T) {
	sink := events.NewRecordingSink()
	eng := New(sink, common.SystemClock{}, CancelTaker, BTreeBackend, 16, "AAPL", "MSFT")
	runEngine(t, eng)

	id, err := eng.Submit(Command{Kind: CmdSubmit, Symbol: "AAPL", Side: common.Buy, OrderKind: common.Limit, Price: 100, Quantity: 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = eng.Submit(Command{Kind: CmdSubmit, Symbol: "UNKNOWN", Side: common.Buy, OrderKind: common.Limit, Price: 100, Quantity: 10})
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	snap, err := eng.Snapshot("AAPL", false)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(100), snap.Bids[0].Price)

	snap, err = eng.Snapshot("MSFT", false)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
}

func TestEngine_RegisterSymbolWhileRunning(t *testing.T) {
	sink := events.NewRecordingSink()
	eng := New(sink, common.SystemClock{}, CancelTaker, BTreeBackend, 16, "AAPL")
	runEngine(t, eng)

	eng.RegisterSymbol("GOOG")

	var lastErr error
	require.Eventually(t, func() bool {
		_, lastErr = eng.Snapshot("GOOG", false)
		return lastErr == nil
	}, time.Second, time.Millisecond, "newly registered symbol should accept commands once running")
}

func TestEngine_CancelAndModifyRoundtrip(t *testing.T) {
	sink := events.NewRecordingSink()
	eng := New(sink, common.SystemClock{}, CancelTaker, BTreeBackend, 16, "AAPL")
	runEngine(t, eng)

	id, err := eng.Submit(Command{Kind: CmdSubmit, Symbol: "AAPL", Side: common.Buy, OrderKind: common.Limit, Price: 50, Quantity: 10})
	require.NoError(t, err)

	err = eng.Modify(Command{Symbol: "AAPL", TargetOrderID: id, NewPrice: 50, NewQuantity: 5})
	require.NoError(t, err)

	snap, err := eng.Snapshot("AAPL", false)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, uint64(5), snap.Bids[0].DisplayQty)

	err = eng.Cancel(Command{Symbol: "AAPL", TargetOrderID: id})
	require.NoError(t, err)

	snap, err = eng.Snapshot("AAPL", false)
	require.NoError(t, err)
	assert.Empty(t, snap.Bids)
}
