package replay

import (
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ReplayMatchesRecordedEventLog(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cmds := []CommandRecord{
		{Ts: start, Cmd: engine.Command{
			Kind: engine.CmdSubmit, Symbol: "AAPL", OrderID: "maker-1",
			Side: common.Sell, OrderKind: common.Limit, Price: 100, Quantity: 10,
		}},
		{Ts: start.Add(time.Second), Cmd: engine.Command{
			Kind: engine.CmdSubmit, Symbol: "AAPL", OrderID: "taker-1",
			Side: common.Buy, OrderKind: common.Limit, Price: 100, Quantity: 10,
		}},
	}

	produced, _, err := Run(cmds, nil, engine.CancelTaker)
	require.NoError(t, err)
	require.NotEmpty(t, produced)

	// Replaying the very same commands against the recording just
	// produced must reproduce it byte-for-byte.
	produced2, diff2, err := Run(cmds, produced, engine.CancelTaker)
	require.NoError(t, err)
	assert.Nil(t, diff2)
	assert.Equal(t, produced, produced2)
}

func TestRun_DetectsDivergence(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cmds := []CommandRecord{
		{Ts: start, Cmd: engine.Command{
			Kind: engine.CmdSubmit, Symbol: "AAPL", OrderID: "maker-1",
			Side: common.Sell, OrderKind: common.Limit, Price: 100, Quantity: 10,
		}},
	}
	produced, _, err := Run(cmds, nil, engine.CancelTaker)
	require.NoError(t, err)

	tampered := make([]EventRecord, len(produced))
	copy(tampered, produced)
	tampered[0].Price = 999

	_, diff, err := Run(cmds, tampered, engine.CancelTaker)
	require.NoError(t, err)
	require.NotNil(t, diff)
	assert.Equal(t, 0, diff.Index)
}
