package replay

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRecorder_WriteAndReadRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewCommandRecorder(&buf)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cmd := engine.Command{Kind: engine.CmdSubmit, Symbol: "AAPL", OrderID: "o1", Side: common.Buy, OrderKind: common.Limit, Price: 100, Quantity: 5}
	require.NoError(t, rec.Record(ts, cmd))

	path := filepath.Join(t.TempDir(), "commands.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := ReadCommandLog(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ts, got[0].Ts)
	assert.Equal(t, cmd, got[0].Cmd)
}

func TestWriteEventLog_ReadEventLogRoundtrip(t *testing.T) {
	evs := []events.Event{
		{Seq: 1, Symbol: "AAPL", Kind: events.Accepted, OrderID: "o1", ArrivalSeq: 1, Status: common.Pending},
		{Seq: 2, Symbol: "AAPL", Kind: events.Trade, TakerOrderID: "o2", MakerOrderID: "o1", Price: 100, Quantity: 5, AggressorSide: common.Buy},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEventLog(&buf, evs))

	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := ReadEventLog(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, toRecord(evs[0]), got[0])
	assert.Equal(t, toRecord(evs[1]), got[1])
}
