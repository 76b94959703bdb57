// Package replay implements the JSON-lines command/event log used by
// cmd/replay to feed a recorded command sequence back through a fresh
// Engine and assert the resulting event stream is byte-identical to
// the recording (spec.md §8 property 5). No teacher or pack repo logs
// to JSON lines for this purpose — this is a boundary-level
// serialization format, grounded on encoding/json and bufio.Scanner
// (stdlib; see DESIGN.md for why no third-party JSONL library was
// wired: a one-struct-per-line log has no framing or schema-evolution
// need that would justify one).
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

// CommandRecord is one logged command. For a submit that the original
// run accepted, Cmd.OrderID is pinned to the id assigned then, so
// Submit reuses it instead of minting a fresh uuid — without this,
// replay could never reproduce the same order ids. A rejected submit
// is recorded with an empty Cmd.OrderID, so its replay mints a fresh id.
type CommandRecord struct {
	Ts  time.Time      `json:"ts"`
	Cmd engine.Command `json:"cmd"`
}

// EventRecord mirrors events.Event in a JSON-friendly shape. Snapshot
// payloads are never logged; replay only compares the order-lifecycle
// and trade event stream.
type EventRecord struct {
	Seq           uint64              `json:"seq"`
	Symbol        string              `json:"symbol"`
	Ts            time.Time           `json:"ts"`
	Kind          events.Kind         `json:"kind"`
	OrderID       string              `json:"order_id,omitempty"`
	ArrivalSeq    uint64              `json:"arrival_seq,omitempty"`
	Reason        common.RejectReason `json:"reason,omitempty"`
	Status        common.Status       `json:"status,omitempty"`
	TakerOrderID  string              `json:"taker_order_id,omitempty"`
	MakerOrderID  string              `json:"maker_order_id,omitempty"`
	AggressorSide common.Side         `json:"aggressor_side,omitempty"`
	Price         int64               `json:"price,omitempty"`
	Quantity      uint64              `json:"quantity,omitempty"`
}

func toRecord(ev events.Event) EventRecord {
	return EventRecord{
		Seq: ev.Seq, Symbol: ev.Symbol, Ts: ev.Ts, Kind: ev.Kind,
		OrderID: ev.OrderID, ArrivalSeq: ev.ArrivalSeq, Reason: ev.Reason, Status: ev.Status,
		TakerOrderID: ev.TakerOrderID, MakerOrderID: ev.MakerOrderID, AggressorSide: ev.AggressorSide,
		Price: ev.Price, Quantity: ev.Quantity,
	}
}

// CommandRecorder appends CommandRecords to an underlying writer as it
// records a live run, for later replay.
type CommandRecorder struct {
	enc *json.Encoder
}

func NewCommandRecorder(w io.Writer) *CommandRecorder {
	return &CommandRecorder{enc: json.NewEncoder(w)}
}

func (r *CommandRecorder) Record(ts time.Time, cmd engine.Command) error {
	return r.enc.Encode(CommandRecord{Ts: ts, Cmd: cmd})
}

// WriteEventLog serializes a recorded event stream to w, one JSON
// object per line.
func WriteEventLog(w io.Writer, evs []events.Event) error {
	enc := json.NewEncoder(w)
	for _, ev := range evs {
		if err := enc.Encode(toRecord(ev)); err != nil {
			return err
		}
	}
	return nil
}

// ReadCommandLog reads every CommandRecord from path, in file order.
func ReadCommandLog(path string) ([]CommandRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}
	defer f.Close()

	var out []CommandRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec CommandRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode command record: %w", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan command log: %w", err)
	}
	return out, nil
}

// ReadEventLog reads every EventRecord from path, in file order.
func ReadEventLog(path string) ([]EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var out []EventRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec EventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode event record: %w", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan event log: %w", err)
	}
	return out, nil
}
