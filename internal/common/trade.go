package common

import (
	"fmt"
	"time"
)

// Trade records one fill: a taker crossing against a resting maker,
// at the maker's price (maker-priced trade; price improvement accrues
// to the taker), plus the per-symbol trade sequence, which the
// SymbolBook records as last_trade_seq (stop triggering uses only the
// last trade price).
type Trade struct {
	Symbol        string
	Seq           uint64
	TakerOrderID  string
	MakerOrderID  string
	AggressorSide Side
	Price         int64
	Quantity      uint64
	Timestamp     time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{symbol=%s seq=%d taker=%s maker=%s side=%s price=%d qty=%d ts=%v}",
		t.Symbol, t.Seq, t.TakerOrderID, t.MakerOrderID, t.AggressorSide,
		t.Price, t.Quantity, t.Timestamp.Format(time.RFC3339Nano),
	)
}
