package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"fenrir/internal/common"
	"fenrir/internal/events"
	fenrirNet "fenrir/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	owner := flag.String("owner", "", "owner username (required for 'place'/'submit')")
	action := flag.String("action", "place", "action: place|submit|cancel|modify|snapshot")

	symbol := flag.String("symbol", "AAPL", "symbol")
	sideStr := flag.String("side", "buy", "order side: buy|sell")
	kindStr := flag.String("kind", "limit", "order kind: limit|market|ioc|fok|iceberg|stoploss|stoplimit")
	price := flag.Int64("price", 0, "limit price, in ticks")
	stopPrice := flag.Int64("stop-price", 0, "stop price, in ticks")
	qtyStr := flag.String("qty", "10", "quantity, or comma-separated list (e.g. 10,20,50)")
	dispQty := flag.Uint64("display-qty", 0, "displayed quantity, for iceberg orders")

	targetID := flag.String("order-id", "", "order id to cancel/modify")
	newPrice := flag.Int64("new-price", 0, "new limit price, for modify")
	newQty := flag.Uint64("new-qty", 0, "new quantity, for modify")
	includeOrders := flag.Bool("include-orders", false, "set the include-orders bit of a snapshot request; the snapshot report sent back carries level totals only, never per-order detail")

	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	switch strings.ToLower(*action) {
	case "place", "submit":
		if *owner == "" {
			log.Fatal("-owner is required for 'place'")
		}
		side := parseSide(*sideStr)
		kind := parseKind(*kindStr)
		for _, qty := range parseQuantities(*qtyStr) {
			buf := fenrirNet.EncodeNewOrder(*symbol, side, kind, *price, *stopPrice, qty, *dispQty, *owner)
			if _, err := conn.Write(buf); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %s %d @ %d\n", kind, side, qty, *price)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		if *targetID == "" {
			log.Fatal("-order-id is required for 'cancel'")
		}
		buf := fenrirNet.EncodeCancelOrder(*symbol, *targetID)
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for %s\n", *targetID)
		}
	case "modify":
		if *targetID == "" {
			log.Fatal("-order-id is required for 'modify'")
		}
		buf := fenrirNet.EncodeModifyOrder(*symbol, *targetID, *newPrice, *newQty)
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed to send modify: %v", err)
		} else {
			fmt.Printf("-> sent modify for %s: price=%d qty=%d\n", *targetID, *newPrice, *newQty)
		}
	case "snapshot":
		buf := fenrirNet.EncodeSnapshotRequest(*symbol, *includeOrders)
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed to send snapshot request: %v", err)
		} else {
			fmt.Printf("-> sent snapshot request for %s\n", *symbol)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (ctrl-c to exit)")
	select {}
}

func parseSide(s string) common.Side {
	if strings.EqualFold(s, "sell") {
		return common.Sell
	}
	return common.Buy
}

func parseKind(s string) common.Kind {
	switch strings.ToLower(s) {
	case "market":
		return common.Market
	case "ioc":
		return common.IOC
	case "fok":
		return common.FOK
	case "iceberg":
		return common.Iceberg
	case "stoploss":
		return common.StopLoss
	case "stoplimit":
		return common.StopLimit
	default:
		return common.Limit
	}
}

func parseQuantities(input string) []uint64 {
	var out []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if v, err := strconv.ParseUint(p, 10, 64); err == nil {
			out = append(out, v)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return out
}

// readReports reads and prints whatever kind of report arrives: a
// fixed-width order/trade report, or a variable-length snapshot
// report. Reports are always exactly fenrirNet.ReportBodyLen bytes;
// anything else on this connection is a snapshot.
func readReports(conn net.Conn) {
	buf := make([]byte, 4*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}
		msg := buf[:n]

		if n == fenrirNet.ReportBodyLen {
			if ev, err := fenrirNet.DecodeReport(msg); err == nil {
				printReport(ev)
				continue
			}
		}
		if snap, err := fenrirNet.DecodeSnapshotReport(msg); err == nil {
			printSnapshot(snap)
			continue
		}
		log.Printf("received unparseable message of %d bytes", n)
	}
}

func printReport(ev events.Event) {
	fmt.Printf("\n[REPORT] kind=%s symbol=%s orderID=%s seq=%d status=%s reason=%s price=%d qty=%d taker=%s maker=%s\n",
		ev.Kind, ev.Symbol, ev.OrderID, ev.Seq, ev.Status, ev.Reason, ev.Price, ev.Quantity, ev.TakerOrderID, ev.MakerOrderID)
}

func printSnapshot(snap *events.Snapshot) {
	fmt.Printf("\n[SNAPSHOT] symbol=%s lastTrade=%d (present=%v) bids=%d asks=%d\n",
		snap.Symbol, snap.LastTradePrice, snap.HasLastTrade, len(snap.Bids), len(snap.Asks))
}
