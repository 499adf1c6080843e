package display

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/amirphl/marketboard/internal/market"
	"github.com/amirphl/marketboard/internal/query"
)

// banner describes the load state above a view. It is empty when fresh data
// is shown.
func banner[T any](title string, st query.State[T]) string {
	switch {
	case !st.HasData && st.Err != nil:
		return fmt.Sprintf("[%s] failed to load: %v (retrying on next poll)", title, st.Err)
	case !st.HasData && st.Loading:
		return fmt.Sprintf("[%s] loading...", title)
	case !st.HasData:
		return fmt.Sprintf("[%s] no data yet", title)
	case st.Stale():
		return fmt.Sprintf("[%s] data may be outdated: %v", title, st.Err)
	default:
		return ""
	}
}

// RenderPairs writes the filtered pair list. pairs is the already-filtered
// view; st supplies the load state of the underlying query.
func RenderPairs(w io.Writer, st query.State[[]market.TradingPair], pairs []market.TradingPair, term string) error {
	if b := banner("pairs", st); b != "" {
		if _, err := fmt.Fprintln(w, b); err != nil {
			return err
		}
		if !st.HasData {
			return nil
		}
	}
	if term != "" && len(pairs) == 0 {
		_, err := fmt.Fprintf(w, "no trading pairs match %q\n", term)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PAIR\tPRICE\tCHANGE\t24H %\tVOLUME\t")
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			DisplaySymbol(p.Symbol),
			FormatPrice(p.LastPrice),
			FormatPrice(p.PriceChange24h),
			FormatPercent(p.PriceChangePercent24h),
			FormatVolume(p.Volume))
	}
	return tw.Flush()
}

// RenderOrderBook writes asks above bids, best levels nearest the middle.
func RenderOrderBook(w io.Writer, st query.State[market.OrderBook]) error {
	if b := banner("order book", st); b != "" {
		if _, err := fmt.Fprintln(w, b); err != nil {
			return err
		}
		if !st.HasData {
			return nil
		}
	}

	ob := st.Data
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tPRICE\tQTY\t\n", DisplaySymbol(ob.Symbol))
	for i := len(ob.Asks) - 1; i >= 0; i-- {
		fmt.Fprintf(tw, "ask\t%s\t%s\t\n", FormatPrice(ob.Asks[i].Price), FormatQuantity(ob.Asks[i].Quantity))
	}
	fmt.Fprintf(tw, "spread\t%s\t\t\n", FormatPrice(ob.Spread()))
	for _, bid := range ob.Bids {
		fmt.Fprintf(tw, "bid\t%s\t%s\t\n", FormatPrice(bid.Price), FormatQuantity(bid.Quantity))
	}
	return tw.Flush()
}

// RenderKlines writes the newest n candles, oldest first.
func RenderKlines(w io.Writer, st query.State[[]market.Kline], interval string, n int) error {
	if b := banner("klines "+interval, st); b != "" {
		if _, err := fmt.Fprintln(w, b); err != nil {
			return err
		}
		if !st.HasData {
			return nil
		}
	}
	if len(st.Data) == 0 {
		_, err := fmt.Fprintf(w, "no %s klines\n", interval)
		return err
	}

	klines := st.Data[max(0, len(st.Data)-n):]
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\t")
	for _, k := range klines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			time.UnixMilli(k.Timestamp).UTC().Format("01-02 15:04"),
			FormatPrice(k.Open),
			FormatPrice(k.High),
			FormatPrice(k.Low),
			FormatPrice(k.Close),
			FormatVolume(k.Volume))
	}
	return tw.Flush()
}
