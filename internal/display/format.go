// Package display renders market data for terminals.
package display

import (
	"strings"

	"github.com/shopspring/decimal"
)

const quoteAsset = "USDT"

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FormatPrice renders price with thousands separators and between 2 and 8
// fraction digits.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price).Round(8)
	intPart, frac, _ := strings.Cut(d.Abs().String(), ".")
	for len(frac) < 2 {
		frac += "0"
	}

	out := groupThousands(intPart) + "." + frac
	if d.Sign() < 0 {
		return "-" + out
	}
	return out
}

// FormatVolume abbreviates volume with K/M/B suffixes.
func FormatVolume(volume float64) string {
	d := decimal.NewFromFloat(volume)
	switch {
	case d.GreaterThanOrEqual(billion):
		return d.Div(billion).StringFixed(2) + "B"
	case d.GreaterThanOrEqual(million):
		return d.Div(million).StringFixed(2) + "M"
	case d.GreaterThanOrEqual(thousand):
		return d.Div(thousand).StringFixed(2) + "K"
	default:
		return d.StringFixed(2)
	}
}

// FormatPercent renders a signed percentage, e.g. "+1.25%".
func FormatPercent(percent float64) string {
	d := decimal.NewFromFloat(percent)
	s := d.StringFixed(2) + "%"
	if d.Sign() >= 0 {
		return "+" + s
	}
	return s
}

func FormatQuantity(qty float64) string {
	return decimal.NewFromFloat(qty).StringFixed(4)
}

// DisplaySymbol splits a USDT-quoted symbol into "BASE/USDT".
func DisplaySymbol(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, quoteAsset); ok && base != "" {
		return base + "/" + quoteAsset
	}
	return symbol
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
