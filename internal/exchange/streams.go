// streams.go defines stream subscription specs and their wire names.
//
// Market stream names are lowercase-symbol-prefixed (`btcusdt@depth20@100ms`,
// `btcusdt@bookTicker`); user streams are bare uppercase names subscribed on
// the listen-key socket (`ORDER_TRADE_UPDATE`). Param renders the wire form
// and ParseStreamSpec inverts it.
package exchange

import (
	"fmt"
	"strconv"
	"strings"

	"ceraunus/pkg/types"
)

// StreamKind discriminates the subscription spec variants.
type StreamKind uint8

const (
	StreamDepth StreamKind = iota
	StreamBookTicker
	StreamAggTrade
	StreamTrade
	StreamTradeLite
	StreamOrderTradeUpdate
	StreamAccountUpdate
)

// StreamSpec identifies one stream subscription. Levels and IntervalMs apply
// to depth streams only; zero means "omitted" and the venue default applies.
type StreamSpec struct {
	Kind       StreamKind
	Symbol     types.Symbol // unused for user streams
	Levels     int
	IntervalMs int
}

// DepthSpec builds a depth subscription. levels and intervalMs are
// independently optional (0 = omit).
func DepthSpec(symbol types.Symbol, levels, intervalMs int) StreamSpec {
	return StreamSpec{Kind: StreamDepth, Symbol: symbol, Levels: levels, IntervalMs: intervalMs}
}

// BookTickerSpec builds a top-of-book subscription.
func BookTickerSpec(symbol types.Symbol) StreamSpec {
	return StreamSpec{Kind: StreamBookTicker, Symbol: symbol}
}

// AggTradeSpec builds an aggregate-trade subscription.
func AggTradeSpec(symbol types.Symbol) StreamSpec {
	return StreamSpec{Kind: StreamAggTrade, Symbol: symbol}
}

// TradeSpec builds a raw-trade subscription.
func TradeSpec(symbol types.Symbol) StreamSpec {
	return StreamSpec{Kind: StreamTrade, Symbol: symbol}
}

// UserStreamSpecs returns the full set of user-data subscriptions.
func UserStreamSpecs() []StreamSpec {
	return []StreamSpec{
		{Kind: StreamOrderTradeUpdate},
		{Kind: StreamTradeLite},
		{Kind: StreamAccountUpdate},
	}
}

// Param renders the wire stream name used in subscribe/unsubscribe params.
func (s StreamSpec) Param() string {
	switch s.Kind {
	case StreamDepth:
		var b strings.Builder
		b.WriteString(s.Symbol.Lower())
		b.WriteString("@depth")
		if s.Levels > 0 {
			b.WriteString(strconv.Itoa(s.Levels))
		}
		if s.IntervalMs > 0 {
			b.WriteString("@")
			b.WriteString(strconv.Itoa(s.IntervalMs))
			b.WriteString("ms")
		}
		return b.String()
	case StreamBookTicker:
		return s.Symbol.Lower() + "@bookTicker"
	case StreamAggTrade:
		return s.Symbol.Lower() + "@aggTrade"
	case StreamTrade:
		return s.Symbol.Lower() + "@trade"
	case StreamTradeLite:
		return "TRADE_LITE"
	case StreamOrderTradeUpdate:
		return "ORDER_TRADE_UPDATE"
	case StreamAccountUpdate:
		return "ACCOUNT_UPDATE"
	default:
		return ""
	}
}

// ParseStreamSpec inverts Param.
func ParseStreamSpec(param string) (StreamSpec, error) {
	switch param {
	case "TRADE_LITE":
		return StreamSpec{Kind: StreamTradeLite}, nil
	case "ORDER_TRADE_UPDATE":
		return StreamSpec{Kind: StreamOrderTradeUpdate}, nil
	case "ACCOUNT_UPDATE":
		return StreamSpec{Kind: StreamAccountUpdate}, nil
	}

	symPart, rest, ok := strings.Cut(param, "@")
	if !ok {
		return StreamSpec{}, fmt.Errorf("stream %q: missing @", param)
	}
	symbol, err := types.ParseSymbol(symPart)
	if err != nil {
		return StreamSpec{}, fmt.Errorf("stream %q: %w", param, err)
	}

	switch rest {
	case "bookTicker":
		return BookTickerSpec(symbol), nil
	case "aggTrade":
		return AggTradeSpec(symbol), nil
	case "trade":
		return TradeSpec(symbol), nil
	}

	if !strings.HasPrefix(rest, "depth") {
		return StreamSpec{}, fmt.Errorf("stream %q: unknown suffix %q", param, rest)
	}

	spec := StreamSpec{Kind: StreamDepth, Symbol: symbol}
	levelsPart, intervalPart, hasInterval := strings.Cut(strings.TrimPrefix(rest, "depth"), "@")
	if levelsPart != "" {
		spec.Levels, err = strconv.Atoi(levelsPart)
		if err != nil {
			return StreamSpec{}, fmt.Errorf("stream %q: bad levels %q", param, levelsPart)
		}
	}
	if hasInterval {
		ms, msOK := strings.CutSuffix(intervalPart, "ms")
		if !msOK {
			return StreamSpec{}, fmt.Errorf("stream %q: bad interval %q", param, intervalPart)
		}
		spec.IntervalMs, err = strconv.Atoi(ms)
		if err != nil {
			return StreamSpec{}, fmt.Errorf("stream %q: bad interval %q", param, intervalPart)
		}
	}
	return spec, nil
}
