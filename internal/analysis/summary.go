package analysis

import (
	"math"

	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

// Summary condenses a finished session into the figures shown in the report.
type Summary struct {
	Samples             int             `json:"samples"`
	MeanSpread          float64         `json:"mean_spread"`
	MaxSpread           float64         `json:"max_spread"`
	MinSpread           float64         `json:"min_spread"`
	WideningEvents      int             `json:"widening_events"`
	RecoveryEvents      int             `json:"recovery_events"`
	MeanRecoverySeconds float64         `json:"mean_recovery_seconds"`
	Walls               int             `json:"walls"`
	BestBid             decimal.Decimal `json:"best_bid"`
	BestAsk             decimal.Decimal `json:"best_ask"`
	MidPrice            decimal.Decimal `json:"mid_price"`
	BidLevels           int             `json:"bid_levels"`
	AskLevels           int             `json:"ask_levels"`
	BidQuantity         decimal.Decimal `json:"bid_quantity"`
	AskQuantity         decimal.Decimal `json:"ask_quantity"`
	Imbalance           float64         `json:"imbalance"`
}

// Summarize computes the report figures. spreads must not be empty.
func Summarize(spreads []float64, flags []bool, events []models.RecoveryEvent, walls []models.WallRecord, book LevelSource) Summary {
	s := Summary{
		Samples:        len(spreads),
		MeanSpread:     mean(spreads),
		MaxSpread:      math.Inf(-1),
		MinSpread:      math.Inf(1),
		RecoveryEvents: len(events),
		Walls:          len(walls),
	}
	for _, v := range spreads {
		s.MaxSpread = math.Max(s.MaxSpread, v)
		s.MinSpread = math.Min(s.MinSpread, v)
	}
	for _, f := range flags {
		if f {
			s.WideningEvents++
		}
	}
	if len(events) > 0 {
		var total float64
		for _, e := range events {
			total += e.DurationSeconds
		}
		s.MeanRecoverySeconds = total / float64(len(events))
	}

	bids, asks := book.Bids(), book.Asks()
	s.BidLevels, s.AskLevels = len(bids), len(asks)
	s.BidQuantity, s.AskQuantity = totalQuantity(bids), totalQuantity(asks)
	if len(bids) > 0 {
		s.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		s.BestAsk = asks[0].Price
	}
	if len(bids) > 0 && len(asks) > 0 {
		s.MidPrice = s.BestBid.Add(s.BestAsk).Div(decimal.NewFromInt(2))
	}
	s.Imbalance = Imbalance(s.BidQuantity, s.AskQuantity)
	return s
}

// Imbalance is (bid - ask) / (bid + ask), or 0 when both are zero.
func Imbalance(bidQty, askQty decimal.Decimal) float64 {
	total := bidQty.Add(askQty)
	if total.IsZero() {
		return 0
	}
	return bidQty.Sub(askQty).Div(total).InexactFloat64()
}

// DepthPoint is one step of a cumulative depth curve.
type DepthPoint struct {
	Price      decimal.Decimal `json:"price"`
	Cumulative decimal.Decimal `json:"cumulative"`
}

// DepthCurves holds the cumulative quantity per side, walking outward from
// the top of the book.
type DepthCurves struct {
	Bids []DepthPoint `json:"bids"`
	Asks []DepthPoint `json:"asks"`
}

func DepthCurve(book LevelSource) DepthCurves {
	return DepthCurves{
		Bids: cumulative(book.Bids()),
		Asks: cumulative(book.Asks()),
	}
}

func cumulative(levels []models.Level) []DepthPoint {
	out := make([]DepthPoint, 0, len(levels))
	running := decimal.Zero
	for _, l := range levels {
		running = running.Add(l.Quantity)
		out = append(out, DepthPoint{Price: l.Price, Cumulative: running})
	}
	return out
}

func totalQuantity(levels []models.Level) decimal.Decimal {
	total := decimal.Zero
	for _, l := range levels {
		total = total.Add(l.Quantity)
	}
	return total
}
