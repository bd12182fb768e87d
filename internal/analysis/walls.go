package analysis

import (
	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

// LevelSource is the read side of the order book used by the analysis passes.
type LevelSource interface {
	Bids() []models.Level
	Asks() []models.Level
}

var wallMultiple = decimal.NewFromInt(3)

// DetectWalls reports, bids first then asks, every level whose quantity is
// above volumeThreshold and above three times the mean quantity of its side.
// The mean includes the candidate level itself. Empty sides are skipped.
func DetectWalls(book LevelSource, volumeThreshold decimal.Decimal) []models.WallRecord {
	var walls []models.WallRecord
	walls = appendWalls(walls, models.SideBid, book.Bids(), volumeThreshold)
	walls = appendWalls(walls, models.SideAsk, book.Asks(), volumeThreshold)
	return walls
}

func appendWalls(walls []models.WallRecord, side models.Side, levels []models.Level, volumeThreshold decimal.Decimal) []models.WallRecord {
	if len(levels) == 0 {
		return walls
	}
	total := totalQuantity(levels)
	// q > 3*total/n, compared as q*n > 3*total to stay exact
	n := decimal.NewFromInt(int64(len(levels)))
	limit := total.Mul(wallMultiple)

	for _, l := range levels {
		if l.Quantity.GreaterThan(volumeThreshold) && l.Quantity.Mul(n).GreaterThan(limit) {
			walls = append(walls, models.WallRecord{Side: side, Price: l.Price, Quantity: l.Quantity})
		}
	}
	return walls
}
