package analysis

import (
	"testing"

	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

type staticBook struct {
	bids, asks []models.Level
}

func (b staticBook) Bids() []models.Level { return b.bids }
func (b staticBook) Asks() []models.Level { return b.asks }

func levels(pairs ...int64) []models.Level {
	out := make([]models.Level, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Level{
			Price:    decimal.NewFromInt(pairs[i]),
			Quantity: decimal.NewFromInt(pairs[i+1]),
		})
	}
	return out
}

func TestDetectWallsMeanIncludesCandidate(t *testing.T) {
	// nine levels of 1 and one of 50: mean 5.9, 3x = 17.7 < 50
	bids := levels(109, 1, 108, 1, 107, 1, 106, 1, 105, 1, 104, 1, 103, 1, 102, 1, 101, 1, 100, 50)
	walls := DetectWalls(staticBook{bids: bids}, decimal.NewFromInt(10))
	if len(walls) != 1 {
		t.Fatalf("got %d walls, want 1: %v", len(walls), walls)
	}
	w := walls[0]
	if w.Side != models.SideBid || !w.Price.Equal(decimal.NewFromInt(100)) || !w.Quantity.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected wall %+v", w)
	}
}

func TestDetectWallsThreeLevelSideNeverClears(t *testing.T) {
	// with three levels a candidate can never exceed 3x a mean that includes it
	asks := levels(100, 1, 101, 1, 102, 1000)
	if walls := DetectWalls(staticBook{asks: asks}, decimal.NewFromInt(10)); len(walls) != 0 {
		t.Fatalf("expected no walls, got %v", walls)
	}
}

func TestDetectWallsVolumeFloor(t *testing.T) {
	bids := levels(10, 1, 9, 1, 8, 1, 7, 1, 6, 1, 5, 1, 4, 1, 3, 1, 2, 1, 1, 50)
	if walls := DetectWalls(staticBook{bids: bids}, decimal.NewFromInt(100)); len(walls) != 0 {
		t.Fatalf("expected volume floor to filter wall, got %v", walls)
	}
}

func TestDetectWallsSideMajorOrder(t *testing.T) {
	bids := levels(99, 1, 98, 1, 97, 1, 96, 1, 95, 40, 94, 1, 93, 1, 92, 1, 91, 1, 90, 1)
	asks := levels(101, 1, 102, 1, 103, 1, 104, 1, 105, 1, 106, 1, 107, 60, 108, 1, 109, 1, 110, 1)
	walls := DetectWalls(staticBook{bids: bids, asks: asks}, decimal.NewFromInt(10))
	if len(walls) != 2 {
		t.Fatalf("got %d walls, want 2: %v", len(walls), walls)
	}
	if walls[0].Side != models.SideBid || walls[1].Side != models.SideAsk {
		t.Fatalf("walls not side-major: %v", walls)
	}
}

func TestDetectWallsEmptyBook(t *testing.T) {
	if walls := DetectWalls(staticBook{}, decimal.Zero); len(walls) != 0 {
		t.Fatalf("expected no walls on empty book, got %v", walls)
	}
}
