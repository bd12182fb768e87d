package orderbook

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

func lvl(price, qty string) models.Level {
	return models.Level{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func seeded(t *testing.T, maxDepth int) *Book {
	t.Helper()
	b := New(maxDepth)
	bids := []models.Level{lvl("100", "1"), lvl("99", "2"), lvl("98", "3")}
	asks := []models.Level{lvl("101", "1"), lvl("102", "2"), lvl("103", "3")}
	if err := b.Seed(bids, asks, 42); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return b
}

func TestSeedFiltersNonPositive(t *testing.T) {
	b := New(0)
	err := b.Seed(
		[]models.Level{lvl("100", "0"), lvl("99", "-1"), lvl("98", "2")},
		[]models.Level{lvl("101", "1")},
		1,
	)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	bids, asks := b.Depth()
	if bids != 1 || asks != 1 {
		t.Fatalf("depth = %d/%d, want 1/1", bids, asks)
	}
}

func TestSeedRejectsEmptySide(t *testing.T) {
	cases := []struct {
		name string
		bids []models.Level
		asks []models.Level
	}{
		{"no bids", nil, []models.Level{lvl("101", "1")}},
		{"no asks", []models.Level{lvl("100", "1")}, nil},
		{"zero qty bids", []models.Level{lvl("100", "0")}, []models.Level{lvl("101", "1")}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b := New(0)
			if err := b.Seed(c.bids, c.asks, 0); !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
			if b.Seeded() {
				t.Fatal("book must stay unseeded")
			}
		})
	}
}

func TestSeedOnlyOnce(t *testing.T) {
	b := seeded(t, 0)
	if err := b.Seed([]models.Level{lvl("1", "1")}, []models.Level{lvl("2", "1")}, 0); !errors.Is(err, ErrAlreadySeeded) {
		t.Fatalf("expected ErrAlreadySeeded, got %v", err)
	}
}

func TestApplyBeforeSeed(t *testing.T) {
	b := New(0)
	if err := b.ApplyUpdate(models.SideBid, []models.Level{lvl("1", "1")}); !errors.Is(err, ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
}

func TestLastWriteWins(t *testing.T) {
	b := seeded(t, 0)

	updates := []struct {
		bids []models.Level
		asks []models.Level
	}{
		{bids: []models.Level{lvl("100", "5"), lvl("97", "1")}},
		{bids: []models.Level{lvl("99", "0")}, asks: []models.Level{lvl("101", "0"), lvl("104", "4")}},
		{bids: []models.Level{lvl("100.0", "7"), lvl("50", "0")}},
		{asks: []models.Level{lvl("104", "9")}},
	}
	for i, u := range updates {
		if err := b.Apply(u.bids, u.asks, int64(100+i)); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	wantBids := map[string]string{"100": "7", "98": "3", "97": "1"}
	wantAsks := map[string]string{"102": "2", "103": "3", "104": "9"}

	check := func(name string, got []models.Level, want map[string]string) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s: got %d levels, want %d (%v)", name, len(got), len(want), got)
		}
		for _, l := range got {
			q, ok := want[l.Price.String()]
			if !ok {
				t.Fatalf("%s: unexpected price %s", name, l.Price)
			}
			if !l.Quantity.Equal(decimal.RequireFromString(q)) {
				t.Errorf("%s: price %s qty %s, want %s", name, l.Price, l.Quantity, q)
			}
		}
	}
	check("bids", b.Bids(), wantBids)
	check("asks", b.Asks(), wantAsks)

	if b.LastUpdateID() != 103 {
		t.Errorf("last update id = %d, want 103", b.LastUpdateID())
	}
}

func TestOrderedReads(t *testing.T) {
	b := seeded(t, 0)
	bids := b.Bids()
	for i := 1; i < len(bids); i++ {
		if !bids[i-1].Price.GreaterThan(bids[i].Price) {
			t.Fatalf("bids not descending: %v", bids)
		}
	}
	asks := b.Asks()
	for i := 1; i < len(asks); i++ {
		if !asks[i-1].Price.LessThan(asks[i].Price) {
			t.Fatalf("asks not ascending: %v", asks)
		}
	}
}

func TestCrossedBookPassesThrough(t *testing.T) {
	b := seeded(t, 0)
	if err := b.Apply([]models.Level{lvl("105", "1")}, nil, 0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	bid, err := b.BestBid()
	if err != nil {
		t.Fatalf("best bid: %v", err)
	}
	ask, err := b.BestAsk()
	if err != nil {
		t.Fatalf("best ask: %v", err)
	}
	if !bid.Price.Equal(decimal.NewFromInt(105)) || !ask.Price.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("best = %s/%s, want 105/101", bid.Price, ask.Price)
	}
	spread, err := b.Spread()
	if err != nil {
		t.Fatalf("spread: %v", err)
	}
	if !spread.Equal(decimal.NewFromInt(-4)) {
		t.Fatalf("spread = %s, want -4", spread)
	}
}

func TestEmptySide(t *testing.T) {
	b := seeded(t, 0)
	if err := b.Apply(nil, []models.Level{lvl("101", "0"), lvl("102", "0"), lvl("103", "0")}, 0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := b.BestAsk(); !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("expected ErrEmptyBook, got %v", err)
	}
	if _, err := b.Spread(); !errors.Is(err, ErrEmptyBook) {
		t.Fatalf("expected ErrEmptyBook from Spread, got %v", err)
	}
	if _, err := b.BestBid(); err != nil {
		t.Fatalf("bid side should still be readable: %v", err)
	}
}

func TestMaxDepthKeepsBestLevels(t *testing.T) {
	b := seeded(t, 2)
	bids, asks := b.Depth()
	if bids != 2 || asks != 2 {
		t.Fatalf("depth after seed = %d/%d, want 2/2", bids, asks)
	}
	if err := b.Apply([]models.Level{lvl("100.5", "1")}, []models.Level{lvl("100.7", "1")}, 0); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := b.Bids()
	if len(got) != 2 || got[0].Price.String() != "100.5" || got[1].Price.String() != "100" {
		t.Fatalf("bids after trim = %v", got)
	}
	ask, _ := b.BestAsk()
	if ask.Price.String() != "100.7" {
		t.Fatalf("best ask = %s, want 100.7", ask.Price)
	}
}

func TestMidPrice(t *testing.T) {
	b := seeded(t, 0)
	mid, err := b.MidPrice()
	if err != nil {
		t.Fatalf("mid: %v", err)
	}
	if !mid.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("mid = %s, want 100.5", mid)
	}
}

func TestParseLevelsRejectsGarbage(t *testing.T) {
	_, err := ParseLevels([]models.LevelUpdate{{Price: "100", Quantity: "1"}, {Price: "abc", Quantity: "1"}})
	if err == nil {
		t.Fatal("expected parse error")
	}
}
