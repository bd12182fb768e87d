package orderbook

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrEmptyBook       = errors.New("empty book side")
	ErrNotSeeded       = errors.New("book has not been seeded")
	ErrAlreadySeeded   = errors.New("book already seeded")
)

// side is an unordered price -> level store. Keys are the canonical decimal
// string so that "100.10" and "100.1" address the same level.
type side map[string]models.Level

// Book maintains the bid and ask price levels of a single symbol. It performs
// no locking: callers serialize Seed and Apply.
type Book struct {
	bids         side
	asks         side
	maxDepth     int
	seeded       bool
	lastUpdateID int64
}

// New returns an empty book. When maxDepth is positive each side is truncated
// to its best maxDepth levels after every applied update.
func New(maxDepth int) *Book {
	return &Book{
		bids:     make(side),
		asks:     make(side),
		maxDepth: maxDepth,
	}
}

// ParseLevel converts a wire level into decimals.
func ParseLevel(u models.LevelUpdate) (models.Level, error) {
	price, err := decimal.NewFromString(u.Price)
	if err != nil {
		return models.Level{}, fmt.Errorf("parse price %q: %w", u.Price, err)
	}
	qty, err := decimal.NewFromString(u.Quantity)
	if err != nil {
		return models.Level{}, fmt.Errorf("parse quantity %q: %w", u.Quantity, err)
	}
	return models.Level{Price: price, Quantity: qty}, nil
}

// ParseLevels converts every update, failing on the first malformed entry.
func ParseLevels(updates []models.LevelUpdate) ([]models.Level, error) {
	levels := make([]models.Level, 0, len(updates))
	for _, u := range updates {
		lvl, err := ParseLevel(u)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// Seed replaces both sides wholesale. Levels with a non-positive quantity are
// dropped; an empty side afterwards is an ErrInvalidSnapshot.
func (b *Book) Seed(bids, asks []models.Level, lastUpdateID int64) error {
	if b.seeded {
		return ErrAlreadySeeded
	}

	newBids := make(side, len(bids))
	for _, lvl := range bids {
		if lvl.Quantity.IsPositive() {
			newBids[lvl.Price.String()] = lvl
		}
	}
	newAsks := make(side, len(asks))
	for _, lvl := range asks {
		if lvl.Quantity.IsPositive() {
			newAsks[lvl.Price.String()] = lvl
		}
	}

	if len(newBids) == 0 {
		return fmt.Errorf("%w: no bid levels", ErrInvalidSnapshot)
	}
	if len(newAsks) == 0 {
		return fmt.Errorf("%w: no ask levels", ErrInvalidSnapshot)
	}

	b.bids = newBids
	b.asks = newAsks
	b.lastUpdateID = lastUpdateID
	b.seeded = true
	b.trim()
	return nil
}

// ApplyUpdate overwrites or deletes levels on one side. A quantity <= 0
// removes the price; removing an absent price is a no-op.
func (b *Book) ApplyUpdate(s models.Side, levels []models.Level) error {
	if !b.seeded {
		return ErrNotSeeded
	}
	target, err := b.side(s)
	if err != nil {
		return err
	}
	for _, lvl := range levels {
		key := lvl.Price.String()
		if !lvl.Quantity.IsPositive() {
			delete(target, key)
			continue
		}
		target[key] = lvl
	}
	return nil
}

// Apply applies the bid and ask changes of one message, then truncates to the
// configured depth. Callers read best levels only after Apply returns.
func (b *Book) Apply(bids, asks []models.Level, updateID int64) error {
	if err := b.ApplyUpdate(models.SideBid, bids); err != nil {
		return err
	}
	if err := b.ApplyUpdate(models.SideAsk, asks); err != nil {
		return err
	}
	if updateID > b.lastUpdateID {
		b.lastUpdateID = updateID
	}
	b.trim()
	return nil
}

// BestBid returns the highest priced bid.
func (b *Book) BestBid() (models.Level, error) {
	return best(b.bids, func(a, c decimal.Decimal) bool { return a.GreaterThan(c) })
}

// BestAsk returns the lowest priced ask.
func (b *Book) BestAsk() (models.Level, error) {
	return best(b.asks, func(a, c decimal.Decimal) bool { return a.LessThan(c) })
}

// Spread is bestAsk - bestBid. It is negative for a crossed book.
func (b *Book) Spread() (decimal.Decimal, error) {
	bid, err := b.BestBid()
	if err != nil {
		return decimal.Zero, err
	}
	ask, err := b.BestAsk()
	if err != nil {
		return decimal.Zero, err
	}
	return ask.Price.Sub(bid.Price), nil
}

// MidPrice is the average of the best bid and best ask.
func (b *Book) MidPrice() (decimal.Decimal, error) {
	bid, err := b.BestBid()
	if err != nil {
		return decimal.Zero, err
	}
	ask, err := b.BestAsk()
	if err != nil {
		return decimal.Zero, err
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), nil
}

// Bids returns bid levels ordered from the highest price down.
func (b *Book) Bids() []models.Level {
	return ordered(b.bids, true)
}

// Asks returns ask levels ordered from the lowest price up.
func (b *Book) Asks() []models.Level {
	return ordered(b.asks, false)
}

// Levels returns the ordered levels of the requested side.
func (b *Book) Levels(s models.Side) []models.Level {
	if s == models.SideBid {
		return b.Bids()
	}
	return b.Asks()
}

// Depth returns the number of levels on each side.
func (b *Book) Depth() (bids, asks int) {
	return len(b.bids), len(b.asks)
}

func (b *Book) Seeded() bool { return b.seeded }

func (b *Book) LastUpdateID() int64 { return b.lastUpdateID }

func (b *Book) side(s models.Side) (side, error) {
	switch s {
	case models.SideBid:
		return b.bids, nil
	case models.SideAsk:
		return b.asks, nil
	default:
		return nil, fmt.Errorf("unknown side %q", s)
	}
}

func (b *Book) trim() {
	if b.maxDepth <= 0 {
		return
	}
	truncate(b.bids, ordered(b.bids, true), b.maxDepth)
	truncate(b.asks, ordered(b.asks, false), b.maxDepth)
}

func truncate(s side, levels []models.Level, depth int) {
	if len(levels) <= depth {
		return
	}
	for _, lvl := range levels[depth:] {
		delete(s, lvl.Price.String())
	}
}

func best(s side, better func(a, c decimal.Decimal) bool) (models.Level, error) {
	if len(s) == 0 {
		return models.Level{}, ErrEmptyBook
	}
	var (
		out   models.Level
		found bool
	)
	for _, lvl := range s {
		if !found || better(lvl.Price, out.Price) {
			out = lvl
			found = true
		}
	}
	return out, nil
}

func ordered(s side, descending bool) []models.Level {
	out := make([]models.Level, 0, len(s))
	for _, lvl := range s {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
