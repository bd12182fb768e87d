package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one half of the order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Level represents a single price level in the orderbook
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// LevelUpdate is a price level as it arrives on the wire, before parsing.
type LevelUpdate struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// UnmarshalJSON accepts both the exchange pair form ["price","qty"] and the
// object form {"price":...,"quantity":...}.
func (u *LevelUpdate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) < 2 {
			return fmt.Errorf("level needs price and quantity, got %d fields", len(pair))
		}
		u.Price, u.Quantity = pair[0], pair[1]
		return nil
	}
	type plain LevelUpdate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = LevelUpdate(p)
	return nil
}

// Snapshot represents a one-time full-depth read of the orderbook
type Snapshot struct {
	Exchange     string        `json:"exchange"`
	Symbol       string        `json:"symbol"`
	LastUpdateID int64         `json:"lastUpdateId"`
	Bids         []LevelUpdate `json:"bids"`
	Asks         []LevelUpdate `json:"asks"`
	Timestamp    time.Time     `json:"timestamp"`
}

// WallRecord is a level flagged as a suspiciously large resting order.
type WallRecord struct {
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}
