package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadSample is one (timestamp, bestAsk - bestBid) observation.
type SpreadSample struct {
	Timestamp time.Time       `json:"timestamp"`
	Spread    decimal.Decimal `json:"spread"`
}

// RecoveryEvent measures how long a widening episode took to return to band.
type RecoveryEvent struct {
	Start           time.Time `json:"start"`
	DurationSeconds float64   `json:"duration_seconds"`
}
