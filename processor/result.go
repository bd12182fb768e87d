package processor

import (
	"time"

	"spreadwatch/internal/analysis"
	"spreadwatch/internal/orderbook"
	"spreadwatch/models"
)

// Counters tracks how incoming messages were handled during a session.
type Counters struct {
	Received     int64 `json:"received"`
	Ignored      int64 `json:"ignored"`
	Malformed    int64 `json:"malformed"`
	EmptyBook    int64 `json:"empty_book"`
	SpreadAlerts int64 `json:"spread_alerts"`
	StaleUpdates int64 `json:"stale_updates"`
}

// Result is everything a session produced. When NoData is set only the
// identity fields, Reason and Counters are populated.
type Result struct {
	SessionID string
	Symbol    string
	StartedAt time.Time
	EndedAt   time.Time

	SpreadAlertThreshold float64

	Samples     []models.SpreadSample
	Flags       []bool
	Events      []models.RecoveryEvent
	Walls       []models.WallRecord
	Summary     analysis.Summary
	DepthCurves analysis.DepthCurves
	Book        *orderbook.Book

	NoData       bool
	Reason       error
	StreamFailed bool
	StreamErr    error
	Interrupted  bool

	Counters Counters
}
