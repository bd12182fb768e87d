package models

import "time"

// EventDepthUpdate is the event type carried by incremental depth messages.
const EventDepthUpdate = "depthUpdate"

// DepthMessage is a single message delivered by a live subscription. Only
// messages whose EventType is EventDepthUpdate mutate the book.
type DepthMessage struct {
	EventType     string        `json:"e"`
	EventTime     int64         `json:"E"`
	Symbol        string        `json:"s"`
	FirstUpdateID int64         `json:"U"`
	LastUpdateID  int64         `json:"u"`
	Bids          []LevelUpdate `json:"b"`
	Asks          []LevelUpdate `json:"a"`
	ReceivedAt    time.Time     `json:"-"`
	// DecodeErr is set by transports that could not decode the payload.
	DecodeErr error `json:"-"`
}

// IsDepthUpdate reports whether the message should be applied to the book.
func (m DepthMessage) IsDepthUpdate() bool {
	return m.EventType == EventDepthUpdate
}
