package models

import (
	"encoding/json"
	"testing"
)

func TestDepthMessageDecodesExchangeFields(t *testing.T) {
	payload := []byte(`{"e":"depthUpdate","E":1700000000000,"s":"BTCUSDT","U":10,"u":12,` +
		`"b":[{"price":"100.5","quantity":"1.2"}],"a":[{"price":"101","quantity":"0"}]}`)

	var msg DepthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !msg.IsDepthUpdate() {
		t.Fatalf("expected depth update, got %q", msg.EventType)
	}
	if msg.FirstUpdateID != 10 || msg.LastUpdateID != 12 {
		t.Fatalf("unexpected update ids: %+v", msg)
	}
	if len(msg.Bids) != 1 || msg.Bids[0].Price != "100.5" {
		t.Fatalf("unexpected bids: %+v", msg.Bids)
	}
}

func TestNonDepthEventIsIgnored(t *testing.T) {
	msg := DepthMessage{EventType: "heartbeat"}
	if msg.IsDepthUpdate() {
		t.Fatal("heartbeat must not be treated as a depth update")
	}
}

func TestDepthMessageDecodesPairLevels(t *testing.T) {
	payload := []byte(`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":1,"u":2,"b":[["100.5","1.2"],["100","0"]],"a":[]}`)

	var msg DepthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(msg.Bids) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(msg.Bids))
	}
	if msg.Bids[1].Price != "100" || msg.Bids[1].Quantity != "0" {
		t.Fatalf("unexpected second bid: %+v", msg.Bids[1])
	}
}

func TestLevelUpdateRejectsShortPair(t *testing.T) {
	var u LevelUpdate
	if err := json.Unmarshal([]byte(`["100"]`), &u); err == nil {
		t.Fatal("expected error for a pair without quantity")
	}
}
