package analysis

import (
	"testing"
	"time"
)

func timeline(n int) []time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Second)
	}
	return out
}

func TestTrackRecoverySingleEvent(t *testing.T) {
	ts := timeline(6)
	spreads := []float64{1, 1, 10, 8, 1, 1}
	flags := []bool{false, false, true, true, false, false}

	events, err := TrackRecovery(ts, spreads, flags, 2)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !events[0].Start.Equal(ts[2]) {
		t.Errorf("start = %v, want %v", events[0].Start, ts[2])
	}
	if events[0].DurationSeconds != 2 {
		t.Errorf("duration = %v, want 2", events[0].DurationSeconds)
	}
}

func TestTrackRecoveryUnterminatedEventDropped(t *testing.T) {
	ts := timeline(5)
	spreads := []float64{1, 1, 10, 9, 8}
	flags := []bool{false, false, true, false, false}

	events, err := TrackRecovery(ts, spreads, flags, 2)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for an open episode, got %v", events)
	}
}

func TestTrackRecoveryClosesOnMagnitudeNotFlag(t *testing.T) {
	ts := timeline(7)
	// flag clears at index 3 but the spread is still wide until index 5
	spreads := []float64{1, 1, 10, 9, 8, 1.5, 1}
	flags := []bool{false, false, true, false, true, false, false}

	events, err := TrackRecovery(ts, spreads, flags, 2)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].DurationSeconds != 3 {
		t.Fatalf("duration = %v, want 3", events[0].DurationSeconds)
	}
}

func TestTrackRecoveryNegativeSpreadUsesMagnitude(t *testing.T) {
	ts := timeline(4)
	spreads := []float64{1, 10, -5, -1}
	flags := []bool{false, true, false, false}

	events, err := TrackRecovery(ts, spreads, flags, 2)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(events) != 1 || events[0].DurationSeconds != 2 {
		t.Fatalf("unexpected events: %v", events)
	}
}

func TestTrackRecoveryMisaligned(t *testing.T) {
	if _, err := TrackRecovery(timeline(2), []float64{1}, []bool{false}, 1); err == nil {
		t.Fatal("expected error for misaligned input")
	}
}
