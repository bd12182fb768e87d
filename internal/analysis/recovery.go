package analysis

import (
	"fmt"
	"math"
	"time"

	"spreadwatch/models"
)

// TrackRecovery turns widening flags into recovery events. An event opens on
// the first flagged sample while idle and closes on the next sample whose
// absolute spread is within recoveryThreshold; flags seen while an event is
// open are ignored. An event still open at the end of the input is dropped.
func TrackRecovery(timestamps []time.Time, spreads []float64, flags []bool, recoveryThreshold float64) ([]models.RecoveryEvent, error) {
	if len(timestamps) != len(spreads) || len(spreads) != len(flags) {
		return nil, fmt.Errorf("misaligned input: %d timestamps, %d spreads, %d flags",
			len(timestamps), len(spreads), len(flags))
	}

	var (
		events []models.RecoveryEvent
		inEvt  bool
		start  time.Time
	)
	for i := range spreads {
		switch {
		case flags[i] && !inEvt:
			start, inEvt = timestamps[i], true
		case inEvt && math.Abs(spreads[i]) <= recoveryThreshold:
			events = append(events, models.RecoveryEvent{
				Start:           start,
				DurationSeconds: timestamps[i].Sub(start).Seconds(),
			})
			inEvt = false
		}
	}
	return events, nil
}
