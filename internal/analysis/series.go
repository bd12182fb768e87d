package analysis

import (
	"time"

	"github.com/shopspring/decimal"

	"spreadwatch/models"
)

// SpreadSeries is an append-only sequence of spread samples ordered by time.
type SpreadSeries struct {
	samples []models.SpreadSample
}

func NewSpreadSeries(capacity int) *SpreadSeries {
	if capacity < 0 {
		capacity = 0
	}
	return &SpreadSeries{samples: make([]models.SpreadSample, 0, capacity)}
}

// Record appends a sample. A timestamp earlier than the previous sample is
// clamped to it so the series stays non-decreasing.
func (s *SpreadSeries) Record(ts time.Time, spread decimal.Decimal) models.SpreadSample {
	if n := len(s.samples); n > 0 && ts.Before(s.samples[n-1].Timestamp) {
		ts = s.samples[n-1].Timestamp
	}
	sample := models.SpreadSample{Timestamp: ts, Spread: spread}
	s.samples = append(s.samples, sample)
	return sample
}

func (s *SpreadSeries) Len() int { return len(s.samples) }

// Values returns a copy of the samples recorded so far.
func (s *SpreadSeries) Values() []models.SpreadSample {
	out := make([]models.SpreadSample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Spreads returns the spreads as float64 for the statistical passes.
func (s *SpreadSeries) Spreads() []float64 {
	out := make([]float64, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.Spread.InexactFloat64()
	}
	return out
}

func (s *SpreadSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(s.samples))
	for i, sample := range s.samples {
		out[i] = sample.Timestamp
	}
	return out
}
