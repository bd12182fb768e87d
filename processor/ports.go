package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"spreadwatch/config"
	"spreadwatch/internal/analysis"
	"spreadwatch/models"
)

// Snapshotter fetches the authoritative book used to seed a session.
type Snapshotter interface {
	FetchSnapshot(ctx context.Context, symbol string, limit int) (*models.Snapshot, error)
}

// Subscriber opens a live depth subscription. handler must be called from a
// single goroutine at a time; closing stopC requests shutdown and doneC is
// closed once no further handler calls will be made. errHandler reports a
// transport failure, after which doneC is expected to close.
type Subscriber interface {
	Subscribe(symbol string, handler func(models.DepthMessage), errHandler func(error)) (doneC, stopC chan struct{}, err error)
}

// Analyzer runs the end-of-window passes over the captured data.
type Analyzer interface {
	Widening(spreads []float64) []bool
	Recovery(timestamps []time.Time, spreads []float64, flags []bool) ([]models.RecoveryEvent, error)
	Walls(book analysis.LevelSource) []models.WallRecord
}

// Sink receives the finished session. Sinks run in registration order.
type Sink interface {
	Name() string
	Publish(ctx context.Context, result *Result) error
}

// ThresholdAnalyzer is the Analyzer backed by the session thresholds.
type ThresholdAnalyzer struct {
	WideningThreshold float64
	WindowSize        int
	RecoveryThreshold float64
	WallVolume        decimal.Decimal
}

func NewAnalyzer(cfg config.SessionConfig) *ThresholdAnalyzer {
	return &ThresholdAnalyzer{
		WideningThreshold: cfg.WideningThreshold,
		WindowSize:        cfg.WindowSize,
		RecoveryThreshold: cfg.EffectiveRecoveryThreshold(),
		WallVolume:        decimal.NewFromFloat(cfg.WallVolumeThreshold),
	}
}

func (a *ThresholdAnalyzer) Widening(spreads []float64) []bool {
	return analysis.DetectWidening(spreads, a.WideningThreshold, a.WindowSize)
}

func (a *ThresholdAnalyzer) Recovery(timestamps []time.Time, spreads []float64, flags []bool) ([]models.RecoveryEvent, error) {
	return analysis.TrackRecovery(timestamps, spreads, flags, a.RecoveryThreshold)
}

func (a *ThresholdAnalyzer) Walls(book analysis.LevelSource) []models.WallRecord {
	return analysis.DetectWalls(book, a.WallVolume)
}
