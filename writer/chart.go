package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"spreadwatch/config"
	"spreadwatch/internal/analysis"
	"spreadwatch/logger"
	"spreadwatch/models"
	"spreadwatch/processor"
)

// ChartData is the document consumed by the external chart renderer.
type ChartData struct {
	SessionID  string                 `json:"session_id"`
	Symbol     string                 `json:"symbol"`
	Threshold  float64                `json:"threshold"`
	Timestamps []time.Time            `json:"timestamps"`
	Spreads    []float64              `json:"spreads"`
	Widening   []bool                 `json:"widening"`
	Recoveries []models.RecoveryEvent `json:"recoveries"`
	Walls      []models.WallRecord    `json:"walls"`
	Depth      analysis.DepthCurves   `json:"depth"`
	MidPrice   string                 `json:"mid_price"`
	NoData     bool                   `json:"no_data"`
}

// ChartDataWriter stores ChartData as JSON.
type ChartDataWriter struct {
	dir      string
	filename string
	log      *logger.Log
}

func NewChartDataWriter(cfg *config.Config) *ChartDataWriter {
	return &ChartDataWriter{
		dir:      cfg.Writer.OutputDir,
		filename: cfg.Writer.ChartData.Filename,
		log:      logger.GetLogger(),
	}
}

func (w *ChartDataWriter) Name() string { return "chart_data" }

func (w *ChartDataWriter) Publish(ctx context.Context, result *processor.Result) error {
	data, err := json.MarshalIndent(BuildChartData(result), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chart data: %w", err)
	}
	path, err := writeFile(w.dir, w.filename, data)
	if err != nil {
		return err
	}
	w.log.WithComponent("chart_writer").WithFields(logger.Fields{
		"session_id": result.SessionID,
		"path":       path,
		"samples":    len(result.Samples),
	}).Info("chart data written")
	return nil
}

func BuildChartData(r *processor.Result) ChartData {
	cd := ChartData{
		SessionID:  r.SessionID,
		Symbol:     r.Symbol,
		Threshold:  r.SpreadAlertThreshold,
		Timestamps: make([]time.Time, 0, len(r.Samples)),
		Spreads:    make([]float64, 0, len(r.Samples)),
		Widening:   r.Flags,
		Recoveries: r.Events,
		Walls:      r.Walls,
		Depth:      r.DepthCurves,
		NoData:     r.NoData,
	}
	for _, s := range r.Samples {
		cd.Timestamps = append(cd.Timestamps, s.Timestamp)
		cd.Spreads = append(cd.Spreads, s.Spread.InexactFloat64())
	}
	if !r.NoData {
		cd.MidPrice = r.Summary.MidPrice.String()
	}
	return cd
}
